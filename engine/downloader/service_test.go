package downloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"bilireel/engine"
	"bilireel/engine/store"
)

func newTestService(t *testing.T, mux *http.ServeMux) (*Service, *engine.Manager, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	backend, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "tasks.json"))
	if err != nil {
		t.Fatal(err)
	}
	manager, err := engine.NewManager(backend, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(manager,
		NewFetcher(FetcherOptions{Client: srv.Client(), ChunkSize: 250}),
		&fakeMerger{}, quietLogger())
	t.Cleanup(func() { svc.Close() })
	return svc, manager, srv
}

func TestServiceLifecycle(t *testing.T) {
	release, unblock := newReleaser(t)
	mux := http.NewServeMux()
	mux.Handle("/video", blockingHandler(payload(1000), 500, release))
	mux.HandleFunc("/audio", func(w http.ResponseWriter, r *http.Request) { w.Write(payload(200)) })
	svc, manager, srv := newTestService(t, mux)

	dir := t.TempDir()
	desc := engine.TaskDescriptor{
		ID:         "svc-1",
		Title:      "svc",
		VideoURL:   srv.URL + "/video",
		AudioURL:   srv.URL + "/audio",
		Dir:        dir,
		OutputPath: filepath.Join(dir, "svc.mp4"),
		VideoPath:  filepath.Join(dir, "svc-video.m4s"),
		AudioPath:  filepath.Join(dir, "svc-audio.m4s"),
		Options:    engine.TaskOptions{Merge: true, DeleteIntermediates: true},
	}
	if err := svc.Submit(desc); err != nil {
		t.Fatal(err)
	}
	ctrl, _ := svc.Registry().Get("svc-1")

	if err := svc.Remove("svc-1"); !errors.Is(err, engine.ErrTaskActive) {
		t.Errorf("Remove active err = %v", err)
	}
	if err := svc.Remove("missing"); !errors.Is(err, engine.ErrUnknownTask) {
		t.Errorf("Remove unknown err = %v", err)
	}

	eventually(t, "500 bytes", func() bool { return ctrl.State().Downloaded == 500 })
	eventually(t, "pause all", func() bool { return svc.PauseAll() == 1 })
	if rec, _ := manager.GetTaskByID("svc-1"); rec.Status != engine.StatusPaused {
		t.Errorf("manager status after pause = %s", rec.Status)
	}

	if svc.ResumeWith("svc-1", engine.TaskDescriptor{ID: "other"}) {
		t.Error("ResumeWith accepted a mismatched descriptor")
	}
	if n := svc.ResumeAll(); n != 1 {
		t.Errorf("ResumeAll resumed %d", n)
	}

	unblock()
	if err := ctrl.Wait(); err != nil {
		t.Fatal(err)
	}

	tasks := svc.Tasks()
	if len(tasks) != 1 || tasks[0].Status != engine.StatusCompleted || tasks[0].Progress != 100 {
		t.Fatalf("Tasks() = %+v", tasks)
	}

	eventually(t, "registry entry removed", func() bool { _, ok := svc.Registry().Get("svc-1"); return !ok })
	if err := svc.Remove("svc-1"); err != nil {
		t.Errorf("Remove finished task: %v", err)
	}
	if len(svc.Tasks()) != 0 {
		t.Error("record not removed")
	}
}
