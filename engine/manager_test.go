package engine

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
)

type memBackend struct {
	mu      sync.Mutex
	records map[string]TaskRecord
	putErr  error
}

func newMemBackend(records ...TaskRecord) *memBackend {
	b := &memBackend{records: make(map[string]TaskRecord)}
	for _, rec := range records {
		b.records[rec.ID] = rec
	}
	return b
}

func (b *memBackend) Put(_ context.Context, rec TaskRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return b.putErr
	}
	b.records[rec.ID] = rec
	return nil
}

func (b *memBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, id)
	return nil
}

func (b *memBackend) Load(context.Context) ([]TaskRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []TaskRecord
	for _, rec := range b.records {
		out = append(out, rec)
	}
	return out, nil
}

func (b *memBackend) Close() error { return nil }

func TestManagerLoadsBackend(t *testing.T) {
	backend := newMemBackend(
		TaskRecord{TaskDescriptor: TaskDescriptor{ID: "b", Title: "second"}, Status: StatusFailed},
		TaskRecord{TaskDescriptor: TaskDescriptor{ID: "a", Title: "first"}, Status: StatusCompleted, Progress: 100},
	)

	m, err := NewManager(backend, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	all := m.GetAllTasks()
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Fatalf("GetAllTasks() = %+v", all)
	}

	rec, ok := m.GetTaskByID("a")
	if !ok || rec.Progress != 100 || rec.Status != StatusCompleted {
		t.Errorf("GetTaskByID(a) = %+v, %v", rec, ok)
	}
	if _, ok := m.GetTaskByID("missing"); ok {
		t.Error("expected missing task to be absent")
	}
}

func TestManagerSaveAndReport(t *testing.T) {
	var buf bytes.Buffer
	backend := newMemBackend()
	m, err := NewManager(backend, log.New(&buf, "", 0))
	if err != nil {
		t.Fatal(err)
	}

	rec := TaskRecord{TaskDescriptor: TaskDescriptor{ID: "t1"}, Status: StatusVideoDownloading}
	if err := m.SaveTask(rec); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}
	if backend.records["t1"].Status != StatusVideoDownloading {
		t.Error("record not written to backend")
	}

	m.Report(WithProgress("t1", StatusVideoDownloading, 42))
	got, _ := m.GetTaskByID("t1")
	if got.Progress != 42 {
		t.Errorf("Progress = %d, want 42", got.Progress)
	}

	// 没有 Wails 上下文时事件写入日志
	if !strings.Contains(buf.String(), "progress:42") {
		t.Errorf("log output = %q", buf.String())
	}

	m.Report(ProgressEvent{ID: "t1", Status: StatusFailed})
	if !strings.Contains(buf.String(), "{id:t1 status:Failed}") {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestManagerSaveError(t *testing.T) {
	backend := newMemBackend()
	backend.putErr = errors.New("disk full")
	m, err := NewManager(backend, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatal(err)
	}

	err = m.SaveTask(TaskRecord{TaskDescriptor: TaskDescriptor{ID: "t1"}})
	if err == nil || !errors.Is(err, backend.putErr) {
		t.Errorf("SaveTask error = %v", err)
	}
}

func TestManagerRemoveTask(t *testing.T) {
	backend := newMemBackend(TaskRecord{TaskDescriptor: TaskDescriptor{ID: "t1"}})
	m, err := NewManager(backend, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatal(err)
	}

	if err := m.RemoveTask("t1"); err != nil {
		t.Fatalf("RemoveTask: %v", err)
	}
	if _, ok := m.GetTaskByID("t1"); ok {
		t.Error("task still present in memory")
	}
	if _, ok := backend.records["t1"]; ok {
		t.Error("task still present in backend")
	}
}
