package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"bilireel/engine"
)

// JSONFile 将全部记录写入单个 tasks.json
type JSONFile struct {
	path string

	mu    sync.Mutex
	tasks map[string]engine.TaskRecord
}

// OpenJSONFile 文件不存在时从空列表开始
func OpenJSONFile(path string) (*JSONFile, error) {
	f := &JSONFile{
		path:  path,
		tasks: make(map[string]engine.TaskRecord),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &f.tasks); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return f, nil
}

func (f *JSONFile) Put(_ context.Context, rec engine.TaskRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// 与落盘内容保持一致，SESSDATA 不保存
	rec.SESSDATA = ""
	f.tasks[rec.ID] = rec
	return f.saveLocked()
}

func (f *JSONFile) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, id)
	return f.saveLocked()
}

func (f *JSONFile) Load(context.Context) ([]engine.TaskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]engine.TaskRecord, 0, len(f.tasks))
	for _, rec := range f.tasks {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f *JSONFile) Close() error { return nil }

// saveLocked 先写临时文件再 rename，避免写一半的 tasks.json
func (f *JSONFile) saveLocked() error {
	data, err := json.MarshalIndent(f.tasks, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
