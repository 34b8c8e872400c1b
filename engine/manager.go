package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// 前端事件名
const (
	EventTaskStatus   = "download-video-status"
	EventDanmaku      = "download-danmaku"
	EventTaskListSync = "task_list_updated"
)

// Backend 任务记录的持久化后端（json 文件 / sqlite / blob）
type Backend interface {
	Put(ctx context.Context, rec TaskRecord) error
	Delete(ctx context.Context, id string) error
	Load(ctx context.Context) ([]TaskRecord, error)
	Close() error
}

// Manager 持有任务列表的内存视图，写入后端并向前端推送事件
type Manager struct {
	ctx     context.Context
	backend Backend
	logger  *log.Logger

	mu    sync.RWMutex
	tasks map[string]*TaskRecord
}

// NewManager 从后端加载历史任务
func NewManager(backend Backend, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		backend: backend,
		logger:  logger,
		tasks:   make(map[string]*TaskRecord),
	}

	records, err := backend.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	for i := range records {
		rec := records[i]
		m.tasks[rec.ID] = &rec
	}
	return m, nil
}

// SetContext 设置 Wails 运行时上下文，设置前事件只写日志
func (m *Manager) SetContext(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
}

// SaveTask 覆盖写入记录（后写者胜）
func (m *Manager) SaveTask(rec TaskRecord) error {
	m.mu.Lock()
	m.tasks[rec.ID] = &rec
	m.mu.Unlock()

	if err := m.backend.Put(context.Background(), rec); err != nil {
		return fmt.Errorf("save task %s: %w", rec.ID, err)
	}
	return nil
}

// Report 推送状态/进度事件
func (m *Manager) Report(ev ProgressEvent) {
	m.mu.Lock()
	if rec, ok := m.tasks[ev.ID]; ok && ev.Progress != nil {
		rec.Progress = *ev.Progress
	}
	m.mu.Unlock()

	m.emitEvent(EventTaskStatus, ev)
}

// RequestDanmaku 通知前端生成弹幕文件
func (m *Manager) RequestDanmaku(req DanmakuRequest) {
	m.emitEvent(EventDanmaku, req)
}

// GetTaskByID 返回记录副本
func (m *Manager) GetTaskByID(id string) (TaskRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.tasks[id]
	if !ok {
		return TaskRecord{}, false
	}
	return *rec, true
}

// GetAllTasks 按 ID 排序返回
func (m *Manager) GetAllTasks() []TaskRecord {
	m.mu.RLock()
	list := make([]TaskRecord, 0, len(m.tasks))
	for _, rec := range m.tasks {
		list = append(list, *rec)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// RemoveTask 删除记录，正在运行的任务需先由调用方处理
func (m *Manager) RemoveTask(id string) error {
	m.mu.Lock()
	delete(m.tasks, id)
	m.mu.Unlock()

	if err := m.backend.Delete(context.Background(), id); err != nil {
		return fmt.Errorf("remove task %s: %w", id, err)
	}
	m.emitEvent(EventTaskListSync, m.GetAllTasks())
	return nil
}

// Close 关闭后端
func (m *Manager) Close() error {
	return m.backend.Close()
}

func (m *Manager) emitEvent(eventName string, data interface{}) {
	m.mu.RLock()
	ctx := m.ctx
	m.mu.RUnlock()

	if ctx != nil {
		runtime.EventsEmit(ctx, eventName, data)
		return
	}
	m.logger.Printf("[%s] %+v", eventName, data)
}
