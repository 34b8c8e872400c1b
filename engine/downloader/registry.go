package downloader

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"bilireel/engine"
)

// Options 构建 Registry 所需的依赖
type Options struct {
	Fetcher  *Fetcher
	Merger   Merger
	Store    Store
	Reporter Reporter
	Logger   *log.Logger
}

// Registry 活动任务表：ID -> Controller。
// 任务到达终态后自动移除。
type Registry struct {
	deps Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	tasks map[string]*Controller
}

// NewRegistry 创建注册表
func NewRegistry(deps Options) *Registry {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Fetcher == nil {
		deps.Fetcher = NewFetcher(FetcherOptions{})
	}
	if deps.Merger == nil {
		deps.Merger = &FFmpegMerger{Resolve: engine.NewEnvResolver("").GetFFmpegPath}
	}
	if deps.Store == nil {
		deps.Store = nopStore{}
	}
	if deps.Reporter == nil {
		deps.Reporter = logReporter{deps.Logger}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*Controller),
	}
}

// Start 创建并在后台运行任务
func (r *Registry) Start(desc engine.TaskDescriptor) (*Controller, error) {
	if desc.ID == "" {
		return nil, fmt.Errorf("start task: empty id")
	}

	r.mu.Lock()
	if _, ok := r.tasks[desc.ID]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("start %s: %w", desc.ID, engine.ErrTaskExists)
	}
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("start %s: registry closed", desc.ID)
	}
	ctrl := newController(desc, r.deps)
	r.tasks[desc.ID] = ctrl
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.remove(desc.ID, ctrl)
		_ = ctrl.Run(r.ctx)
	}()
	return ctrl, nil
}

func (r *Registry) remove(id string, ctrl *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.tasks[id]; ok && cur == ctrl {
		delete(r.tasks, id)
	}
}

// Get 查找活动任务
func (r *Registry) Get(id string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctrl, ok := r.tasks[id]
	return ctrl, ok
}

// Pause 未知 ID 返回 false
func (r *Registry) Pause(id string) bool {
	ctrl, ok := r.Get(id)
	if !ok {
		return false
	}
	return ctrl.Pause()
}

// Resume 未知 ID 或未暂停返回 false
func (r *Registry) Resume(id string) bool {
	ctrl, ok := r.Get(id)
	if !ok {
		return false
	}
	return ctrl.Resume()
}

// Discard 从表中移除条目，不会停止其传输
func (r *Registry) Discard(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return false
	}
	delete(r.tasks, id)
	return true
}

// Active 返回所有活动任务的状态，按 ID 排序
func (r *Registry) Active() []State {
	r.mu.RLock()
	list := make([]State, 0, len(r.tasks))
	for _, ctrl := range r.tasks {
		list = append(list, ctrl.State())
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Close 取消所有任务并等待退出
func (r *Registry) Close() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
}

type nopStore struct{}

func (nopStore) SaveTask(engine.TaskRecord) error { return nil }

type logReporter struct{ logger *log.Logger }

func (r logReporter) Report(ev engine.ProgressEvent) { r.logger.Printf("status %s", ev) }

func (r logReporter) RequestDanmaku(req engine.DanmakuRequest) {
	r.logger.Printf("%s danmaku -> %s", req.ID, req.Path)
}
