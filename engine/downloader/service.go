package downloader

import (
	"fmt"
	"log"

	"bilireel/engine"
)

// Service 组合注册表与任务管理器，供 Wails App 和控制接口共用
type Service struct {
	registry *Registry
	manager  *engine.Manager
	logger   *log.Logger
}

// NewService 任务状态写入 manager，事件也经由 manager 上报
func NewService(manager *engine.Manager, fetcher *Fetcher, merger Merger, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		registry: NewRegistry(Options{
			Fetcher:  fetcher,
			Merger:   merger,
			Store:    manager,
			Reporter: manager,
			Logger:   logger,
		}),
		manager: manager,
		logger:  logger,
	}
}

// Registry 底层注册表
func (s *Service) Registry() *Registry { return s.registry }

// Submit 启动新任务
func (s *Service) Submit(desc engine.TaskDescriptor) error {
	_, err := s.registry.Start(desc)
	return err
}

func (s *Service) Pause(id string) bool { return s.registry.Pause(id) }

func (s *Service) Resume(id string) bool { return s.registry.Resume(id) }

// ResumeWith 带描述的恢复：描述只用于核对 ID，不支持跨进程续传
func (s *Service) ResumeWith(id string, desc engine.TaskDescriptor) bool {
	if desc.ID != "" && desc.ID != id {
		s.logger.Printf("%s 恢复请求的描述 ID 不一致: %s", id, desc.ID)
		return false
	}
	return s.registry.Resume(id)
}

// PauseAll 暂停所有正在下载的任务，返回实际暂停的数量
func (s *Service) PauseAll() int {
	n := 0
	for _, st := range s.registry.Active() {
		if s.registry.Pause(st.ID) {
			n++
		}
	}
	return n
}

// ResumeAll 恢复所有暂停的任务
func (s *Service) ResumeAll() int {
	n := 0
	for _, st := range s.registry.Active() {
		if st.Paused && s.registry.Resume(st.ID) {
			n++
		}
	}
	return n
}

// Tasks 历史与当前任务记录
func (s *Service) Tasks() []engine.TaskRecord {
	return s.manager.GetAllTasks()
}

// Remove 删除已结束任务的记录；运行中的任务不能删除
func (s *Service) Remove(id string) error {
	if _, ok := s.registry.Get(id); ok {
		return fmt.Errorf("remove %s: %w", id, engine.ErrTaskActive)
	}
	if _, ok := s.manager.GetTaskByID(id); !ok {
		return fmt.Errorf("remove %s: %w", id, engine.ErrUnknownTask)
	}
	return s.manager.RemoveTask(id)
}

// Close 中断所有任务并关闭存储
func (s *Service) Close() error {
	s.registry.Close()
	return s.manager.Close()
}
