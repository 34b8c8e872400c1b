package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"bilireel/engine"
	"bilireel/engine/downloader"
	"bilireel/engine/store"

	hook "github.com/robotn/gohook"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

type App struct {
	ctx      context.Context
	settings engine.Settings
	logger   *log.Logger

	manager *engine.Manager
	service *downloader.Service
	sniffer *engine.Sniffer
	server  *engine.ControlServer

	// 窗口状态
	isHidden bool
}

func NewApp(settings engine.Settings, logger *log.Logger) (*App, error) {
	backend, err := store.Open(context.Background(), settings.Store)
	if err != nil {
		return nil, err
	}
	manager, err := engine.NewManager(backend, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}

	env := engine.NewEnvResolver(settings.FFmpegPath)
	fetcher := downloader.NewFetcher(downloader.FetcherOptions{RateLimit: settings.RateLimit})
	merger := &downloader.FFmpegMerger{Resolve: env.GetFFmpegPath}
	service := downloader.NewService(manager, fetcher, merger, logger)

	a := &App{
		settings: settings,
		logger:   logger,
		manager:  manager,
		service:  service,
		sniffer:  engine.NewSniffer(settings.DevToolsURL, logger),
	}
	a.server = engine.NewControlServer(settings.ControlAddr, service, a.resolve, logger)
	a.server.SESSDATA = settings.SESSDATA
	return a, nil
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	a.manager.SetContext(ctx)

	if err := a.server.Start(); err != nil {
		a.logger.Printf("控制接口未启动: %v", err)
	}

	// 全局热键 Ctrl + Alt + X 显示/隐藏，Ctrl + Alt + P / R 暂停/恢复全部
	go a.setupGlobalHotkeys()
}

func (a *App) shutdown(ctx context.Context) {
	hook.End()

	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = a.server.Shutdown(shutdownCtx)

	if err := a.service.Close(); err != nil {
		a.logger.Printf("关闭任务存储失败: %v", err)
	}
}

// setupGlobalHotkeys 监听系统全局按键
func (a *App) setupGlobalHotkeys() {
	hook.Register(hook.KeyDown, []string{"ctrl", "alt", "x"}, func(e hook.Event) {
		a.ToggleWindow()
	})
	hook.Register(hook.KeyDown, []string{"ctrl", "alt", "p"}, func(e hook.Event) {
		a.logger.Printf("热键暂停 %d 个任务", a.service.PauseAll())
	})
	hook.Register(hook.KeyDown, []string{"ctrl", "alt", "r"}, func(e hook.Event) {
		a.logger.Printf("热键恢复 %d 个任务", a.service.ResumeAll())
	})

	s := hook.Start()
	// Process 会阻塞当前协程
	<-hook.Process(s)
}

// ToggleWindow 切换窗口的显示和隐藏
func (a *App) ToggleWindow() {
	if a.isHidden {
		runtime.WindowShow(a.ctx)
		a.isHidden = false
	} else {
		runtime.WindowHide(a.ctx)
		a.isHidden = true
	}
}

func (a *App) resolve(ctx context.Context, pageURL string) (engine.TaskDescriptor, error) {
	info, err := a.sniffer.Resolve(ctx, pageURL)
	if err != nil {
		return engine.TaskDescriptor{}, err
	}
	return engine.NewDescriptor(info, pageURL, a.settings)
}

// ResolveDescriptor 读取视频页，返回待确认的任务描述
func (a *App) ResolveDescriptor(pageURL string) (engine.TaskDescriptor, error) {
	ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
	defer cancel()
	return a.resolve(ctx, pageURL)
}

// StartDownload 启动下载；描述需带 ID（通常来自 ResolveDescriptor）
func (a *App) StartDownload(desc engine.TaskDescriptor) (string, error) {
	if desc.ID == "" {
		return "", fmt.Errorf("任务缺少 ID")
	}
	if desc.SESSDATA == "" {
		desc.SESSDATA = a.settings.SESSDATA
	}
	if desc.UserAgent == "" {
		desc.UserAgent = a.settings.RandUserAgent()
	}
	if err := a.service.Submit(desc); err != nil {
		return "", err
	}
	return desc.ID, nil
}

// PauseDownload 暂停下载
func (a *App) PauseDownload(taskID string) bool {
	return a.service.Pause(taskID)
}

// ResumeDownload 恢复下载
func (a *App) ResumeDownload(taskID string, desc engine.TaskDescriptor) bool {
	return a.service.ResumeWith(taskID, desc)
}

func (a *App) GetTasks() []engine.TaskRecord {
	return a.service.Tasks()
}

// DeleteTask 删除已结束的任务记录
func (a *App) DeleteTask(taskID string) string {
	if err := a.service.Remove(taskID); err != nil {
		return err.Error()
	}
	return ""
}

// GetSettings 当前配置（不含 SESSDATA）
func (a *App) GetSettings() engine.Settings {
	s := a.settings
	s.SESSDATA = ""
	return s
}

// OpenDownloadFolder 打开下载目录
func (a *App) OpenDownloadFolder() {
	_ = os.MkdirAll(a.settings.DownloadDir, 0755)
	runtime.BrowserOpenURL(a.ctx, a.settings.DownloadDir)
}
