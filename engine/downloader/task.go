package downloader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"bilireel/engine"
)

// Store 持久化任务记录
type Store interface {
	SaveTask(rec engine.TaskRecord) error
}

// Reporter 接收状态/进度事件
type Reporter interface {
	Report(ev engine.ProgressEvent)
	RequestDanmaku(req engine.DanmakuRequest)
}

// 进度区间：视频 0-75，音频 75-97，合并固定 98
const (
	videoWeight     = 0.75
	audioWeight     = 0.22
	audioBase       = 75
	videoDoneAt     = 75
	audioDoneAt     = 97
	mergingProgress = 98
	doneProgress    = 100
)

// PhaseProgress 把当前阶段的字节进度映射到整体百分比
func PhaseProgress(phase engine.Status, downloaded, total int64) int {
	var ratio float64
	if total > 0 {
		ratio = float64(min(downloaded, total)) / float64(total)
	}
	switch phase {
	case engine.StatusVideoDownloading:
		return int(math.Floor(ratio * 100 * videoWeight))
	case engine.StatusAudioDownloading:
		return int(math.Floor(ratio*100*audioWeight + audioBase))
	case engine.StatusMerging:
		return mergingProgress
	case engine.StatusCompleted:
		return doneProgress
	}
	return 0
}

// State 任务运行时状态快照
type State struct {
	ID         string        `json:"id"`
	Status     engine.Status `json:"status"`
	Progress   int           `json:"progress"`
	Paused     bool          `json:"paused"`
	Downloaded int64         `json:"downloaded"`
	Total      int64         `json:"total"`
}

// Controller 驱动单个任务依次经过各阶段
type Controller struct {
	desc     engine.TaskDescriptor
	fetcher  *Fetcher
	merger   Merger
	store    Store
	reporter Reporter
	logger   *log.Logger

	mu     sync.Mutex
	state  State
	phase  engine.Status // 当前下载阶段，暂停期间 state.Status 为 Paused
	stream *Stream

	sidecars sync.WaitGroup
	done     chan struct{}
	err      error
}

func newController(desc engine.TaskDescriptor, deps Options) *Controller {
	return &Controller{
		desc:     desc,
		fetcher:  deps.Fetcher,
		merger:   deps.Merger,
		store:    deps.Store,
		reporter: deps.Reporter,
		logger:   deps.Logger,
		state:    State{ID: desc.ID, Status: engine.StatusPending},
		done:     make(chan struct{}),
	}
}

// Descriptor 返回任务描述
func (c *Controller) Descriptor() engine.TaskDescriptor { return c.desc }

// State 当前状态
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done 任务结束（含被取消）时关闭
func (c *Controller) Done() <-chan struct{} { return c.done }

// Wait 等待任务结束
func (c *Controller) Wait() error {
	<-c.done
	return c.err
}

// Run 执行完整流程，返回致命错误
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	c.err = c.run(ctx)
	return c.err
}

func (c *Controller) run(ctx context.Context) error {
	opts := c.desc.Options
	c.logger.Printf("%s 开始任务: %s", c.desc.ID, c.desc.Title)

	c.transition(engine.StatusPlanStart, 0)
	c.prepareDir()

	if opts.Cover && c.desc.CoverURL != "" {
		c.fetchCover(ctx)
	}
	if opts.Subtitle && len(c.desc.Subtitles) > 0 {
		c.fetchSubtitles(ctx)
	}
	if opts.Danmaku {
		c.requestDanmaku()
	}

	if err := c.streamPhase(ctx, engine.StatusVideoDownloading, c.desc.VideoURL, c.desc.VideoPath); err != nil {
		return c.fail(ctx, "视频下载失败", err)
	}
	if err := c.streamPhase(ctx, engine.StatusAudioDownloading, c.desc.AudioURL, c.desc.AudioPath); err != nil {
		return c.fail(ctx, "音频下载失败", err)
	}

	if !opts.Merge {
		c.cleanup()
		c.transition(engine.StatusCompleted, doneProgress)
		c.logger.Printf("%s 下载完成（未合并）", c.desc.ID)
		return nil
	}
	return c.mergePhase(ctx)
}

// Pause 在当前下载流上请求暂停。没有活动流或已暂停时返回 false
func (c *Controller) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil || c.state.Paused {
		return false
	}
	if !c.stream.Pause() {
		return false
	}
	c.state.Paused = true
	c.state.Status = engine.StatusPaused
	c.persistLocked()
	c.reporter.Report(engine.ProgressEvent{ID: c.desc.ID, Status: engine.StatusPaused})
	c.logger.Printf("%s 已暂停 (%s %d%%)", c.desc.ID, c.phase, c.state.Progress)
	return true
}

// Resume 按暂停时的字节数重新计算进度并恢复传输。未暂停时返回 false
func (c *Controller) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil || !c.state.Paused {
		return false
	}
	progress := PhaseProgress(c.phase, c.state.Downloaded, c.state.Total)
	c.state.Paused = false
	c.state.Status = c.phase
	c.state.Progress = progress
	c.persistLocked()
	c.reporter.Report(engine.WithProgress(c.desc.ID, c.phase, progress))

	c.stream.Resume()
	c.logger.Printf("%s 已恢复 (%s %d%%)", c.desc.ID, c.phase, progress)
	return true
}

func (c *Controller) streamPhase(ctx context.Context, phase engine.Status, url, dest string) error {
	c.mu.Lock()
	c.phase = phase
	c.state.Downloaded, c.state.Total = 0, 0
	c.mu.Unlock()

	c.transition(phase, PhaseProgress(phase, 0, 0))

	s := c.fetcher.Start(ctx, Request{
		URL:        url,
		Dest:       dest,
		Header:     c.streamHeader(),
		OnProgress: c.onProgress,
	})

	c.mu.Lock()
	c.stream = s
	c.mu.Unlock()

	err := s.Wait()

	c.mu.Lock()
	c.stream = nil
	c.mu.Unlock()
	if err != nil {
		return err
	}

	// 总大小未知时（HLS）进度停在阶段起点，完成时补到阶段终点
	end := videoDoneAt
	if phase == engine.StatusAudioDownloading {
		end = audioDoneAt
	}
	c.mu.Lock()
	if c.state.Paused {
		// 暂停落在最后一个分块上，流已结束，视为恢复
		c.state.Paused = false
		c.state.Status = phase
		c.state.Progress = end
		c.persistLocked()
		c.reporter.Report(engine.WithProgress(c.desc.ID, phase, end))
	} else if c.state.Progress < end {
		c.state.Progress = end
		c.reporter.Report(engine.WithProgress(c.desc.ID, phase, end))
	}
	c.mu.Unlock()
	return nil
}

// onProgress 由传输协程在每个分块后调用
func (c *Controller) onProgress(downloaded, total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Downloaded, c.state.Total = downloaded, total
	if c.state.Paused {
		return
	}
	p := PhaseProgress(c.phase, downloaded, total)
	if p == c.state.Progress {
		return
	}
	c.state.Progress = p
	c.reporter.Report(engine.WithProgress(c.desc.ID, c.phase, p))
}

func (c *Controller) mergePhase(ctx context.Context) error {
	c.transition(engine.StatusMerging, mergingProgress)

	info, err := c.merger.Merge(ctx, c.desc.VideoPath, c.desc.AudioPath, c.desc.OutputPath)
	// 无论合并成败都执行清理
	c.cleanup()
	if err != nil {
		return c.fail(ctx, "合并失败", err)
	}

	c.logger.Printf("%s %s", c.desc.ID, info)
	c.transition(engine.StatusCompleted, doneProgress)
	return nil
}

// fail 进程退出导致的取消不记为失败，保留最后一次持久化的状态
func (c *Controller) fail(ctx context.Context, msg string, err error) error {
	if ctx.Err() != nil {
		c.logger.Printf("%s 任务中断: %v", c.desc.ID, err)
		return err
	}
	c.logger.Printf("%s %s: %v", c.desc.ID, msg, err)
	c.transition(engine.StatusFailed, -1)
	return fmt.Errorf("%s: %w", msg, err)
}

// transition 先持久化再上报；progress < 0 表示事件不带进度
func (c *Controller) transition(status engine.Status, progress int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !engine.CanTransition(c.state.Status, status) {
		c.logger.Printf("%s 忽略非法状态切换 %s -> %s", c.desc.ID, c.state.Status, status)
		return
	}
	c.state.Status = status
	c.state.Paused = false
	ev := engine.ProgressEvent{ID: c.desc.ID, Status: status}
	if progress >= 0 {
		c.state.Progress = progress
		ev = engine.WithProgress(c.desc.ID, status, progress)
	}
	c.persistLocked()
	c.reporter.Report(ev)
}

func (c *Controller) persistLocked() {
	rec := engine.TaskRecord{
		TaskDescriptor: c.desc,
		Status:         c.state.Status,
		Progress:       c.state.Progress,
	}
	if err := c.store.SaveTask(rec); err != nil {
		c.logger.Printf("%s 保存任务状态失败: %v", c.desc.ID, err)
	}
}

// prepareDir 目录创建失败只记录日志，后续写文件时自然报错
func (c *Controller) prepareDir() {
	dir := c.desc.Dir
	if dir == "" {
		dir = filepath.Dir(c.desc.OutputPath)
	}
	if _, err := os.Stat(dir); err == nil {
		c.logger.Printf("%s 文件夹已存在: %s", c.desc.ID, dir)
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		c.logger.Printf("%s 文件夹创建失败: %v", c.desc.ID, err)
		return
	}
	c.logger.Printf("%s 文件夹创建成功: %s", c.desc.ID, dir)
}

// cleanup 按选项删除音视频中间文件
func (c *Controller) cleanup() {
	if !c.desc.Options.DeleteIntermediates {
		return
	}
	for _, p := range []string{c.desc.VideoPath, c.desc.AudioPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Printf("%s 删除中间文件失败: %v", c.desc.ID, err)
		}
	}
}

func (c *Controller) baseHeader() http.Header {
	h := make(http.Header)
	ua := c.desc.UserAgent
	if ua == "" {
		ua = engine.DefaultUserAgents[0]
	}
	h.Set("User-Agent", ua)
	if c.desc.SESSDATA != "" {
		h.Set("Cookie", "SESSDATA="+c.desc.SESSDATA)
	}
	return h
}

func (c *Controller) streamHeader() http.Header {
	h := c.baseHeader()
	if c.desc.PageURL != "" {
		h.Set("Referer", c.desc.PageURL)
	}
	return h
}
