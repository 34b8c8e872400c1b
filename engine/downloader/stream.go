package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"bilireel/engine"
)

const defaultChunkSize = 32 * 1024

// ErrBadStatus 服务器返回非 2xx
var ErrBadStatus = errors.New("downloader: unexpected response status")

// FetchError 携带出错的地址和原始错误
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetcherOptions 配置 Fetcher
type FetcherOptions struct {
	// Client 默认使用带连接池的 http.Client
	Client *http.Client

	// RateLimit 全局限速，字节/秒，0 表示不限
	RateLimit int64

	// ChunkSize 每次读取的大小，也是暂停检查的粒度
	ChunkSize int
}

// Fetcher 把单个资源流式下载到本地文件。
// 同一个 Fetcher 上的所有流共享限速器。
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	chunkSize int
}

// NewFetcher 创建 Fetcher
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	f := &Fetcher{client: client, chunkSize: opts.ChunkSize}
	if opts.RateLimit > 0 {
		burst := opts.ChunkSize
		if int64(burst) < opts.RateLimit {
			burst = int(opts.RateLimit)
		}
		f.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return f
}

// Request 一次下载
type Request struct {
	URL    string
	Dest   string
	Header http.Header

	// OnProgress 每收到一个分块调用一次；total 未知时为 0
	OnProgress func(downloaded, total int64)
}

// Stream 正在进行的一次下载，可暂停/恢复
type Stream struct {
	req     Request
	fetcher *Fetcher
	gate    gate

	downloaded atomic.Int64
	total      atomic.Int64

	done chan struct{}
	err  error
}

// Start 发起请求并在后台传输，返回句柄
func (f *Fetcher) Start(ctx context.Context, req Request) *Stream {
	s := &Stream{
		req:     req,
		fetcher: f,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		s.err = s.transfer(ctx)
		s.gate.close()
	}()
	return s
}

// Fetch 同步下载，不需要暂停控制时使用
func (f *Fetcher) Fetch(ctx context.Context, req Request) error {
	return f.Start(ctx, req).Wait()
}

// Pause 请求在下一个分块边界挂起。传输已结束或已暂停时返回 false
func (s *Stream) Pause() bool { return s.gate.pause() }

// Resume 解除挂起；未暂停时什么都不做并返回 false
func (s *Stream) Resume() bool { return s.gate.release() }

// Paused 当前是否处于暂停请求中
func (s *Stream) Paused() bool { return s.gate.isPaused() }

// Progress 已下载字节与总字节（未知为 0）
func (s *Stream) Progress() (downloaded, total int64) {
	return s.downloaded.Load(), s.total.Load()
}

// Done 传输结束（成功或失败）时关闭
func (s *Stream) Done() <-chan struct{} { return s.done }

// Wait 等待传输结束。成功意味着文件已 Sync 并关闭
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

func (s *Stream) transfer(ctx context.Context) error {
	body, total, err := s.fetcher.open(ctx, s.req.URL, s.req.Header)
	if err != nil {
		return &FetchError{URL: s.req.URL, Err: err}
	}
	defer body.Close()
	s.total.Store(total)

	out, err := os.Create(s.req.Dest)
	if err != nil {
		return &FetchError{URL: s.req.URL, Err: fmt.Errorf("create %s: %w", s.req.Dest, err)}
	}

	if err := s.copy(ctx, out, body, total); err != nil {
		out.Close()
		return &FetchError{URL: s.req.URL, Err: err}
	}

	// 落盘确认后才算完成
	if err := out.Sync(); err != nil {
		out.Close()
		return &FetchError{URL: s.req.URL, Err: fmt.Errorf("sync %s: %w", s.req.Dest, err)}
	}
	if err := out.Close(); err != nil {
		return &FetchError{URL: s.req.URL, Err: fmt.Errorf("close %s: %w", s.req.Dest, err)}
	}
	return nil
}

func (s *Stream) copy(ctx context.Context, dst io.Writer, src io.Reader, total int64) error {
	buf := make([]byte, s.fetcher.chunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if s.fetcher.limiter != nil {
				if err := s.fetcher.limiter.WaitN(ctx, n); err != nil {
					return err
				}
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("write %s: %w", s.req.Dest, err)
			}
			downloaded := s.downloaded.Add(int64(n))
			if s.req.OnProgress != nil {
				s.req.OnProgress(downloaded, total)
			}
			if err := s.gate.wait(ctx); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// open 发起 GET；m3u8 资源转换为按顺序拼接的分片流
func (f *Fetcher) open(ctx context.Context, url string, header http.Header) (io.ReadCloser, int64, error) {
	resp, err := f.get(ctx, url, header)
	if err != nil {
		return nil, 0, err
	}

	if engine.IsPlaylist(url, resp.Header.Get("Content-Type")) {
		resp.Body.Close()
		parser := &engine.HLSParser{Client: f.client, Headers: header}
		segments, err := parser.Segments(ctx, url)
		if err != nil {
			return nil, 0, err
		}
		return newSegmentReader(ctx, f, header, segments), 0, nil
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	return resp.Body, total, nil
}

func (f *Fetcher) get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}
	return resp, nil
}

// gate 协作式暂停：传输在每个分块之后调用 wait
type gate struct {
	mu     sync.Mutex
	paused bool
	closed bool
	resume chan struct{}
}

func (g *gate) pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.paused {
		return false
	}
	g.paused = true
	g.resume = make(chan struct{})
	return true
}

func (g *gate) release() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return false
	}
	g.paused = false
	close(g.resume)
	return true
}

func (g *gate) isPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// close 传输结束后不再接受暂停
func (g *gate) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if g.paused {
		g.paused = false
		close(g.resume)
	}
}

func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.paused {
		g.mu.Unlock()
		return nil
	}
	ch := g.resume
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
