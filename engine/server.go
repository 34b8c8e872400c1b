package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"
)

// TaskControl 控制接口背后的任务服务
type TaskControl interface {
	Submit(desc TaskDescriptor) error
	Pause(id string) bool
	Resume(id string) bool
	Remove(id string) error
	Tasks() []TaskRecord
}

// DescriptorResolver 根据视频页地址生成任务描述
type DescriptorResolver func(ctx context.Context, pageURL string) (TaskDescriptor, error)

// ControlServer 本地 HTTP 控制接口，另带一个给前端预览封面用的代理
type ControlServer struct {
	addr    string
	control TaskControl
	resolve DescriptorResolver
	logger  *log.Logger
	client  *http.Client

	// 代理请求使用的 UA 与 Cookie
	UserAgent string
	SESSDATA  string

	srv *http.Server
}

// NewControlServer resolve 可以为 nil，此时 POST /tasks 只接受完整描述
func NewControlServer(addr string, control TaskControl, resolve DescriptorResolver, logger *log.Logger) *ControlServer {
	if logger == nil {
		logger = log.Default()
	}
	return &ControlServer{
		addr:      addr,
		control:   control,
		resolve:   resolve,
		logger:    logger,
		client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: DefaultUserAgents[0],
	}
}

// Handler 路由
func (s *ControlServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", s.handleList)
	mux.HandleFunc("POST /tasks", s.handleAdd)
	mux.HandleFunc("POST /tasks/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /tasks/{id}/resume", s.handleResume)
	mux.HandleFunc("DELETE /tasks/{id}", s.handleDelete)
	mux.HandleFunc("GET /proxy", s.handleProxy)
	return mux
}

// Start 监听端口并在后台提供服务
func (s *ControlServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.logger.Printf("控制接口启动: http://%s", ln.Addr())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("控制接口异常退出: %v", err)
		}
	}()
	return nil
}

// Shutdown 优雅关闭
func (s *ControlServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *ControlServer) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.control.Tasks())
}

// handleAdd 请求体为完整描述，或 {"url": "<视频页>"}
func (s *ControlServer) handleAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskDescriptor
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	desc := body.TaskDescriptor
	if desc.VideoURL == "" {
		if body.URL == "" || s.resolve == nil {
			http.Error(w, "缺少 videoUrl 或 url", http.StatusBadRequest)
			return
		}
		if _, err := url.ParseRequestURI(body.URL); err != nil {
			http.Error(w, "Invalid URL", http.StatusBadRequest)
			return
		}
		resolved, err := s.resolve(r.Context(), body.URL)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		desc = resolved
	}
	if desc.ID == "" {
		http.Error(w, "缺少 id", http.StatusBadRequest)
		return
	}
	if desc.SESSDATA == "" {
		desc.SESSDATA = s.SESSDATA
	}
	if desc.UserAgent == "" {
		desc.UserAgent = s.UserAgent
	}

	if err := s.control.Submit(desc); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrTaskExists) {
			code = http.StatusConflict
		}
		http.Error(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": desc.ID})
}

func (s *ControlServer) handlePause(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.control.Pause(r.PathValue("id"))})
}

func (s *ControlServer) handleResume(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.control.Resume(r.PathValue("id"))})
}

func (s *ControlServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.control.Remove(r.PathValue("id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ErrUnknownTask):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrTaskActive):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleProxy 转发封面等资源，补上防盗链需要的请求头
func (s *ControlServer) handleProxy(w http.ResponseWriter, r *http.Request) {
	targetURL := r.URL.Query().Get("url")
	referer := r.URL.Query().Get("referer")
	if targetURL == "" {
		http.Error(w, "缺少 url 参数", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, targetURL, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Header.Set("User-Agent", s.UserAgent)
	if s.SESSDATA != "" {
		req.Header.Set("Cookie", "SESSDATA="+s.SESSDATA)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	} else if u, err := url.Parse(targetURL); err == nil {
		// 没传时用目标域名根路径
		req.Header.Set("Referer", fmt.Sprintf("%s://%s/", u.Scheme, u.Host))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	// 允许 Wails 前端跨域读取
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
