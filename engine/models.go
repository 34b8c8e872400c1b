package engine

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Subtitle 单条字幕来源
type Subtitle struct {
	Lang string `json:"lang"`
	URL  string `json:"url"`
}

// TaskOptions 单个任务的开关，创建时由 Settings 填充
type TaskOptions struct {
	Cover               bool `json:"cover"`
	Subtitle            bool `json:"subtitle"`
	Danmaku             bool `json:"danmaku"`
	Merge               bool `json:"merge"`
	DeleteIntermediates bool `json:"deleteIntermediates"`
}

// TaskDescriptor 描述一个下载任务，创建后不再修改
type TaskDescriptor struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	PageURL  string `json:"pageUrl"` // 作为 Referer 发送
	Cid      int64  `json:"cid"`
	CoverURL string `json:"coverUrl"`
	VideoURL string `json:"videoUrl"`
	AudioURL string `json:"audioUrl"`

	Subtitles []Subtitle `json:"subtitles"`

	Dir        string `json:"dir"`
	OutputPath string `json:"outputPath"` // 合并后的最终文件
	CoverPath  string `json:"coverPath"`
	VideoPath  string `json:"videoPath"`
	AudioPath  string `json:"audioPath"`

	Options TaskOptions `json:"options"`

	// 请求头相关
	UserAgent string `json:"userAgent,omitempty"`
	SESSDATA  string `json:"-"`
}

// Stem 最终文件去掉扩展名，用于字幕/弹幕旁挂文件命名
func (d TaskDescriptor) Stem() string {
	return strings.TrimSuffix(d.OutputPath, filepath.Ext(d.OutputPath))
}

// SidecarPath 返回 <stem><suffix>
func (d TaskDescriptor) SidecarPath(suffix string) string {
	return d.Stem() + suffix
}

// TaskRecord 存储层保存的记录：描述 + 当前状态
type TaskRecord struct {
	TaskDescriptor
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
}

// ProgressEvent 发往前端的状态事件，Progress 为 nil 时不携带进度
type ProgressEvent struct {
	ID       string `json:"id"`
	Status   Status `json:"status"`
	Progress *int   `json:"progress,omitempty"`
}

// WithProgress 构造带进度的事件
func WithProgress(id string, status Status, progress int) ProgressEvent {
	return ProgressEvent{ID: id, Status: status, Progress: &progress}
}

func (e ProgressEvent) String() string {
	if e.Progress == nil {
		return fmt.Sprintf("{id:%s status:%s}", e.ID, e.Status)
	}
	return fmt.Sprintf("{id:%s status:%s progress:%d}", e.ID, e.Status, *e.Progress)
}

// DanmakuRequest 请求外部组件生成弹幕文件
type DanmakuRequest struct {
	ID    string `json:"id"`
	Cid   int64  `json:"cid"`
	Title string `json:"title"`
	Path  string `json:"path"`
}
