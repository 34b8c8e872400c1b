package downloader

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const mergeTailLines = 8

// ErrFFmpegNotFound 没有可用的 ffmpeg
var ErrFFmpegNotFound = errors.New("downloader: ffmpeg not found")

// Merger 将音视频合并为一个容器
type Merger interface {
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) (string, error)
}

// MergeError ffmpeg 退出异常，Tail 为最后几行输出
type MergeError struct {
	Output string
	Err    error
	Tail   string
}

func (e *MergeError) Error() string {
	if e.Tail == "" {
		return fmt.Sprintf("merge %s: %v", e.Output, e.Err)
	}
	return fmt.Sprintf("merge %s: %v: %s", e.Output, e.Err, e.Tail)
}

func (e *MergeError) Unwrap() error { return e.Err }

// FFmpegMerger 调用外部 ffmpeg 做流复制（不转码）
type FFmpegMerger struct {
	// Path 为空时每次合并前调用 Resolve
	Path    string
	Resolve func() string
}

// Args 返回 ffmpeg 参数
func (m *FFmpegMerger) Args(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy", "-c:a", "copy",
		outputPath,
	}
}

func (m *FFmpegMerger) binary() string {
	if m.Path != "" {
		return m.Path
	}
	if m.Resolve != nil {
		return m.Resolve()
	}
	return ""
}

func (m *FFmpegMerger) Merge(ctx context.Context, videoPath, audioPath, outputPath string) (string, error) {
	bin := m.binary()
	if bin == "" {
		return "", ErrFFmpegNotFound
	}

	cmd := exec.CommandContext(ctx, bin, m.Args(videoPath, audioPath, outputPath)...)
	hideWindow(cmd)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &MergeError{Output: outputPath, Err: err, Tail: tail(string(out), mergeTailLines)}
	}
	info := strings.TrimSpace(string(out))
	if info == "" {
		info = "合并完成: " + outputPath
	}
	return info, nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\r\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
