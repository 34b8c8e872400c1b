package engine

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNoAudioStream 只有单一媒体流的页面无法走音视频分离的下载流程
var ErrNoAudioStream = errors.New("engine: play info has no audio stream")

// NewDescriptor 由页面信息和设置生成任务描述，路径布局：
//
//	{DownloadDir}/{title}/{title}.mp4
//	{DownloadDir}/{title}/{title}.jpg
//	{DownloadDir}/{title}/{title}-video.m4s
//	{DownloadDir}/{title}/{title}-audio.m4s
func NewDescriptor(info PlayInfo, pageURL string, s Settings) (TaskDescriptor, error) {
	if info.VideoURL == "" {
		return TaskDescriptor{}, ErrNoPlayInfo
	}
	if info.AudioURL == "" {
		return TaskDescriptor{}, ErrNoAudioStream
	}

	title := SanitizeFilename(info.Title)
	if title == "" {
		title = info.BVID
	}
	if title == "" {
		title = "video"
	}
	dir := filepath.Join(s.DownloadDir, title)
	base := filepath.Join(dir, title)

	return TaskDescriptor{
		ID:         uuid.New().String(),
		Title:      info.Title,
		PageURL:    pageURL,
		Cid:        info.Cid,
		CoverURL:   info.Cover,
		VideoURL:   info.VideoURL,
		AudioURL:   info.AudioURL,
		Subtitles:  info.Subtitles,
		Dir:        dir,
		OutputPath: base + ".mp4",
		CoverPath:  base + ".jpg",
		VideoPath:  base + "-video.m4s",
		AudioPath:  base + "-audio.m4s",
		Options:    s.Options(),
		UserAgent:  s.RandUserAgent(),
		SESSDATA:   s.SESSDATA,
	}, nil
}

// SanitizeFilename 替换文件名中的非法字符
func SanitizeFilename(name string) string {
	badChars := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range badChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	return strings.TrimSpace(result)
}
