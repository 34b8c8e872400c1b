package engine

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

const samplePlayinfo = `{
  "code": 0,
  "data": {
    "quality": 80,
    "dash": {
      "duration": 3725,
      "video": [
        {"id": 64, "baseUrl": "https://upos.example.com/720.m4s", "bandwidth": 900000},
        {"id": 80, "baseUrl": "https://upos.example.com/1080-avc.m4s", "bandwidth": 1200000},
        {"id": 80, "baseUrl": "https://upos.example.com/1080-hevc.m4s", "bandwidth": 1500000}
      ],
      "audio": [
        {"id": 30216, "baseUrl": "https://upos.example.com/64k.m4s", "bandwidth": 64000},
        {"id": 30280, "baseUrl": "https://upos.example.com/192k.m4s", "bandwidth": 192000}
      ]
    }
  }
}`

const sampleState = `{
  "bvid": "BV1xx411c7mD",
  "videoData": {
    "title": "测试: 标题/带*非法字符",
    "pic": "//i0.hdslb.com/bfs/archive/cover.jpg",
    "cid": 279786,
    "duration": 3725,
    "subtitle": {"list": [
      {"lan": "zh-CN", "subtitle_url": "//aisubtitle.hdslb.com/bfs/zh.json"},
      {"lan": "en", "subtitle_url": ""}
    ]}
  }
}`

func TestParsePlayInfo(t *testing.T) {
	info, err := ParsePlayInfo([]byte(samplePlayinfo), []byte(sampleState))
	if err != nil {
		t.Fatalf("ParsePlayInfo: %v", err)
	}
	if info.VideoURL != "https://upos.example.com/1080-hevc.m4s" || info.Quality != 80 {
		t.Errorf("video = %s (q%d)", info.VideoURL, info.Quality)
	}
	if info.AudioURL != "https://upos.example.com/192k.m4s" {
		t.Errorf("audio = %s", info.AudioURL)
	}
	if info.Cid != 279786 || info.BVID != "BV1xx411c7mD" {
		t.Errorf("ids = %d %s", info.Cid, info.BVID)
	}
	if info.Cover != "https://i0.hdslb.com/bfs/archive/cover.jpg" {
		t.Errorf("cover = %s", info.Cover)
	}
	if len(info.Subtitles) != 1 || info.Subtitles[0].URL != "https://aisubtitle.hdslb.com/bfs/zh.json" {
		t.Errorf("subtitles = %+v", info.Subtitles)
	}
	if got := info.DurationText(); got != "01:02:05" {
		t.Errorf("DurationText = %s", got)
	}
}

func TestParsePlayInfoWithoutDash(t *testing.T) {
	_, err := ParsePlayInfo([]byte(`{"data":{"durl":[{"url":"x.flv"}]}}`), nil)
	if !errors.Is(err, ErrNoPlayInfo) {
		t.Errorf("err = %v, want ErrNoPlayInfo", err)
	}
	if _, err := ParsePlayInfo([]byte(`not json`), nil); err == nil {
		t.Error("expected decode error")
	}
}

func TestFormatSecond(t *testing.T) {
	tests := map[int]string{0: "00:00:00", 59: "00:00:59", 61: "00:01:01", 36000: "10:00:00", -5: "00:00:00"}
	for in, want := range tests {
		if got := FormatSecond(in); got != want {
			t.Errorf("FormatSecond(%d) = %s, want %s", in, got, want)
		}
	}
}

func TestIsMediaURL(t *testing.T) {
	for url, want := range map[string]bool{
		"https://cdn.example.com/a/index.m3u8?x=1": true,
		"https://upos.example.com/30280.m4s":       true,
		"https://www.bilibili.com/video/BV1":       false,
		"https://i0.hdslb.com/cover.jpg":           false,
	} {
		if got := isMediaURL(url); got != want {
			t.Errorf("isMediaURL(%s) = %v", url, got)
		}
	}
}

func TestSplitSniffed(t *testing.T) {
	tests := []struct {
		name         string
		urls         []string
		video, audio string
	}{
		{
			name: "dash",
			urls: []string{
				"https://upos.example.com/upgcxcode/1/2/42/42-1-30280.m4s?e=x",
				"https://upos.example.com/upgcxcode/1/2/42/42-1-100050.m4s?e=x",
				"https://upos.example.com/upgcxcode/1/2/42/42-1-30280.m4s?e=y",
			},
			video: "https://upos.example.com/upgcxcode/1/2/42/42-1-100050.m4s?e=x",
			audio: "https://upos.example.com/upgcxcode/1/2/42/42-1-30280.m4s?e=x",
		},
		{
			name:  "hls",
			urls:  []string{"https://cdn.example.com/live/video/index.m3u8", "https://cdn.example.com/live/audio/index.m3u8"},
			video: "https://cdn.example.com/live/video/index.m3u8",
			audio: "https://cdn.example.com/live/audio/index.m3u8",
		},
		{
			name:  "video only",
			urls:  []string{"https://cdn.example.com/clip.mp4"},
			video: "https://cdn.example.com/clip.mp4",
		},
		{name: "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			video, audio := splitSniffed(tt.urls)
			if video != tt.video || audio != tt.audio {
				t.Errorf("splitSniffed = (%s, %s), want (%s, %s)", video, audio, tt.video, tt.audio)
			}
		})
	}
}

func TestNewDescriptorFromSniffedHLS(t *testing.T) {
	video, audio := splitSniffed([]string{
		"https://cdn.example.com/live/video/index.m3u8",
		"https://cdn.example.com/live/audio/index.m3u8",
	})
	s := DefaultSettings()
	s.DownloadDir = t.TempDir()
	desc, err := NewDescriptor(PlayInfo{Title: "直播回放", VideoURL: video, AudioURL: audio}, "https://live.example.com/1", s)
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	if desc.VideoURL != video || desc.AudioURL != audio {
		t.Errorf("descriptor streams = %s / %s", desc.VideoURL, desc.AudioURL)
	}

	if _, err := NewDescriptor(PlayInfo{VideoURL: video}, "https://live.example.com/1", s); !errors.Is(err, ErrNoAudioStream) {
		t.Errorf("video-only err = %v", err)
	}
}

func TestNewDescriptor(t *testing.T) {
	info, err := ParsePlayInfo([]byte(samplePlayinfo), []byte(sampleState))
	if err != nil {
		t.Fatal(err)
	}
	s := DefaultSettings()
	s.DownloadDir = t.TempDir()
	s.SESSDATA = "abc"
	s.DeleteIntermediates = true

	d, err := NewDescriptor(info, "https://www.bilibili.com/video/BV1xx411c7mD", s)
	if err != nil {
		t.Fatal(err)
	}
	if d.ID == "" {
		t.Error("descriptor has no id")
	}
	safe := "测试_ 标题_带_非法字符"
	if d.Dir != filepath.Join(s.DownloadDir, safe) {
		t.Errorf("Dir = %s", d.Dir)
	}
	if d.Stem() != filepath.Join(d.Dir, safe) || !strings.HasSuffix(d.VideoPath, "-video.m4s") {
		t.Errorf("paths = %s %s", d.OutputPath, d.VideoPath)
	}
	if !d.Options.DeleteIntermediates || !d.Options.Merge || d.SESSDATA != "abc" || d.UserAgent == "" {
		t.Errorf("descriptor = %+v", d)
	}

	other, _ := NewDescriptor(info, "", s)
	if other.ID == d.ID {
		t.Error("ids must be unique")
	}

	info.AudioURL = ""
	if _, err := NewDescriptor(info, "", s); !errors.Is(err, ErrNoAudioStream) {
		t.Errorf("err = %v, want ErrNoAudioStream", err)
	}
}
