package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ErrNoPlayInfo 页面上既没有 __playinfo__ 也没有嗅探到媒体地址
var ErrNoPlayInfo = errors.New("engine: no play info on page")

// PlayInfo 从视频页解析出的下载信息
type PlayInfo struct {
	Title     string     `json:"title"`
	BVID      string     `json:"bvid"`
	Cid       int64      `json:"cid"`
	Cover     string     `json:"cover"`
	Duration  int        `json:"duration"` // 秒
	Quality   int        `json:"quality"`
	VideoURL  string     `json:"videoUrl"`
	AudioURL  string     `json:"audioUrl"`
	Subtitles []Subtitle `json:"subtitles"`
}

// DurationText 形如 01:02:03
func (p PlayInfo) DurationText() string {
	return FormatSecond(p.Duration)
}

// FormatSecond 秒数转 hh:mm:ss
func FormatSecond(total int) string {
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

type dashStream struct {
	ID        int      `json:"id"`
	BaseURL   string   `json:"baseUrl"`
	BackupURL []string `json:"backupUrl"`
	Bandwidth int      `json:"bandwidth"`
}

type playInfoPayload struct {
	Data struct {
		Quality int `json:"quality"`
		Dash    *struct {
			Duration int          `json:"duration"`
			Video    []dashStream `json:"video"`
			Audio    []dashStream `json:"audio"`
		} `json:"dash"`
	} `json:"data"`
}

type initialStatePayload struct {
	BVID      string `json:"bvid"`
	VideoData struct {
		Title    string `json:"title"`
		Pic      string `json:"pic"`
		Cid      int64  `json:"cid"`
		Duration int    `json:"duration"`
		Subtitle struct {
			List []struct {
				Lan         string `json:"lan"`
				SubtitleURL string `json:"subtitle_url"`
			} `json:"list"`
		} `json:"subtitle"`
	} `json:"videoData"`
}

// best 清晰度 id 最高者优先，同档取带宽最大
func best(streams []dashStream) (dashStream, bool) {
	if len(streams) == 0 {
		return dashStream{}, false
	}
	sorted := append([]dashStream(nil), streams...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ID != sorted[j].ID {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].Bandwidth > sorted[j].Bandwidth
	})
	return sorted[0], true
}

// ParsePlayInfo 解析 window.__playinfo__ 与 window.__INITIAL_STATE__ 的 JSON。
// initialState 可以为空。
func ParsePlayInfo(playinfo, initialState []byte) (PlayInfo, error) {
	var info PlayInfo

	var pi playInfoPayload
	if err := json.Unmarshal(playinfo, &pi); err != nil {
		return info, fmt.Errorf("decode playinfo: %w", err)
	}
	dash := pi.Data.Dash
	if dash == nil {
		return info, fmt.Errorf("playinfo without dash: %w", ErrNoPlayInfo)
	}
	video, ok := best(dash.Video)
	if !ok {
		return info, fmt.Errorf("playinfo without video: %w", ErrNoPlayInfo)
	}
	info.VideoURL = video.BaseURL
	info.Quality = video.ID
	if audio, ok := best(dash.Audio); ok {
		info.AudioURL = audio.BaseURL
	}
	info.Duration = dash.Duration

	if len(initialState) == 0 || string(initialState) == "null" {
		return info, nil
	}
	var st initialStatePayload
	if err := json.Unmarshal(initialState, &st); err != nil {
		return info, fmt.Errorf("decode initial state: %w", err)
	}
	info.Title = st.VideoData.Title
	info.BVID = st.BVID
	info.Cid = st.VideoData.Cid
	info.Cover = normalizeURL(st.VideoData.Pic)
	if info.Duration == 0 {
		info.Duration = st.VideoData.Duration
	}
	for _, s := range st.VideoData.Subtitle.List {
		if s.SubtitleURL == "" {
			continue
		}
		info.Subtitles = append(info.Subtitles, Subtitle{Lang: s.Lan, URL: normalizeURL(s.SubtitleURL)})
	}
	return info, nil
}

// normalizeURL 补全协议相对地址 //i0.hdslb.com/...
func normalizeURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// Sniffer 通过调试端口连接已打开的浏览器，读取视频页的播放信息
type Sniffer struct {
	devtoolsURL string
	logger      *log.Logger
}

// NewSniffer devtoolsURL 形如 ws://127.0.0.1:9222/
func NewSniffer(devtoolsURL string, logger *log.Logger) *Sniffer {
	if logger == nil {
		logger = log.Default()
	}
	return &Sniffer{devtoolsURL: devtoolsURL, logger: logger}
}

// Resolve 打开页面并读取播放信息；页面没有 __playinfo__ 时
// 退回到嗅探到的媒体请求，分出视频流和音频流（m4s 或 m3u8）
func (s *Sniffer) Resolve(ctx context.Context, pageURL string) (PlayInfo, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, s.devtoolsURL)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var (
		mu     sync.Mutex
		sniffs []string
	)
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventRequestWillBeSent); ok && isMediaURL(e.Request.URL) {
			mu.Lock()
			sniffs = append(sniffs, e.Request.URL)
			mu.Unlock()
		}
	})

	var playinfo, state, title string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Title(&title),
		chromedp.Evaluate(`JSON.stringify(window.__playinfo__ || null)`, &playinfo),
		chromedp.Evaluate(`JSON.stringify(window.__INITIAL_STATE__ || null)`, &state),
	)
	if err != nil {
		return PlayInfo{}, fmt.Errorf("load %s: %w", pageURL, err)
	}

	if playinfo != "" && playinfo != "null" {
		info, err := ParsePlayInfo([]byte(playinfo), []byte(state))
		if err != nil {
			return PlayInfo{}, err
		}
		if info.Title == "" {
			info.Title = title
		}
		s.logger.Printf("页面解析成功: %s (%s, 清晰度 %d)", info.Title, info.DurationText(), info.Quality)
		return info, nil
	}

	mu.Lock()
	video, audio := splitSniffed(sniffs)
	mu.Unlock()
	if video == "" {
		return PlayInfo{}, ErrNoPlayInfo
	}
	s.logger.Printf("嗅探到媒体地址: 视频 %s 音频 %s", video, audio)
	return PlayInfo{Title: title, VideoURL: video, AudioURL: audio}, nil
}

// DASH 音频流的文件名以 302xx 结尾，如 xxx-1-30280.m4s
var dashAudioRe = regexp.MustCompile(`-302\d{2}\.m4s$`)

func isAudioURL(rawURL string) bool {
	p := strings.ToLower(rawURL)
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return dashAudioRe.MatchString(p) || strings.Contains(p, "audio")
}

// splitSniffed 按请求顺序取第一个视频流和第一个音频流
func splitSniffed(urls []string) (video, audio string) {
	for _, u := range urls {
		if isAudioURL(u) {
			if audio == "" {
				audio = u
			}
		} else if video == "" {
			video = u
		}
	}
	return video, audio
}

// isMediaURL 判断是否为需要的媒体资源
func isMediaURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, ".m3u8") ||
		strings.Contains(lower, ".m4s") ||
		strings.Contains(lower, ".mp4")
}
