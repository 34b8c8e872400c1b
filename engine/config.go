package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultUserAgents 未配置时使用的 UA 池
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// Settings 应用配置
type Settings struct {
	DownloadDir         string   `yaml:"download_dir"`
	SESSDATA            string   `yaml:"sessdata"`
	UserAgents          []string `yaml:"user_agents"`
	Cover               bool     `yaml:"cover"`
	Subtitle            bool     `yaml:"subtitle"`
	Danmaku             bool     `yaml:"danmaku"`
	Merge               bool     `yaml:"merge"`
	DeleteIntermediates bool     `yaml:"delete_intermediates"`
	FFmpegPath          string   `yaml:"ffmpeg_path"`
	RateLimit           int64    `yaml:"-"` // 字节/秒，0 表示不限速
	Store               string   `yaml:"store"`
	DevToolsURL         string   `yaml:"devtools_url"`
	ControlAddr         string   `yaml:"control_addr"`
}

// yamlSettings 用于解析可读的限速字符串（如 "4MB"）
type yamlSettings struct {
	Settings  `yaml:",inline"`
	RateLimit string `yaml:"rate_limit"`
}

// DefaultSettings 默认配置：下载到可执行文件旁的 Downloads 目录
func DefaultSettings() Settings {
	exePath, _ := os.Executable()
	baseDir := filepath.Dir(exePath)
	return Settings{
		DownloadDir: filepath.Join(baseDir, "Downloads"),
		UserAgents:  DefaultUserAgents,
		Cover:       true,
		Merge:       true,
		Store:       filepath.Join(baseDir, "tasks.json"),
		DevToolsURL: "ws://127.0.0.1:9222/",
		ControlAddr: "127.0.0.1:8086",
	}
}

// LoadSettings 读取 YAML 配置，未设置的字段保留默认值
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	ys := yamlSettings{Settings: DefaultSettings()}
	if err := yaml.Unmarshal(data, &ys); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}

	s := ys.Settings
	if ys.RateLimit != "" {
		n, err := ParseBytes(ys.RateLimit)
		if err != nil {
			return Settings{}, fmt.Errorf("parse rate_limit: %w", err)
		}
		s.RateLimit = n
	}
	return s, nil
}

// LoadFromEnv 使用 REEL_ 前缀的环境变量覆盖配置
func (s *Settings) LoadFromEnv() error {
	if v := os.Getenv("REEL_DOWNLOAD_DIR"); v != "" {
		s.DownloadDir = v
	}
	if v := os.Getenv("REEL_SESSDATA"); v != "" {
		s.SESSDATA = v
	}
	if v := os.Getenv("REEL_FFMPEG_PATH"); v != "" {
		s.FFmpegPath = v
	}
	if v := os.Getenv("REEL_STORE"); v != "" {
		s.Store = v
	}
	if v := os.Getenv("REEL_DEVTOOLS_URL"); v != "" {
		s.DevToolsURL = v
	}
	if v := os.Getenv("REEL_CONTROL_ADDR"); v != "" {
		s.ControlAddr = v
	}
	if v := os.Getenv("REEL_RATE_LIMIT"); v != "" {
		n, err := ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse REEL_RATE_LIMIT: %w", err)
		}
		s.RateLimit = n
	}
	for name, dst := range map[string]*bool{
		"REEL_COVER":                &s.Cover,
		"REEL_SUBTITLE":             &s.Subtitle,
		"REEL_DANMAKU":              &s.Danmaku,
		"REEL_MERGE":                &s.Merge,
		"REEL_DELETE_INTERMEDIATES": &s.DeleteIntermediates,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		*dst = b
	}
	return nil
}

// Validate 校验配置
func (s *Settings) Validate() error {
	if s.DownloadDir == "" {
		return errors.New("settings: download_dir is required")
	}
	if s.Store == "" {
		return errors.New("settings: store is required")
	}
	if s.RateLimit < 0 {
		return errors.New("settings: rate_limit must not be negative")
	}
	return nil
}

// Options 根据配置生成任务开关
func (s Settings) Options() TaskOptions {
	return TaskOptions{
		Cover:               s.Cover,
		Subtitle:            s.Subtitle,
		Danmaku:             s.Danmaku,
		Merge:               s.Merge,
		DeleteIntermediates: s.DeleteIntermediates,
	}
}

// RandUserAgent 从 UA 池随机取一个
func (s Settings) RandUserAgent() string {
	pool := s.UserAgents
	if len(pool) == 0 {
		pool = DefaultUserAgents
	}
	return pool[rand.IntN(len(pool))]
}

// ParseBytes 解析 "256KB"、"4MB" 这类字符串
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	var multiplier int64 = 1

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte string: %q", s)
	}
	return int64(value * float64(multiplier)), nil
}
