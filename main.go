package main

import (
	"embed"
	"flag"
	"log"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/windows"

	"bilireel/engine"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	configPath := flag.String("config", "", "YAML 配置文件路径")
	flag.Parse()

	logger := log.New(os.Stderr, "[bilireel] ", log.LstdFlags)

	settings, err := loadSettings(*configPath)
	if err != nil {
		logger.Fatalf("配置错误: %v", err)
	}

	app, err := NewApp(settings, logger)
	if err != nil {
		logger.Fatalf("初始化失败: %v", err)
	}

	err = wails.Run(&options.App{
		Title:     "BiliReel",
		Width:     960,
		Height:    640,
		MinWidth:  720,
		MinHeight: 480,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 26, G: 27, B: 30, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
		Windows: &windows.Options{
			WebviewIsTransparent: false,
			WindowIsTranslucent:  false,
		},
	})
	if err != nil {
		logger.Println("Error:", err.Error())
	}
}

// loadSettings 默认值 <- 配置文件 <- REEL_ 环境变量
func loadSettings(path string) (engine.Settings, error) {
	settings := engine.DefaultSettings()
	if path != "" {
		s, err := engine.LoadSettings(path)
		if err != nil {
			return settings, err
		}
		settings = s
	}
	if err := settings.LoadFromEnv(); err != nil {
		return settings, err
	}
	return settings, settings.Validate()
}
