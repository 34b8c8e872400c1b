package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bilireel/engine"
	"bilireel/engine/downloader"
	"bilireel/engine/store"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML settings file")
	addr := fs.String("addr", "", "Control address (overrides settings)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: reelctl serve [options]

Start the task engine and the control interface. Settings come from the
defaults, then -config, then REEL_* environment variables.

Options:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	logger := log.New(os.Stderr, "[reelctl] ", log.LstdFlags)

	settings := engine.DefaultSettings()
	if *configPath != "" {
		s, err := engine.LoadSettings(*configPath)
		if err != nil {
			logger.Printf("配置错误: %v", err)
			return ExitInvalidArgs
		}
		settings = s
	}
	if err := settings.LoadFromEnv(); err != nil {
		logger.Printf("配置错误: %v", err)
		return ExitInvalidArgs
	}
	if *addr != "" {
		settings.ControlAddr = *addr
	}
	if err := settings.Validate(); err != nil {
		logger.Printf("配置错误: %v", err)
		return ExitInvalidArgs
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, err := store.Open(ctx, settings.Store)
	if err != nil {
		logger.Printf("打开任务存储失败: %v", err)
		return ExitGeneralError
	}
	manager, err := engine.NewManager(backend, logger)
	if err != nil {
		backend.Close()
		logger.Printf("加载任务失败: %v", err)
		return ExitGeneralError
	}

	env := engine.NewEnvResolver(settings.FFmpegPath)
	service := downloader.NewService(manager,
		downloader.NewFetcher(downloader.FetcherOptions{RateLimit: settings.RateLimit}),
		&downloader.FFmpegMerger{Resolve: env.GetFFmpegPath},
		logger)
	defer service.Close()

	sniffer := engine.NewSniffer(settings.DevToolsURL, logger)
	resolve := func(ctx context.Context, pageURL string) (engine.TaskDescriptor, error) {
		info, err := sniffer.Resolve(ctx, pageURL)
		if err != nil {
			return engine.TaskDescriptor{}, err
		}
		return engine.NewDescriptor(info, pageURL, settings)
	}

	server := engine.NewControlServer(settings.ControlAddr, service, resolve, logger)
	server.SESSDATA = settings.SESSDATA
	server.UserAgent = settings.RandUserAgent()
	if err := server.Start(); err != nil {
		logger.Printf("%v", err)
		return ExitGeneralError
	}

	<-ctx.Done()
	logger.Println("收到退出信号，正在关闭...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = server.Shutdown(shutdownCtx)
	return ExitSuccess
}
