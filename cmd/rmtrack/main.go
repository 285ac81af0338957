package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/albal/rmtrack/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	opts := appOpts{
		httpAddr:    cfg.RMTrack.HTTPAddr,
		swaggerPath: os.Getenv("swaggerPath"),
	}
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runApp(ctx, cfg, opts, defaultFactories()); err != nil && err != context.Canceled {
		panic(err)
	}
}
