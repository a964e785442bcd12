package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/df07/go-wgpu-pathtracer/pkg/log"
	"github.com/df07/go-wgpu-pathtracer/web/server"
)

const shutdownTimeout = 5 * time.Second

// Serve renders continuously and exposes the renderer over HTTP until interrupted.
func Serve(ctx *cli.Context) error {
	setupLogging(ctx)

	console := server.NewConsole(200)
	log.SetSink(io.MultiWriter(os.Stdout, console))
	defer log.SetSink(os.Stdout)

	cfg, err := resolveConfig(ctx)
	if err != nil {
		return err
	}

	r, closeDevice, err := setupRenderer(cfg)
	if err != nil {
		return err
	}
	defer closeDevice()

	srv := server.NewServer(r, server.Options{
		ScenePath:    cfg.Scene,
		SettingsPath: cfg.SettingsPath,
		Output:       cfg.Output,
		ScenesDir:    ctx.String("scenes"),
		Seed:         cfg.Seed,
		FrameDelay:   ctx.Duration("frame-delay"),
		Console:      console,
	})

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		logger.Notice("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}()

	return srv.Start(ctx.String("addr"))
}
