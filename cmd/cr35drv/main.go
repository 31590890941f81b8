package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/zavinator/cr35drv/internal/config"
	"github.com/zavinator/cr35drv/internal/imaging"
	"github.com/zavinator/cr35drv/internal/proto"
	"github.com/zavinator/cr35drv/internal/rotatelog"
	"github.com/zavinator/cr35drv/internal/session"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: cr35drv <config.yaml>")
		os.Exit(1)
	}
	cfgPath := os.Args[1]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config validation failed: %v\n", err)
		os.Exit(1)
	}
	config.Normalize(cfg)

	closeLog := setupLogging(cfg.Logging)
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		slog.Error("create output directory failed", "dir", cfg.Output.Directory, "err", err)
		os.Exit(1)
	}

	addr := net.JoinHostPort(cfg.Device.Host, strconv.Itoa(cfg.Device.Port))
	sess := session.New(addr, buildHandlers(cfg.Output))

	slog.Info("connecting", "addr", addr)
	if err := sess.Connect(ctx); err != nil {
		slog.Error("connect failed", "err", err)
		os.Exit(1)
	}

	waitForReady(ctx, sess)
	slog.Info("starting acquisition", "mode", cfg.Device.DefaultMode)
	sess.Start(cfg.Device.DefaultMode)

	<-ctx.Done()
	slog.Info("shutting down")
	sess.Disconnect()
	slog.Info("shutdown complete")
}

// waitForReady blocks briefly until the login handshake has at least
// reached Ready, so the first Start call lands on a state the device
// will accept rather than racing the handshake.
func waitForReady(ctx context.Context, sess *session.Session) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(10 * time.Second)
	for {
		if sess.State().Value != proto.StateUnknown {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			slog.Warn("handshake did not reach Ready before timeout, starting anyway")
			return
		case <-ticker.C:
		}
	}
}

func buildHandlers(out config.OutputConfig) session.Handlers {
	return session.Handlers{
		Connected:    func() { slog.Info("device connected") },
		Disconnected: func() { slog.Info("device disconnected") },
		Error:        func(err error) { slog.Error("session error", "err", err) },
		Started:      func() { slog.Info("acquisition started") },
		Stopped:      func() { slog.Info("acquisition stopped") },
		ModeListUpdated: func(modes []string) {
			slog.Info("mode list updated", "count", len(modes))
		},
		FrameReady: func(f *proto.Frame) {
			if err := saveFrame(f, out); err != nil {
				slog.Error("save frame failed", "err", err)
			}
		},
	}
}

func saveFrame(f *proto.Frame, out config.OutputConfig) error {
	name := fmt.Sprintf("frame-%dx%d-%d.%s", f.Width, f.Height, time.Now().UnixNano(), out.Format)
	path := filepath.Join(out.Directory, name)

	switch out.Format {
	case "pdf":
		if err := imaging.WriteSeriesPDF([]*proto.Frame{f}, out.DPI, path); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
	default:
		if err := imaging.WritePNG(f, path); err != nil {
			return fmt.Errorf("write png: %w", err)
		}
	}
	slog.Info("frame saved", "path", path, "width", f.Width, "height", f.Height)
	return nil
}

// setupLogging wires slog to a rotating file when logging.path is set, and
// to stderr otherwise. The returned func must be deferred to flush/close
// the underlying file.
func setupLogging(cfg config.LoggingConfig) func() {
	level := parseLogLevel(cfg.Level)

	if cfg.Path == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return func() {}
	}

	w, err := rotatelog.New(cfg.Path, int64(cfg.MaxSizeMB)*1024*1024)
	if err != nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		slog.Error("rotating log setup failed, falling back to stderr", "err", err)
		return func() {}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return func() { w.Close() }
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
