package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-signstream/internal/config"
	"github.com/teslashibe/go-signstream/internal/log"
	"github.com/teslashibe/go-signstream/pkg/session"
	"github.com/teslashibe/go-signstream/pkg/web"
)

const shutdownTimeout = 5 * time.Second

func newStreamCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Capture from the camera and stream to the inference service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStream(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("endpoint", session.DefaultEndpoint, "inference service address (/ws is appended)")
	f.String("camera", "auto", "capture backend: auto, gocv or mock")
	f.Int("device", 0, "camera device index")
	f.Int("width", 640, "ideal capture width")
	f.Int("height", 480, "ideal capture height")
	f.Int("fps", 30, "ideal capture frame rate")
	f.Bool("mirror", true, "mirror frames like a selfie preview")
	f.Duration("interval", 66*time.Millisecond, "time between capture ticks")
	f.Float64("quality", 0.7, "outbound JPEG quality (0-1]")
	f.Bool("viewer", true, "serve the viewer dashboard")
	f.String("viewer-addr", ":8080", "viewer listen address")
	f.Bool("access-log", false, "log viewer requests")

	cmd.PreRunE = c.bindFlags(map[string]string{
		"endpoint":    config.KeyEndpoint,
		"camera":      config.KeyCameraBackend,
		"device":      config.KeyCameraDevice,
		"width":       config.KeyCameraWidth,
		"height":      config.KeyCameraHeight,
		"fps":         config.KeyCameraFPS,
		"mirror":      config.KeyCameraMirrored,
		"interval":    config.KeyInterval,
		"quality":     config.KeyQuality,
		"viewer":      config.KeyViewerEnabled,
		"viewer-addr": config.KeyViewerAddr,
		"access-log":  config.KeyViewerAccessLog,
	})
	return cmd
}

func (c *cli) runStream(ctx context.Context) error {
	cfg, err := config.Session(c.v)
	if err != nil {
		return err
	}
	logger := log.L()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(cfg, session.WithLogger(logger))

	vc := config.ViewerConfig(c.v)
	if vc.Enabled {
		viewer, err := web.NewServer(sess,
			web.WithAddr(vc.Addr),
			web.WithFrameQuality(vc.Quality),
			web.WithAccessLog(vc.AccessLog),
			web.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		viewer.StartAsync()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := viewer.Shutdown(sctx); err != nil {
				logger.Warn("viewer shutdown failed", "error", err)
			}
		}()
	}

	logger.Info("starting session", "session_id", sess.ID(), "endpoint", cfg.Endpoint)
	err = sess.Run(ctx)
	switch {
	case err == nil:
		logger.Info("interrupted, session ended")
		return nil
	case errors.Is(err, session.ErrConnectionClosed) && vc.Enabled:
		// The last frame and translation stay on the dashboard.
		logger.Warn("inference connection closed, viewer stays up until interrupted")
		<-ctx.Done()
		return nil
	default:
		return err
	}
}
