package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-signstream/internal/config"
	"github.com/teslashibe/go-signstream/internal/log"
	"github.com/teslashibe/go-signstream/pkg/letters"
	"github.com/teslashibe/go-signstream/pkg/loopback"
)

func newLoopbackCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loopback",
		Short: "Run a local inference service for development",
		Long: `Run a local inference service speaking the same wire protocol as the real one.

Without --model every frame is answered with --translation. With --model the
frames go through a hand landmark model (requires a build with -tags gocv) and
the landmarks are classified into letters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLoopback(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("addr", loopback.DefaultAddr, "listen address")
	f.String("translation", "", "fixed translation returned for every frame")
	f.String("model", "", "hand landmark ONNX model")
	f.Bool("annotate", true, "draw landmarks and the translation on replies")
	f.Float64("reply-quality", loopback.DefaultReplyQuality, "reply JPEG quality (0-1]")

	cmd.PreRunE = c.bindFlags(map[string]string{
		"addr":          config.KeyLoopbackAddr,
		"translation":   config.KeyLoopbackTranslation,
		"model":         config.KeyLoopbackModel,
		"annotate":      config.KeyLoopbackAnnotate,
		"reply-quality": config.KeyLoopbackQuality,
	})
	return cmd
}

func (c *cli) runLoopback(ctx context.Context) error {
	lc := config.LoopbackConfig(c.v)
	logger := log.L()

	var rec loopback.Recognizer = loopback.StaticRecognizer{Translation: lc.Translation}
	if lc.ModelPath != "" {
		mc := letters.DefaultConfig()
		mc.ModelPath = lc.ModelPath
		det, err := letters.NewLandmarkNet(mc)
		if err != nil {
			return err
		}
		hr := loopback.NewHandRecognizer(det, nil)
		defer hr.Close()
		rec = hr
		logger.Info("hand landmark model loaded", "model", lc.ModelPath)
	}

	srv, err := loopback.NewServer(
		loopback.WithAddr(lc.Addr),
		loopback.WithRecognizer(rec),
		loopback.WithAnnotate(lc.Annotate),
		loopback.WithReplyQuality(lc.Quality),
		loopback.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "stats", srv.Stats())
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
