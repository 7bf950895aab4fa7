package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-signstream/internal/config"
	"github.com/teslashibe/go-signstream/internal/httpc"
	"github.com/teslashibe/go-signstream/internal/log"
	"github.com/teslashibe/go-signstream/pkg/camera"
	"github.com/teslashibe/go-signstream/pkg/protocol"
	"github.com/teslashibe/go-signstream/pkg/render"
	"github.com/teslashibe/go-signstream/pkg/session"
	"github.com/teslashibe/go-signstream/pkg/transport"
)

func newProbeCommand(c *cli) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Send one synthetic frame to the inference service and report the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return c.runProbe(ctx, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("endpoint", session.DefaultEndpoint, "inference service address (/ws is appended)")
	f.DurationVar(&timeout, "timeout", 10*time.Second, "overall probe timeout")

	cmd.PreRunE = c.bindFlags(map[string]string{
		"endpoint": config.KeyEndpoint,
	})
	return cmd
}

func (c *cli) runProbe(ctx context.Context, out io.Writer) error {
	endpoint, err := transport.Endpoint(c.v.GetString(config.KeyEndpoint))
	if err != nil {
		return err
	}
	logger := log.L()

	if health, err := healthURL(endpoint); err == nil {
		fmt.Fprintf(out, "health   %s\n", probeHealth(ctx, health))
	}

	// A synthetic frame from the mock camera at the default resolution.
	camCfg := camera.DefaultConfig()
	camCfg.Backend = camera.BackendMock
	dev := camera.NewMockDevice(camCfg, log.Discard())
	defer camera.Release(dev)

	buf := dev.Settings().NewBuffer()
	if err := dev.Capture(ctx, buf); err != nil {
		return err
	}
	frame, err := protocol.EncodeFrame(buf)
	if err != nil {
		return err
	}

	ch := transport.New(transport.WithLogger(logger))
	defer ch.Close()

	results := make(chan protocol.Result, 1)
	ch.OnResult(func(r protocol.Result) {
		select {
		case results <- r:
		default:
		}
	})

	start := time.Now()
	if err := ch.Open(ctx, endpoint); err != nil {
		return err
	}
	fmt.Fprintf(out, "connect  %s (%v)\n", endpoint, time.Since(start).Round(time.Millisecond))

	sent := time.Now()
	if err := ch.Send(ctx, frame); err != nil {
		return err
	}
	fmt.Fprintf(out, "sent     %d bytes (%dx%d)\n", frame.Len(), frame.Width, frame.Height)

	var res protocol.Result
	select {
	case res = <-results:
	case <-ch.Done():
		return fmt.Errorf("probe: connection closed before a reply")
	case <-ctx.Done():
		return fmt.Errorf("probe: no reply: %w", ctx.Err())
	}
	fmt.Fprintf(out, "reply    %s in %v\n", res.Status, time.Since(sent).Round(time.Millisecond))

	if !res.Success() {
		return nil
	}
	fmt.Fprintf(out, "text     %q\n", res.Translation)

	// Decode the annotated frame the same way the session does.
	surface := render.NewSurface()
	r := render.New(surface, render.NewText(""), render.WithLogger(log.Discard()))
	r.Handle(ctx, res)
	r.Wait()
	if w, h := surface.Size(); w > 0 {
		fmt.Fprintf(out, "frame    %dx%d\n", w, h)
	} else if res.Image != nil {
		fmt.Fprintf(out, "frame    undecodable (%d bytes)\n", res.Image.Len())
	} else {
		fmt.Fprintln(out, "frame    none")
	}
	return nil
}

// healthURL maps ws://host/ws to http://host/health.
func healthURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path = strings.TrimSuffix(u.Path, transport.Path) + "/health"
	return u.String(), nil
}

func probeHealth(ctx context.Context, target string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err.Error()
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return "unreachable: " + err.Error()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.Status
}
