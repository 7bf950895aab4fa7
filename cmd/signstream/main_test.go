package main

import (
	"io"
	"os"
	"testing"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-signstream/internal/config"
	"github.com/teslashibe/go-signstream/pkg/session"
)

func TestHealthURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"ws://localhost:5000/ws", "http://localhost:5000/health"},
		{"wss://signs.example.com/ws", "https://signs.example.com/health"},
		{"ws://host/api/ws", "http://host/api/health"},
	}

	for _, tc := range tests {
		t.Run(tc.endpoint, func(t *testing.T) {
			got, err := healthURL(tc.endpoint)
			if err != nil {
				t.Fatalf("healthURL() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("healthURL() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	root := newRootCommand(newCLI())
	for _, name := range []string{"stream", "loopback", "probe"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, cmd, err)
		}
	}
}

// execute runs args against a fresh root whose subcommands do nothing, leaving
// the resolved configuration in the returned cli.
func execute(t *testing.T, args ...string) *cli {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	c := newCLI()
	root := newRootCommand(c)
	for _, sub := range root.Commands() {
		sub.RunE = func(*cobra.Command, []string) error { return nil }
	}
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute(%v) error = %v", args, err)
	}
	return c
}

func TestEndpointFlagPerCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"stream", []string{"stream", "--endpoint", "ws://remote:9000"}, "ws://remote:9000"},
		{"probe", []string{"probe", "--endpoint", "ws://other:7000"}, "ws://other:7000"},
		{"stream default", []string{"stream"}, session.DefaultEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := execute(t, tt.args...)
			cfg, err := config.Session(c.v)
			if err != nil {
				t.Fatalf("Session() error = %v", err)
			}
			if cfg.Endpoint != tt.want {
				t.Errorf("Endpoint = %q, want %q", cfg.Endpoint, tt.want)
			}
		})
	}
}

func TestStreamFlagsApply(t *testing.T) {
	c := execute(t, "stream", "--fps", "24", "--mirror=false", "--viewer-addr", ":9090")

	cfg, err := config.Session(c.v)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if cfg.Camera.Constraints.FrameRate.Ideal != 24 || cfg.Camera.Mirrored {
		t.Errorf("camera = %+v, want 24 fps unmirrored", cfg.Camera)
	}
	if vc := config.ViewerConfig(c.v); vc.Addr != ":9090" {
		t.Errorf("viewer addr = %q, want :9090", vc.Addr)
	}
}

func TestLoopbackFlagsApply(t *testing.T) {
	c := execute(t, "loopback", "--addr", ":6001", "--translation", "B")

	lc := config.LoopbackConfig(c.v)
	if lc.Addr != ":6001" || lc.Translation != "B" {
		t.Errorf("loopback = %+v, want :6001 answering B", lc)
	}
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
