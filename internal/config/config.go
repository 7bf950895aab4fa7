// Package config loads configuration for the signstream commands.
//
// Sources, lowest precedence first: built-in defaults, an optional
// signstream.yaml, SIGNSTREAM_* environment variables, command-line flags.
// Nested keys map to environment variables with dots replaced by
// underscores, e.g. camera.backend is SIGNSTREAM_CAMERA_BACKEND.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/teslashibe/go-signstream/pkg/camera"
	"github.com/teslashibe/go-signstream/pkg/capture"
	"github.com/teslashibe/go-signstream/pkg/loopback"
	"github.com/teslashibe/go-signstream/pkg/protocol"
	"github.com/teslashibe/go-signstream/pkg/render"
	"github.com/teslashibe/go-signstream/pkg/session"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "SIGNSTREAM"

// FileName is the config file searched for when none is given.
const FileName = "signstream"

// Keys.
const (
	KeyLogLevel = "log.level"

	KeyEndpoint         = "endpoint"
	KeyInterval         = "capture.interval"
	KeyQuality          = "capture.quality"
	KeyHandshakeTimeout = "capture.handshake_timeout"
	KeyPlaceholder      = "placeholder"

	KeyCameraBackend  = "camera.backend"
	KeyCameraDevice   = "camera.device"
	KeyCameraWidth    = "camera.width"
	KeyCameraHeight   = "camera.height"
	KeyCameraFPS      = "camera.fps"
	KeyCameraMinFPS   = "camera.min_fps"
	KeyCameraMirrored = "camera.mirrored"
	KeyCameraFacing   = "camera.facing"

	KeyViewerEnabled   = "viewer.enabled"
	KeyViewerAddr      = "viewer.addr"
	KeyViewerQuality   = "viewer.quality"
	KeyViewerAccessLog = "viewer.access_log"

	KeyLoopbackAddr        = "loopback.addr"
	KeyLoopbackTranslation = "loopback.translation"
	KeyLoopbackModel       = "loopback.model"
	KeyLoopbackAnnotate    = "loopback.annotate"
	KeyLoopbackQuality     = "loopback.quality"
)

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()

	cam := camera.DefaultConfig()
	v.SetDefault(KeyLogLevel, "info")

	v.SetDefault(KeyEndpoint, session.DefaultEndpoint)
	v.SetDefault(KeyInterval, capture.DefaultInterval)
	v.SetDefault(KeyQuality, protocol.FrameQuality)
	v.SetDefault(KeyHandshakeTimeout, 10*time.Second)
	v.SetDefault(KeyPlaceholder, render.DefaultPlaceholder)

	v.SetDefault(KeyCameraBackend, string(cam.Backend))
	v.SetDefault(KeyCameraDevice, cam.DeviceIndex)
	v.SetDefault(KeyCameraWidth, cam.Constraints.Width.Ideal)
	v.SetDefault(KeyCameraHeight, cam.Constraints.Height.Ideal)
	v.SetDefault(KeyCameraFPS, cam.Constraints.FrameRate.Ideal)
	v.SetDefault(KeyCameraMinFPS, cam.Constraints.FrameRate.Min)
	v.SetDefault(KeyCameraMirrored, cam.Mirrored)
	v.SetDefault(KeyCameraFacing, string(cam.Constraints.Facing))

	v.SetDefault(KeyViewerEnabled, true)
	v.SetDefault(KeyViewerAddr, ":8080")
	v.SetDefault(KeyViewerQuality, 0.8)
	v.SetDefault(KeyViewerAccessLog, false)

	v.SetDefault(KeyLoopbackAddr, loopback.DefaultAddr)
	v.SetDefault(KeyLoopbackTranslation, "")
	v.SetDefault(KeyLoopbackModel, "")
	v.SetDefault(KeyLoopbackAnnotate, true)
	v.SetDefault(KeyLoopbackQuality, loopback.DefaultReplyQuality)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads a config file. With an empty path it looks for signstream.yaml
// in the working directory, $HOME/.signstream and /etc/signstream; a missing
// file is not an error.
func Load(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	for _, dir := range []string{".", "$HOME/.signstream", "/etc/signstream"} {
		v.AddConfigPath(os.ExpandEnv(dir))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// BindFlags binds flags to keys. bindings maps flag name to key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, bindings map[string]string) error {
	for name, key := range bindings {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("config: no flag %q for %s", name, key)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("config: bind %s: %w", name, err)
		}
	}
	return nil
}

// Session builds and validates the session configuration.
func Session(v *viper.Viper) (session.Config, error) {
	cfg := session.DefaultConfig()
	cfg.Endpoint = v.GetString(KeyEndpoint)
	cfg.Interval = v.GetDuration(KeyInterval)
	cfg.Quality = v.GetFloat64(KeyQuality)
	cfg.HandshakeTimeout = v.GetDuration(KeyHandshakeTimeout)
	cfg.Placeholder = v.GetString(KeyPlaceholder)

	cfg.Camera.Backend = camera.Backend(v.GetString(KeyCameraBackend))
	cfg.Camera.DeviceIndex = v.GetInt(KeyCameraDevice)
	cfg.Camera.Constraints.Width.Ideal = v.GetInt(KeyCameraWidth)
	cfg.Camera.Constraints.Height.Ideal = v.GetInt(KeyCameraHeight)
	cfg.Camera.Constraints.FrameRate.Ideal = v.GetInt(KeyCameraFPS)
	cfg.Camera.Constraints.FrameRate.Min = v.GetInt(KeyCameraMinFPS)
	cfg.Camera.Mirrored = v.GetBool(KeyCameraMirrored)
	cfg.Camera.Constraints.Facing = camera.Facing(v.GetString(KeyCameraFacing))

	if err := cfg.Validate(); err != nil {
		return session.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Viewer is the dashboard configuration.
type Viewer struct {
	Enabled   bool
	Addr      string
	Quality   float64
	AccessLog bool
}

// ViewerConfig reads the dashboard configuration.
func ViewerConfig(v *viper.Viper) Viewer {
	return Viewer{
		Enabled:   v.GetBool(KeyViewerEnabled),
		Addr:      v.GetString(KeyViewerAddr),
		Quality:   v.GetFloat64(KeyViewerQuality),
		AccessLog: v.GetBool(KeyViewerAccessLog),
	}
}

// Loopback is the local inference server configuration.
type Loopback struct {
	Addr        string
	Translation string
	ModelPath   string
	Annotate    bool
	Quality     float64
}

// LoopbackConfig reads the local inference server configuration.
func LoopbackConfig(v *viper.Viper) Loopback {
	return Loopback{
		Addr:        v.GetString(KeyLoopbackAddr),
		Translation: v.GetString(KeyLoopbackTranslation),
		ModelPath:   v.GetString(KeyLoopbackModel),
		Annotate:    v.GetBool(KeyLoopbackAnnotate),
		Quality:     v.GetFloat64(KeyLoopbackQuality),
	}
}
