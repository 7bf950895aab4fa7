package transport

import (
	"fmt"
	"net/url"
	"strings"
)

// Path is the websocket path served by the inference service.
const Path = "/ws"

// Endpoint normalises a service address into a websocket URL ending in /ws.
// http and https map to ws and wss; a bare host:port defaults to ws.
//
//	Endpoint("localhost:8000")          -> ws://localhost:8000/ws
//	Endpoint("https://infer.example/")  -> wss://infer.example/ws
//	Endpoint("ws://10.0.0.2:8000/ws")   -> ws://10.0.0.2:8000/ws
func Endpoint(base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("transport: empty endpoint")
	}
	if !strings.Contains(base, "://") {
		base = "ws://" + base
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("transport: parse endpoint: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("transport: endpoint %q has no host", base)
	}

	p := strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(p, Path) {
		p += Path
	}
	u.Path = p
	u.RawPath = ""
	u.Fragment = ""

	return u.String(), nil
}
