package web

import (
	"bufio"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/bytebufferpool"

	"github.com/teslashibe/go-signstream/pkg/hub"
	"github.com/teslashibe/go-signstream/pkg/render"
)

// mjpegBoundary separates parts of the /video_feed stream.
const mjpegBoundary = "frame"

// handleIndex serves the viewer page
func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.Send(indexHTML)
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"viewers": fiber.Map{"surface": s.surfaceHub.Stats(), "status": s.statusHub.Stats()},
	})
}

// handleStatus returns the session status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.source.Status())
}

// handleFrame returns the current annotated frame as a JPEG
func (s *Server) handleFrame(c *fiber.Ctx) error {
	data, err := s.source.Surface().JPEG(s.config.FrameQuality)
	if errors.Is(err, render.ErrNoImage) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no frame rendered yet",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Type("jpeg")
	return c.Send(data)
}

// handleVideoFeed streams annotated frames as multipart MJPEG. A part is
// written only when the surface has been redrawn.
func (s *Server) handleVideoFeed(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	surface := s.source.Surface()
	quality := s.config.FrameQuality
	interval := s.config.FrameInterval
	done := s.done

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last uint64
		for {
			if v := surface.Version(); v != 0 && v != last {
				data, err := surface.JPEG(quality)
				if err == nil {
					last = v
					if err := writePart(w, data); err != nil {
						return
					}
				}
			}

			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	})
	return nil
}

// writePart writes one multipart section and flushes it to the client.
func writePart(w *bufio.Writer, jpeg []byte) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString("--" + mjpegBoundary + "\r\n")
	buf.WriteString("Content-Type: image/jpeg\r\n")
	buf.WriteString("Content-Length: " + strconv.Itoa(len(jpeg)) + "\r\n\r\n")
	buf.Write(jpeg)
	buf.WriteString("\r\n")

	if _, err := w.Write(buf.B); err != nil {
		return err
	}
	return w.Flush()
}

// handleSurfaceWS streams annotated frames as binary messages
func (s *Server) handleSurfaceWS(c *websocket.Conn) {
	if client := hub.Attach(s.surfaceHub, c); client != nil {
		client.Serve()
	}
}

// handleStatusWS streams session status as JSON
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if client := hub.Attach(s.statusHub, c); client != nil {
		client.Serve()
	}
}
