// Package protocol defines the wire format between the camera client and the
// inference service.
//
// Outbound: one binary websocket message per frame, carrying raw JPEG bytes.
// Inbound: one UTF-8 text message per result, carrying a JSON object:
//
//	{"status": "success" | <other>, "translation": "...", "frame": "<hex JPEG>"}
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"unicode/utf8"
)

// Status is the outcome reported by the inference service.
type Status int

const (
	// StatusFailure covers every status value other than "success".
	StatusFailure Status = iota
	// StatusSuccess is reported for "success".
	StatusSuccess
)

// Wire values for the status field.
const (
	WireSuccess = "success"
	WireError   = "error"
)

// String returns the wire value for s.
func (s Status) String() string {
	if s == StatusSuccess {
		return WireSuccess
	}
	return WireError
}

// Result is one decoded inbound message. It is immutable once decoded.
type Result struct {
	Status Status

	// Translation is the recognised text. On success it is authoritative even
	// when empty; HasTranslation records whether the field was on the wire.
	Translation    string
	HasTranslation bool

	// Image is the annotated frame, or nil when none was sent.
	Image *EncodedFrame
}

// Success reports whether the service processed the frame.
func (r Result) Success() bool {
	return r.Status == StatusSuccess
}

// wireResult mirrors the JSON object on the wire. Status is kept raw so that a
// non-string status degrades to failure instead of a parse error.
type wireResult struct {
	Status      json.RawMessage `json:"status,omitempty"`
	Translation *string         `json:"translation,omitempty"`
	Frame       *string         `json:"frame,omitempty"`
}

// DecodeResult parses one inbound message body.
//
// Errors are always *DecodeError: ErrMalformedMessage for bodies that are not a
// UTF-8 JSON object, ErrInvalidFrame for a frame field that is not valid hex.
func DecodeResult(data []byte) (Result, error) {
	if !utf8.Valid(data) {
		return Result{}, &DecodeError{Kind: KindJSON, Err: errors.New("body is not valid UTF-8")}
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Result{}, &DecodeError{Kind: KindJSON, Err: errors.New("body is not a JSON object")}
	}

	var w wireResult
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Result{}, &DecodeError{Kind: KindJSON, Err: err}
	}

	res := Result{Status: parseStatus(w.Status)}
	if w.Translation != nil {
		res.Translation = *w.Translation
		res.HasTranslation = true
	}

	if w.Frame != nil && *w.Frame != "" {
		raw, err := DecodeHex(*w.Frame)
		if err != nil {
			return Result{}, &DecodeError{Kind: KindFrame, Err: err}
		}
		res.Image = &EncodedFrame{Data: raw, MIME: MIMEJPEG}
	}

	return res, nil
}

func parseStatus(raw json.RawMessage) Status {
	if len(raw) == 0 {
		return StatusFailure
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return StatusFailure
	}
	if s == WireSuccess {
		return StatusSuccess
	}
	return StatusFailure
}

// EncodeResult is the inverse of DecodeResult. The loopback server and tests
// use it to produce inbound messages.
func EncodeResult(r Result) ([]byte, error) {
	status, err := json.Marshal(r.Status.String())
	if err != nil {
		return nil, err
	}
	w := wireResult{Status: status}
	if r.HasTranslation {
		t := r.Translation
		w.Translation = &t
	}
	if r.Image != nil && !r.Image.Empty() {
		h := EncodeHex(r.Image.Data)
		w.Frame = &h
	}
	return json.Marshal(w)
}

// NewSuccess builds a success result carrying text and an optional image.
func NewSuccess(translation string, img *EncodedFrame) Result {
	return Result{
		Status:         StatusSuccess,
		Translation:    translation,
		HasTranslation: true,
		Image:          img,
	}
}

// NewFailure builds the failure reply the service sends when a frame could
// not be processed.
func NewFailure() Result {
	return Result{Status: StatusFailure, HasTranslation: true}
}
