package protocol

import (
	"encoding/hex"
	"fmt"
)

// DecodeHex decodes a frame field. Two hex digits per byte, either case.
// Odd-length input or any non-hex digit is rejected, never truncated.
func DecodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd length %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// EncodeHex encodes bytes as lower-case hex, matching the service.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}
