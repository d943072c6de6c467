// Package cursor implements the opaque pagination token used by the events
// query endpoint. A token is a URL-safe base64 encoding of the position just
// scanned past; it round-trips exactly through Encode/Decode and carries no
// secret, so a client tampering with it can at worst reposition its own scan.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalid is returned by Decode for malformed or foreign tokens. Callers
// treat it as "no cursor" and scan from the beginning.
var ErrInvalid = errors.New("invalid cursor")

// Position identifies the last record a client received.
type Position struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode serializes a position into an opaque token.
func Encode(p Position) string {
	b, _ := json.Marshal(p)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode parses a token produced by Encode.
func Decode(token string) (Position, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Position{}, ErrInvalid
	}
	var p Position
	if err := json.Unmarshal(raw, &p); err != nil {
		return Position{}, ErrInvalid
	}
	if p.EventID == "" || p.Timestamp.IsZero() {
		return Position{}, ErrInvalid
	}
	return p, nil
}
