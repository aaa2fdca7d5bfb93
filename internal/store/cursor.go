package store

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeCursor renders a keyset-pagination position as the opaque base64
// string handed back to API clients, per spec §6 (next_cursor).
func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s\x1f%s", c.SortKey, c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an opaque cursor string produced by EncodeCursor.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "\x1f", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed cursor")
	}
	return &Cursor{SortKey: parts[0], ID: parts[1]}, nil
}
