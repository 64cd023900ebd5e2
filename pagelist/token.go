package pagelist

import (
	"fmt"

	"github.com/justapithecus/pagelist/internal/codec"
)

// EncodeCursor returns an opaque, URL-safe token for c.
//
// Tokens are meant for the outer boundary of a program, such as a query
// parameter or a CLI flag. Inside a program cursors stay structured values.
func EncodeCursor[C any](c C) (string, error) {
	token, err := codec.Encode(c)
	if err != nil {
		return "", fmt.Errorf("pagelist: encode cursor: %w", err)
	}
	return token, nil
}

// DecodeCursor decodes a token produced by EncodeCursor. Malformed tokens
// return an error wrapping ErrInvalidCursor.
func DecodeCursor[C any](token string) (C, error) {
	var c C
	if err := codec.Decode(token, &c); err != nil {
		var zero C
		return zero, fmt.Errorf("pagelist: %w: %v", ErrInvalidCursor, err)
	}
	return c, nil
}
