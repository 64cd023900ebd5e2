// Package codec serializes cursors into opaque tokens.
//
// A token is the JSON encoding of a value, compressed when it grows past
// CompressThreshold, prefixed with a one-byte compressor header and encoded
// as unpadded base64url.
package codec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/justapithecus/pagelist/internal/compress"
)

// json is a drop-in replacement for encoding/json with better performance.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CompressThreshold is the JSON size above which tokens are zstd-compressed.
const CompressThreshold = 128

// ErrMalformed indicates a token that cannot be decoded.
var ErrMalformed = errors.New("codec: malformed token")

// Marshal encodes v as JSON.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON data into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Convert copies src into dst through its JSON form. It restores typed
// values from the generic maps and slices a decoded token yields.
func Convert(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// Encode returns the token for v.
func Encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("codec: encode: %w", err)
	}

	var c compress.Compressor = compress.NewNoop()
	if len(data) > CompressThreshold {
		c = compress.NewZstd()
	}

	var buf bytes.Buffer
	buf.WriteByte(c.Header())
	w, err := c.Compress(&buf)
	if err != nil {
		return "", fmt.Errorf("codec: encode: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("codec: encode: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("codec: encode: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode decodes token into v. Every failure wraps ErrMalformed.
func Decode(token string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty token", ErrMalformed)
	}

	c, err := compress.ForHeader(raw[0])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	r, err := c.Decompress(bytes.NewReader(raw[1:]))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
