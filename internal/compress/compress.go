// Package compress provides the compressors used to frame cursor tokens.
package compress

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Compressor compresses and decompresses token payloads.
type Compressor interface {
	// Name returns the compressor identifier.
	Name() string

	// Header returns the byte that marks payloads written by this compressor.
	Header() byte

	Compress(w io.Writer) (io.WriteCloser, error)
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// ForHeader returns the compressor registered for a frame header byte.
func ForHeader(h byte) (Compressor, error) {
	switch h {
	case noopHeader:
		return NewNoop(), nil
	case zstdHeader:
		return NewZstd(), nil
	default:
		return nil, fmt.Errorf("compress: unknown header 0x%02x", h)
	}
}

const (
	noopHeader byte = 'j'
	zstdHeader byte = 'z'
)

// -----------------------------------------------------------------------------
// Zstd
// -----------------------------------------------------------------------------

// Zstd implements Compressor using zstd at its fastest level.
type Zstd struct{}

// NewZstd creates a zstd compressor.
func NewZstd() *Zstd {
	return &Zstd{}
}

func (z *Zstd) Name() string {
	return "zstd"
}

func (z *Zstd) Header() byte {
	return zstdHeader
}

func (z *Zstd) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
}

func (z *Zstd) Decompress(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}

var _ Compressor = (*Zstd)(nil)

// -----------------------------------------------------------------------------
// Noop
// -----------------------------------------------------------------------------

// Noop implements Compressor with no compression. Short tokens use it.
type Noop struct{}

// NewNoop creates a noop compressor.
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Name() string {
	return "noop"
}

func (n *Noop) Header() byte {
	return noopHeader
}

func (n *Noop) Compress(w io.Writer) (io.WriteCloser, error) {
	return &noopWriteCloser{w}, nil
}

func (n *Noop) Decompress(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type noopWriteCloser struct {
	io.Writer
}

func (n *noopWriteCloser) Close() error {
	return nil
}

var _ Compressor = (*Noop)(nil)
