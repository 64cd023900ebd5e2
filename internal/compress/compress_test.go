package compress_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justapithecus/pagelist/internal/compress"
)

func roundTrip(t *testing.T, c compress.Compressor, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w, err := c.Compress(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := c.Decompress(&buf)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func TestZstd_RoundTrip(t *testing.T) {
	data := []byte(strings.Repeat(`{"key":"logs/2024/01/01/part-0000.json"}`, 20))
	assert.Equal(t, data, roundTrip(t, compress.NewZstd(), data))
}

func TestZstd_Compresses(t *testing.T) {
	c := compress.NewZstd()
	data := []byte(strings.Repeat("abcdefgh", 64))

	var buf bytes.Buffer
	w, err := c.Compress(&buf)
	require.NoError(t, err)
	_, _ = w.Write(data)
	require.NoError(t, w.Close())

	assert.Less(t, buf.Len(), len(data))
}

func TestNoop_Passthrough(t *testing.T) {
	c := compress.NewNoop()
	data := []byte("test data unchanged")

	var buf bytes.Buffer
	w, err := c.Compress(&buf)
	require.NoError(t, err)
	_, _ = w.Write(data)
	require.NoError(t, w.Close())
	assert.Equal(t, data, buf.Bytes())

	assert.Equal(t, data, roundTrip(t, c, data))
}

func TestForHeader(t *testing.T) {
	for _, c := range []compress.Compressor{compress.NewNoop(), compress.NewZstd()} {
		got, err := compress.ForHeader(c.Header())
		require.NoError(t, err)
		assert.Equal(t, c.Name(), got.Name())
	}

	_, err := compress.ForHeader('?')
	assert.Error(t, err)
}
