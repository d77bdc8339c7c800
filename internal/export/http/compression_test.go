package http

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressor_RoundTrip(t *testing.T) {
	original := []byte(strings.Repeat(`{"metric":"DRB.UEThpDl","value":42}`+"\n", 16))

	tests := []struct {
		algorithm string
		encoding  string
	}{
		{algorithm: CompressionGzip, encoding: "gzip"},
		{algorithm: CompressionZstd, encoding: "zstd"},
		{algorithm: CompressionZlib, encoding: "deflate"},
		{algorithm: CompressionSnappy, encoding: "snappy"},
	}

	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			c, err := NewCompressor(tt.algorithm)
			require.NoError(t, err)
			defer c.Close()

			compressed, err := c.Compress(original)
			require.NoError(t, err)

			assert.Less(t, len(compressed), len(original))
			assert.Equal(t, tt.encoding, c.ContentEncoding())

			decompressed, err := Decompress(c.ContentEncoding(), compressed, int64(len(original)))
			require.NoError(t, err)
			assert.Equal(t, original, decompressed)
		})
	}
}

func TestCompressor_None(t *testing.T) {
	for _, algorithm := range []string{CompressionNone, ""} {
		c, err := NewCompressor(algorithm)
		require.NoError(t, err)

		original := []byte("hello world")
		compressed, err := c.Compress(original)
		require.NoError(t, err)

		assert.Equal(t, original, compressed)
		assert.Equal(t, "", c.ContentEncoding())
		require.NoError(t, c.Close())
	}
}

func TestNewCompressor_Unknown(t *testing.T) {
	_, err := NewCompressor("lzma")
	require.Error(t, err)
}

func TestDecompress_Identity(t *testing.T) {
	data := []byte("plain")

	for _, enc := range []string{"", "identity", " Identity "} {
		out, err := Decompress(enc, data, 0)
		require.NoError(t, err)
		assert.Equal(t, data, out)
	}
}

func TestDecompress_Unsupported(t *testing.T) {
	_, err := Decompress("br", []byte("x"), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)
}

func TestDecompress_CorruptBody(t *testing.T) {
	_, err := Decompress("gzip", []byte("not gzip"), 0)
	require.Error(t, err)
}

func TestDecompress_Limit(t *testing.T) {
	const limit = 1 << 10

	// Highly compressible, so the encoded form stays far below the limit.
	original := make([]byte, 64*limit)

	for _, algorithm := range []string{CompressionGzip, CompressionZstd, CompressionZlib, CompressionSnappy} {
		t.Run(algorithm, func(t *testing.T) {
			c, err := NewCompressor(algorithm)
			require.NoError(t, err)
			defer c.Close()

			compressed, err := c.Compress(original)
			require.NoError(t, err)
			require.Less(t, len(compressed), len(original))

			_, err = Decompress(c.ContentEncoding(), compressed, limit)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBodyTooLarge)

			out, err := Decompress(c.ContentEncoding(), compressed, int64(len(original)))
			require.NoError(t, err)
			assert.Len(t, out, len(original))
		})
	}

	_, err := Decompress("identity", original, limit)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Enabled:      true,
				Address:      "http://localhost:8080",
				BatchSize:    100,
				MaxQueueSize: 1000,
				Workers:      1,
			},
			wantErr: false,
		},
		{
			name: "disabled config - no validation",
			cfg: Config{
				Enabled: false,
			},
			wantErr: false,
		},
		{
			name: "missing address",
			cfg: Config{
				Enabled: true,
			},
			wantErr: true,
		},
		{
			name: "invalid compression",
			cfg: Config{
				Enabled:     true,
				Address:     "http://localhost:8080",
				Compression: "invalid",
			},
			wantErr: true,
		},
		{
			name: "batch size > queue size",
			cfg: Config{
				Enabled:      true,
				Address:      "http://localhost:8080",
				BatchSize:    1000,
				MaxQueueSize: 100,
				Workers:      1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			err := tt.cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
