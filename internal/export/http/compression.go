package http

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compression algorithm names as they appear in config.
const (
	CompressionNone   = "none"
	CompressionGzip   = "gzip"
	CompressionZstd   = "zstd"
	CompressionZlib   = "zlib"
	CompressionSnappy = "snappy"
)

var (
	// ErrUnsupportedEncoding is returned by Decompress for unknown encodings.
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
	// ErrBodyTooLarge is returned by Decompress when the decoded body
	// exceeds the limit.
	ErrBodyTooLarge = errors.New("decompressed body too large")
)

type codec struct {
	// encoding is the Content-Encoding header value.
	encoding   string
	decompress func(data []byte, limit int64) ([]byte, error)
}

var codecs = map[string]codec{
	CompressionNone:   {encoding: "", decompress: passthrough},
	CompressionGzip:   {encoding: "gzip", decompress: decompressGzip},
	CompressionZstd:   {encoding: "zstd", decompress: decompressZstd},
	CompressionZlib:   {encoding: "deflate", decompress: decompressZlib},
	CompressionSnappy: {encoding: "snappy", decompress: decompressSnappy},
}

// ValidCompression reports whether name is a known algorithm.
func ValidCompression(name string) bool {
	_, ok := codecs[name]

	return ok
}

// Compressor compresses request bodies with one algorithm.
type Compressor struct {
	algorithm string
	encoder   *zstd.Encoder
}

// NewCompressor creates a Compressor. The empty name means no compression.
func NewCompressor(algorithm string) (*Compressor, error) {
	if algorithm == "" {
		algorithm = CompressionNone
	}

	if !ValidCompression(algorithm) {
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}

	c := &Compressor{algorithm: algorithm}

	if algorithm == CompressionZstd {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}

		c.encoder = encoder
	}

	return c, nil
}

// Compress compresses data with the configured algorithm.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		return writeThrough(data, func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) })
	case CompressionZlib:
		return writeThrough(data, func(w io.Writer) io.WriteCloser { return zlib.NewWriter(w) })
	case CompressionZstd:
		return c.encoder.EncodeAll(data, make([]byte, 0, len(data))), nil
	case CompressionSnappy:
		return snappy.Encode(nil, data), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

// ContentEncoding returns the Content-Encoding header value, or "" when
// the body is sent uncompressed.
func (c *Compressor) ContentEncoding() string {
	return codecs[c.algorithm].encoding
}

// Close releases the zstd encoder, if any.
func (c *Compressor) Close() error {
	if c.encoder != nil {
		return c.encoder.Close()
	}

	return nil
}

// Decompress decodes a body sent with the given Content-Encoding header
// value. An empty or "identity" encoding returns data unchanged. A positive
// limit bounds the decoded size; larger bodies fail with ErrBodyTooLarge
// without being fully inflated.
func Decompress(contentEncoding string, data []byte, limit int64) ([]byte, error) {
	enc := strings.ToLower(strings.TrimSpace(contentEncoding))
	if enc == "" || enc == "identity" {
		return passthrough(data, limit)
	}

	for _, c := range codecs {
		if c.encoding == enc {
			return c.decompress(data, limit)
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, contentEncoding)
}

func tooLarge(limit int64) error {
	return fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, limit)
}

func writeThrough(data []byte, wrap func(io.Writer) io.WriteCloser) ([]byte, error) {
	var buf bytes.Buffer

	w := wrap(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress write: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress close: %w", err)
	}

	return buf.Bytes(), nil
}

func passthrough(data []byte, limit int64) ([]byte, error) {
	if limit > 0 && int64(len(data)) > limit {
		return nil, tooLarge(limit)
	}

	return data, nil
}

// readLimited reads r to the end, failing once more than limit bytes appear.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}

	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}

	if int64(len(out)) > limit {
		return nil, tooLarge(limit)
	}

	return out, nil
}

func decompressGzip(data []byte, limit int64) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return readLimited(r, limit)
}

func decompressZstd(data []byte, limit int64) ([]byte, error) {
	var opts []zstd.DOption
	if limit > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(uint64(limit)))
	}

	decoder, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	out, err := decoder.DecodeAll(data, nil)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
		return nil, tooLarge(limit)
	}

	if err != nil {
		return nil, err
	}

	return passthrough(out, limit)
}

func decompressZlib(data []byte, limit int64) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return readLimited(r, limit)
}

func decompressSnappy(data []byte, limit int64) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, err
	}

	if limit > 0 && int64(n) > limit {
		return nil, tooLarge(limit)
	}

	return snappy.Decode(nil, data)
}
