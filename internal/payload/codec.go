package payload

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/ChristusBible/core/errors"
)

// Codec is a compression format for the payload.
type Codec string

const (
	// Gzip is the only codec browsers decode natively (DecompressionStream).
	Gzip Codec = "gzip"
	XZ   Codec = "xz"
	Zstd Codec = "zstd"
	LZ4  Codec = "lz4"
)

// Codecs lists every supported codec.
var Codecs = []Codec{Gzip, XZ, Zstd, LZ4}

var extensions = map[Codec]string{
	Gzip: ".json.gz",
	XZ:   ".json.xz",
	Zstd: ".json.zst",
	LZ4:  ".json.lz4",
}

// ParseCodec maps a codec name to a Codec.
func ParseCodec(name string) (Codec, error) {
	c := Codec(strings.ToLower(strings.TrimSpace(name)))
	switch c {
	case Gzip, XZ, Zstd, LZ4:
		return c, nil
	case "gz":
		return Gzip, nil
	case "zst":
		return Zstd, nil
	}
	return "", errors.NewUnsupported("codec", name)
}

// Ext returns the file extension for payloads in this codec.
func (c Codec) Ext() string { return extensions[c] }

// CodecForPath picks the codec from a payload file name.
func CodecForPath(path string) (Codec, error) {
	base := strings.ToLower(filepath.Base(path))
	for _, c := range Codecs {
		if strings.HasSuffix(base, c.Ext()) {
			return c, nil
		}
	}
	return "", errors.NewUnsupported("payload extension", filepath.Base(path))
}

// NewWriter wraps w with the codec's compressor at its strongest level.
func (c Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case Gzip:
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case XZ:
		return xz.NewWriter(w)
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
			return nil, err
		}
		return lw, nil
	}
	return nil, errors.NewUnsupported("codec", string(c))
}

// NewReader wraps r with the codec's decompressor.
func (c Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case Gzip:
		return gzip.NewReader(r)
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return nil, errors.NewUnsupported("codec", string(c))
}
