// pkg/compress/compress.go

package compress

import (
	"fmt"
	"strings"

	"github.com/DataDog/zstd"
	"github.com/hungys/go-lz4"
)

// ZSTD_LEVEL compression level used by zstd
const ZSTD_LEVEL = 1

// Compressor compresses and decompresses whole blocks.
type Compressor interface {
	Name() string
	CompressBound(int) int
	Compress(dst, src []byte) (int, error)
	Decompress(dst, src []byte) (int, error)
}

// NewCompressor returns a compressor by name, nil when the algorithm is unknown.
func NewCompressor(algr string) Compressor {
	switch strings.ToLower(algr) {
	case "lz4":
		return LZ4{}
	case "zstd":
		return ZStandard{ZSTD_LEVEL}
	case "none", "":
		return noOp{}
	}
	return nil
}

type noOp struct{}

func (n noOp) Name() string { return "none" }
func (n noOp) CompressBound(l int) int { return l }
func (n noOp) Compress(dst, src []byte) (int, error) {
	if len(dst) < len(src) {
		return 0, fmt.Errorf("buffer too short: %d < %d", len(dst), len(src))
	}
	return copy(dst, src), nil
}
func (n noOp) Decompress(dst, src []byte) (int, error) {
	if len(dst) < len(src) {
		return 0, fmt.Errorf("buffer too short: %d < %d", len(dst), len(src))
	}
	return copy(dst, src), nil
}

// ZStandard implements Compressor using zstd library
type ZStandard struct {
	level int
}

func (n ZStandard) Name() string { return "zstd" }
func (n ZStandard) CompressBound(l int) int { return zstd.CompressBound(l) }
func (n ZStandard) Compress(dst, src []byte) (int, error) {
	d, err := zstd.CompressLevel(dst, src, n.level)
	if err != nil {
		return 0, err
	}
	if len(d) > 0 && len(dst) > 0 && &d[0] != &dst[0] {
		return 0, fmt.Errorf("buffer too short: %d < %d", cap(dst), cap(d))
	}
	return len(d), err
}
func (n ZStandard) Decompress(dst, src []byte) (int, error) {
	d, err := zstd.Decompress(dst, src)
	if err != nil {
		return 0, err
	}
	if len(d) > 0 && len(dst) > 0 && &d[0] != &dst[0] {
		return 0, fmt.Errorf("buffer too short: %d < %d", len(dst), len(d))
	}
	return len(d), err
}

// LZ4 implements Compressor using LZ4 library
type LZ4 struct{}

func (l LZ4) Name() string { return "lz4" }
func (l LZ4) CompressBound(size int) int { return lz4.CompressBound(size) }
func (l LZ4) Compress(dst, src []byte) (int, error) {
	return lz4.CompressDefault(src, dst)
}
func (l LZ4) Decompress(dst, src []byte) (int, error) {
	return lz4.DecompressSafe(src, dst)
}
