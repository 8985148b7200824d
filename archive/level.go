package archive

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Level is a codec-neutral compression level.
type Level uint8

const (
	LevelDefault Level = iota
	LevelFastest
	LevelBest
)

// ParseLevel resolves "fastest", "default" or "best".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return LevelDefault, nil
	case "fastest", "fast":
		return LevelFastest, nil
	case "best":
		return LevelBest, nil
	default:
		return LevelDefault, fmt.Errorf("unknown compression level %q (must be one of fastest,default,best)", s)
	}
}

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelFastest:
		return "fastest"
	case LevelBest:
		return "best"
	default:
		return "default"
	}
}

func (l Level) gzip() int {
	switch l {
	case LevelFastest:
		return gzip.BestSpeed
	case LevelBest:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func (l Level) flate() int {
	switch l {
	case LevelFastest:
		return flate.BestSpeed
	case LevelBest:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

func (l Level) zstd() zstd.EncoderLevel {
	switch l {
	case LevelFastest:
		return zstd.SpeedFastest
	case LevelBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func (l Level) lz4() lz4.CompressionLevel {
	switch l {
	case LevelFastest:
		return lz4.Fast
	case LevelBest:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}
