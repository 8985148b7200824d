package archive

import (
	"path"
	"strings"
)

// SkipCompressionFunc returns true when an entry should be stored uncompressed.
// It is called once per file and should be inexpensive.
type SkipCompressionFunc func(name string, size int64) bool

// DefaultSkipCompression returns a SkipCompressionFunc that skips small files
// and known already-compressed extensions.
func DefaultSkipCompression(minSize int64) SkipCompressionFunc {
	return func(name string, size int64) bool {
		if minSize > 0 && size < minSize {
			return true
		}
		ext := strings.ToLower(path.Ext(name))
		_, ok := defaultSkipCompressionExts[ext]
		return ok
	}
}

// shouldSkip checks if any predicate returns true for the given entry.
func shouldSkip(name string, size int64, predicates []SkipCompressionFunc) bool {
	for _, fn := range predicates {
		if fn == nil {
			continue
		}
		if fn(name, size) {
			return true
		}
	}
	return false
}

var defaultSkipCompressionExts = map[string]struct{}{
	".7z":     {},
	".aac":    {},
	".avif":   {},
	".br":     {},
	".bz2":    {},
	".flac":   {},
	".gif":    {},
	".gz":     {},
	".heic":   {},
	".jpeg":   {},
	".jpg":    {},
	".lz4":    {},
	".mkv":    {},
	".mov":    {},
	".mp3":    {},
	".mp4":    {},
	".ogg":    {},
	".png":    {},
	".rar":    {},
	".stargz": {},
	".tgz":    {},
	".webm":   {},
	".webp":   {},
	".woff2":  {},
	".xz":     {},
	".zip":    {},
	".zst":    {},
}
