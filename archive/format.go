package archive

import (
	"errors"
	"fmt"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ErrUnknownFormat is returned for an unrecognized archive format name.
var ErrUnknownFormat = errors.New("unknown archive format")

// Format names an archive container plus its compression codec.
type Format string

const (
	FormatTar     Format = "tar"
	FormatTarGzip Format = "tar.gz"
	FormatTarZstd Format = "tar.zst"
	FormatTarLZ4  Format = "tar.lz4"
	FormatZip     Format = "zip"
	FormatEStargz Format = "estargz"
)

// DefaultFormat is used when no format is configured.
const DefaultFormat = FormatTarZstd

// MediaTypeTarLZ4 is the media type recorded for lz4-compressed tarballs,
// which have no registered OCI media type.
const MediaTypeTarLZ4 = "application/vnd.meigma.dirpack.layer.v1.tar+lz4"

// MediaTypeZip is the media type recorded for zip archives.
const MediaTypeZip = "application/zip"

// Formats lists every supported format in help-text order.
var Formats = []Format{FormatTarZstd, FormatTarGzip, FormatTarLZ4, FormatTar, FormatZip, FormatEStargz}

var formatAliases = map[string]Format{
	"tgz":  FormatTarGzip,
	"gz":   FormatTarGzip,
	"gzip": FormatTarGzip,
	"zst":  FormatTarZstd,
	"zstd": FormatTarZstd,
	"lz4":  FormatTarLZ4,
	"esgz": FormatEStargz,
}

// ParseFormat resolves a format name or one of its short aliases.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultFormat, nil
	}
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	if f, ok := formatAliases[s]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q (must be one of %s)", ErrUnknownFormat, s, formatList())
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Extension returns the file name suffix for archives of this format,
// including the leading dot.
func (f Format) Extension() string {
	if f == FormatEStargz {
		return ".stargz"
	}
	return "." + string(f)
}

// MediaType returns the media type recorded in the archive descriptor.
func (f Format) MediaType() string {
	switch f {
	case FormatTar:
		return ocispec.MediaTypeImageLayer
	case FormatTarGzip, FormatEStargz:
		return ocispec.MediaTypeImageLayerGzip
	case FormatTarZstd:
		return ocispec.MediaTypeImageLayerZstd
	case FormatTarLZ4:
		return MediaTypeTarLZ4
	case FormatZip:
		return MediaTypeZip
	default:
		return "application/octet-stream"
	}
}

// String is used both by fmt.Print and by Cobra in help text.
func (f Format) String() string {
	return string(f)
}

// Set must have pointer receiver so it doesn't change the value of a copy.
func (f *Format) Set(v string) error {
	parsed, err := ParseFormat(v)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Type is only used in help text.
func (f *Format) Type() string {
	return "format"
}

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}
