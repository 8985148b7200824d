package dirpack

import (
	"encoding/json"
	"fmt"
	"os"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/meigma/dirpack/archive"
)

// ManifestEntry describes one committed archive entry.
type ManifestEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Mode string `json:"mode"`

	// XXH3 is the hex xxh3-64 checksum of a regular file's content.
	XXH3 string `json:"xxh3,omitempty"`
}

// Manifest lists the entries of an archive in write order. When the session
// wrote to a destination file, Archive describes the finished file.
type Manifest struct {
	Format  archive.Format      `json:"format,omitempty"`
	Archive *ocispec.Descriptor `json:"archive,omitempty"`
	Entries []ManifestEntry     `json:"entries"`
}

// WriteFile writes the manifest to path as indented JSON.
func (m *Manifest) WriteFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads a manifest written by WriteFile.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}
