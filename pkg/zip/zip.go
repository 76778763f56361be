// Package zip bundles stored images into a single download.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"
)

type Asset struct {
	Filename string
	Data     []byte
}

// Write streams assets into a zip archive on w. Entries are stored without
// compression since the payloads are already-compressed images.
func Write(w io.Writer, assets []Asset, modified time.Time) error {
	zw := zip.NewWriter(w)
	seen := make(map[string]int, len(assets))
	for _, asset := range assets {
		name := uniqueName(asset.Filename, seen)
		hdr := &zip.FileHeader{Name: name, Method: zip.Store, Modified: modified}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip entry %s: %w", name, err)
		}
		if _, err := fw.Write(asset.Data); err != nil {
			return fmt.Errorf("zip write %s: %w", name, err)
		}
	}
	return zw.Close()
}

// ArchiveAssets returns the archive as bytes.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := Write(buf, assets, time.Now()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func uniqueName(name string, seen map[string]int) string {
	if name == "" {
		name = "file"
	}
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%d-%s", n+1, name)
}
