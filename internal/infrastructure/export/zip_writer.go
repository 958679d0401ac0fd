package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
)

// ZipWriter packs files into a deflate-compressed zip archive
type ZipWriter struct{}

func NewZipWriter() *ZipWriter {
	return &ZipWriter{}
}

// Write encodes files in the given order. Names must already be unique.
func (ZipWriter) Write(files []port.ArchiveFile) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	now := time.Now()
	for _, file := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     file.Name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", file.Name, err)
		}
		if _, err := w.Write(file.Content); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

var _ port.ArchiveWriter = ZipWriter{}
