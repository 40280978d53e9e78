package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	FileProviderName  = "file"
	maxReportFileSize = 8 << 20
)

// FileReport reads an activity report exported as JSON.
type FileReport struct {
	path string
	reportSnapshot
	window string
}

func NewFileProvider(path string) *ReportProvider {
	path = strings.TrimSpace(path)
	return NewReportProvider(FileProviderName, func() ActivityReport {
		return &FileReport{path: path}
	}, nil)
}

func (r *FileReport) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.path == "" {
		return errors.New("report file path is not configured")
	}
	path, err := expandPath(r.path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open report file: %w", err)
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, maxReportFileSize+1))
	if err != nil {
		return fmt.Errorf("read report file: %w", err)
	}
	if len(body) > maxReportFileSize {
		return fmt.Errorf("report file %s exceeds %d bytes", path, maxReportFileSize)
	}

	var raw reportFileRaw
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("decode report file %s: %w", path, err)
	}
	r.reportSnapshot = normalizeReportEntries(raw.Applications)
	r.window = strings.TrimSpace(raw.Window)
	return nil
}

// Window is the reporting interval declared by the export, if any.
func (r *FileReport) Window() string {
	return r.window
}
