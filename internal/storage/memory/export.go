package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ironwatch/site/internal/storage"
	"github.com/ironwatch/site/pkg/core"
)

// RequestExport is the root JSON structure of an export file.
type RequestExport struct {
	ExportedAt time.Time           `json:"exportedAt"`
	Count      int                 `json:"count"`
	Requests   []ExportedRequest   `json:"requests"`
	Deliveries []core.MailDelivery `json:"deliveries,omitempty"`
}

// ExportedRequest is a request as written to an export file. Attachment
// bytes are left out; only their metadata is kept.
type ExportedRequest struct {
	core.SecurityRequest
}

// BuildExport assembles an export document.
func BuildExport(now time.Time, requests []core.SecurityRequest, deliveries []core.MailDelivery) RequestExport {
	out := RequestExport{
		ExportedAt: now.UTC(),
		Count:      len(requests),
		Requests:   make([]ExportedRequest, 0, len(requests)),
		Deliveries: deliveries,
	}
	for _, r := range requests {
		out.Requests = append(out.Requests, ExportedRequest{SecurityRequest: r})
	}
	return out
}

// ExportFileName names an export written at t.
func ExportFileName(t time.Time, compress bool) string {
	name := fmt.Sprintf("security_requests_%s.json", t.UTC().Format("20060102_150405"))
	if compress {
		name += ".gz"
	}
	return name
}

// WriteExport encodes export to w, gzipped when compress is set.
func WriteExport(w io.Writer, export RequestExport, compress bool) error {
	if !compress {
		return encode(w, export)
	}
	gz := gzip.NewWriter(w)
	if err := encode(gz, export); err != nil {
		gz.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}

// ReadExport decodes an export file, gzipped or not.
func ReadExport(path string) (RequestExport, error) {
	var export RequestExport
	f, err := os.Open(path)
	if err != nil {
		return export, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return export, fmt.Errorf("failed to open gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return export, fmt.Errorf("failed to decode export: %w", err)
	}
	return export, nil
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// exportJSON writes everything stored to a new file in the output directory.
func (b *Backend) exportJSON() error {
	now := b.now()
	export := BuildExport(now, b.listLocked(storage.ListOptions{}), b.deliveries)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, ExportFileName(now, b.cfg.CompressOutput))

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := WriteExport(f, export, b.cfg.CompressOutput); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}

	b.lastExportPath = outputPath
	return nil
}
