package nemo

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"datadesigner/internal/logging"
)

// Result file extensions the service is known to produce.
var resultExtensions = map[string]bool{
	".jsonl":   true,
	".json":    true,
	".csv":     true,
	".parquet": true,
}

// DownloadResults fetches a finished job's dataset and writes the result
// files into destDir. The service returns either a gzipped tar archive
// of result files or a bare JSONL/CSV body; both are handled. Returns
// the paths of the files written.
func (c *Client) DownloadResults(ctx context.Context, jobID, destDir string) ([]string, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "DownloadResults")
	defer timer.StopWithInfo()

	body, err := c.doJSON(ctx, http.MethodGet, c.baseURL+jobsPath+"/"+jobID+"/results/download", nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyDownload
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	if isGzip(body) {
		return extractArchive(body, jobID, destDir)
	}

	// Bare body: classify by shape
	path := filepath.Join(destDir, jobID+bareExtension(body))
	if err := os.WriteFile(path, body, 0644); err != nil {
		return nil, fmt.Errorf("write result file: %w", err)
	}
	logging.API("job %s results written to %s (%d bytes)", jobID, path, len(body))
	return []string{path}, nil
}

// isGzip checks the gzip magic bytes.
func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// bareExtension guesses the extension for a non-archive result body.
func bareExtension(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return ".jsonl"
	}
	return ".csv"
}

// extractArchive unpacks result files from a gzipped tar archive. Member
// paths are flattened to basenames so archive layout cannot escape
// destDir.
func extractArchive(data []byte, jobID, destDir string) ([]string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var written []string

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		base := filepath.Base(hdr.Name)
		ext := strings.ToLower(filepath.Ext(base))
		if !resultExtensions[ext] {
			logging.APIDebug("skipping archive member %s", hdr.Name)
			continue
		}

		path := filepath.Join(destDir, jobID+"_"+base)
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return nil, fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
		f.Close()
		written = append(written, path)
		logging.APIDebug("extracted %s -> %s", hdr.Name, path)
	}

	if len(written) == 0 {
		return nil, fmt.Errorf("%w: archive held no result files", ErrEmptyDownload)
	}
	logging.API("job %s results: %d file(s) extracted to %s", jobID, len(written), destDir)
	return written, nil
}
