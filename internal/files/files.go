// Package files manages the local temp-file area: downloaded attachments,
// transcoded audio, and ingestion payloads all live here, named from
// sanitized source filenames.
package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"relaybot/internal/domain"
)

const defaultMaxBytes = 50 * 1024 * 1024 // 50MB

// acceptedDocExts is the document-type allowlist for ingestion payloads.
var acceptedDocExts = map[string]bool{
	"txt": true, "docx": true, "csv": true, "pdf": true, "md": true, "html": true,
}

// Store is the temp-file area. All pipeline temp files are created and
// deleted inside its directory.
type Store struct {
	dir      string
	maxBytes int64
	client   *http.Client
	logger   *slog.Logger
}

type StoreConfig struct {
	Dir      string
	MaxBytes int64
	Logger   *slog.Logger
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Dir == "" {
		home, _ := os.UserHomeDir()
		cfg.Dir = filepath.Join(home, ".relaybot", "files")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create files dir: %w", err)
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	return &Store{
		dir:      cfg.Dir,
		maxBytes: cfg.MaxBytes,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   cfg.Logger,
	}, nil
}

// Dir returns the temp-file directory.
func (s *Store) Dir() string { return s.dir }

// DocSource is a document to ingest: exactly one of URL or Blob is set.
// It replaces duck-typed "file-like" inputs; the union is resolved once,
// here at the boundary.
type DocSource struct {
	URL  string
	Blob *domain.Blob
}

// ResolveDoc materializes a document source to a local path, validating the
// filename against the accepted-type allowlist first. The caller owns the
// returned file and must delete it.
func (s *Store) ResolveDoc(ctx context.Context, src DocSource) (string, error) {
	switch {
	case src.URL != "":
		name := NameFromURL(src.URL)
		if !IsAcceptedDoc(name) {
			return "", domain.Validation("that link's file type is not supported (accepted: txt, docx, csv, pdf, md, html)")
		}
		return s.Download(ctx, src.URL, name)
	case src.Blob != nil:
		if !IsAcceptedDoc(src.Blob.Name) {
			return "", domain.Validation("that file type is not supported (accepted: txt, docx, csv, pdf, md, html)")
		}
		return s.SaveBlob(ctx, src.Blob)
	default:
		return "", domain.Validation("no document was provided")
	}
}

// SaveBlob persists an attachment blob under its sanitized name.
func (s *Store) SaveBlob(ctx context.Context, blob *domain.Blob) (string, error) {
	rc, err := blob.Open(ctx)
	if err != nil {
		return "", domain.Upstream(fmt.Errorf("fetch attachment %s: %w", blob.Name, err))
	}
	defer rc.Close()
	return s.write(SanitizeName(blob.Name), rc)
}

// Download fetches a URL into the temp area under the given name.
func (s *Store) Download(ctx context.Context, rawURL, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", domain.Validation("that doesn't look like a fetchable address")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", domain.Upstream(fmt.Errorf("download %s: %w", rawURL, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", domain.Upstream(fmt.Errorf("download %s: HTTP %d", rawURL, resp.StatusCode))
	}
	return s.write(SanitizeName(name), resp.Body)
}

// write copies reader to dir/name, enforcing the size cap. Partial files
// are removed on any error.
func (s *Store) write(name string, r io.Reader) (string, error) {
	if name == "" {
		return "", domain.Validation("the file has no usable name")
	}
	path := filepath.Join(s.dir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	written, err := io.Copy(out, io.LimitReader(r, s.maxBytes+1))
	out.Close()
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if written > s.maxBytes {
		os.Remove(path)
		return "", domain.Validation("that file is too large for me to handle")
	}

	if s.logger != nil {
		s.logger.Debug("file saved", "path", path, "bytes", written)
	}
	return path, nil
}

// NameFromURL extracts the filename component of a URL, dropping the query.
func NameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		// Fall back to a plain string split.
		name := rawURL
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		if i := strings.Index(name, "?"); i >= 0 {
			name = name[:i]
		}
		return name
	}
	return filepath.Base(u.Path)
}

// IsAcceptedDoc reports whether the filename's extension is in the
// ingestion allowlist.
func IsAcceptedDoc(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return acceptedDocExts[ext]
}

// SanitizeName reduces a source-provided filename to a safe base name,
// stripping any path components and shell-hostile characters.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" || out == "_" {
		return ""
	}
	return out
}

// SniffImage identifies PNG/JPEG payloads by their magic bytes. Returns
// "png", "jpeg", or "".
func SniffImage(data []byte) string {
	if len(data) >= 8 &&
		data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A {
		return "png"
	}
	if len(data) >= 4 &&
		data[0] == 0xFF && data[1] == 0xD8 &&
		data[len(data)-2] == 0xFF && data[len(data)-1] == 0xD9 {
		return "jpeg"
	}
	return ""
}
