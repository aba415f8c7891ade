package objectrepo

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gurre/xdgapp-deploy/logic/backoff"
)

// HTTPSRemote fetches a single gzipped tarball per commit,
// {base}/commits/{checksum}.tar.gz, whose entries are loose objects in the
// same {objects/sha[:2]/sha[2:]} layout the disk store expects. Transient
// failures are retried with jittered exponential backoff.
type HTTPSRemote struct {
	base       string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewHTTPSRemote constructs an HTTPS-backed remote.
func NewHTTPSRemote(base string, logger *slog.Logger, maxRetries int, baseDelay, maxDelay time.Duration) *HTTPSRemote {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSRemote{
		base:       base,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// Fetch downloads and unpacks the bundle for checksum into repo.
func (h *HTTPSRemote) Fetch(ctx context.Context, repo *DiskRepo, checksum string, progress func(string)) error {
	url := fmt.Sprintf("%s/commits/%s.tar.gz", h.base, checksum)

	var lastErr error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if progress != nil {
			progress(checksum)
		}
		err := h.fetchOnce(ctx, repo, url)
		if err == nil {
			return nil
		}
		lastErr = err
		h.logger.Warn("https bundle fetch failed", "url", url, "attempt", attempt+1, "error", err)

		if attempt < h.maxRetries {
			delay := backoff.Duration(attempt, h.baseDelay, h.maxDelay)
			select {
			case <-ctx.Done():
				return fmt.Errorf("objectrepo: https fetch %s: %w", url, ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("objectrepo: https fetch %s: failed after %d attempts: %w", url, h.maxRetries+1, lastErr)
}

func (h *HTTPSRemote) fetchOnce(ctx context.Context, repo *DiskRepo, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("gunzip: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		checksum := objectsTarEntryChecksum(hdr.Name)
		if checksum == "" {
			continue
		}

		data := make([]byte, hdr.Size)
		if _, err := io.ReadFull(tr, data); err != nil {
			return fmt.Errorf("tar read %s: %w", hdr.Name, err)
		}
		if err := repo.PutEncodedObject(checksum, data); err != nil {
			return fmt.Errorf("store %s: %w", hdr.Name, err)
		}
	}
}

// objectsTarEntryChecksum recovers a checksum from a tar entry named
// "objects/{sha[:2]}/{sha[2:]}", or "" if the name doesn't match that shape.
func objectsTarEntryChecksum(name string) string {
	const prefix = "objects/"
	if len(name) < len(prefix)+3 || name[:len(prefix)] != prefix {
		return ""
	}
	rest := name[len(prefix):]
	if len(rest) < 3 || rest[2] != '/' {
		return ""
	}
	return rest[:2] + rest[3:]
}
