package platform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/h2g-data/bidscan/internal/storage"
)

var pdfMagic = []byte("%PDF")

// Downloader fetches bid documents from the download host and uploads them
// straight to object storage without touching disk.
type Downloader struct {
	auth   *Auth
	store  storage.BlobStore
	bucket string
	prefix string
	base   string
	http   *http.Client
	logger *slog.Logger
}

func NewDownloader(auth *Auth, store storage.BlobStore, bucket, prefix, downloadURL string, logger *slog.Logger) *Downloader {
	return &Downloader{
		auth:   auth,
		store:  store,
		bucket: bucket,
		prefix: prefix,
		base:   strings.TrimRight(downloadURL, "/"),
		http:   &http.Client{Timeout: 2 * time.Minute},
		logger: logger,
	}
}

// DownloadResult reports where one document landed.
type DownloadResult struct {
	S3Path   string
	ByteSize int
}

// Download fetches one document as PDF and stores it. Content that does not
// start with the PDF magic bytes is rejected; an HTML body here means the
// session lost its download entitlement, which the caller must treat as
// fatal for the run.
func (d *Downloader) Download(ctx context.Context, docType, documentID, projectID, displayName string) (*DownloadResult, error) {
	if err := d.auth.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/%s/PDF/%s/0?sourceType=3&allowFileConversion=true",
		d.base, docType, documentID, projectID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+d.auth.IDToken())
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download document %s: %w", documentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download document %s: status %d", documentID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", documentID, err)
	}

	if !bytes.HasPrefix(data, pdfMagic) {
		if bytes.HasPrefix(data, []byte("<!DOCTYPE")) || bytes.HasPrefix(data, []byte("<html")) {
			return nil, fmt.Errorf("document %s: received HTML instead of PDF, session lacks download access", documentID)
		}
		return nil, fmt.Errorf("document %s: content is not a PDF", documentID)
	}

	key := d.prefix + objectName(documentID, displayName)
	if err := d.store.Put(ctx, d.bucket, key, data); err != nil {
		return nil, err
	}

	d.logger.Info("platform.download.ok",
		"document_id", documentID,
		"project_id", projectID,
		"bytes", len(data),
		"key", key,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &DownloadResult{
		S3Path:   fmt.Sprintf("s3://%s/%s", d.bucket, key),
		ByteSize: len(data),
	}, nil
}

// objectName builds a storage key fragment from the document id and a
// sanitized display name.
func objectName(documentID, displayName string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.':
			return r
		default:
			return '_'
		}
	}, displayName)
	if name == "" {
		name = "document"
	}
	name = strings.TrimSuffix(name, ".pdf")
	return fmt.Sprintf("%s_%s.pdf", documentID, name)
}
