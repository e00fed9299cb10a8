// Package uploader drives one capture → transfer → confirmation cycle per
// document. A task is created when the user initiates a capture and destroyed
// on terminal success or cancellation. Failure is terminal per attempt: there
// is no automatic re-queue at this layer, because silently re-fetching a
// camera/gallery asset is unsafe without re-confirming the user still wants
// that exact capture. Retry is a user-initiated repeat of the capture action.
package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"rideon/models"
)

// ProgressFunc receives coarse progress updates: increments up to 90 while the
// transfer is in flight, then a jump to 100 on confirmation.
type ProgressFunc func(percent int)

// ScanFunc optionally scores document legibility after the transfer lands.
// A scan failure never fails the upload; the record is flagged for the batch
// verifier instead.
type ScanFunc func(path string) (float64, error)

// MIME mapping to avoid sniffing files repeatedly
var extMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// Runner performs uploads into the local document store. One task in flight
// per Upload invocation.
type Runner struct {
	// BaseDir is the document store root (e.g. "uploads").
	BaseDir string
	// ChunkSize controls transfer granularity; defaults to 256 KiB.
	ChunkSize int
	// Scan, when set, runs a legibility scan on the confirmed file.
	Scan ScanFunc
}

func New(baseDir string) *Runner {
	return &Runner{BaseDir: baseDir, ChunkSize: 256 * 1024}
}

// Upload transfers the staged asset at assetPath into the document store and
// returns the confirmed DocumentRecord (status pending, uploaded now). On
// context cancellation before confirmation the partial file is removed and no
// record is created.
func (r *Runner) Upload(ctx context.Context, profileID uint, t models.DocumentType, assetPath string, progress ProgressFunc) (models.DocumentRecord, error) {
	if !models.KnownDocumentType(t) {
		return models.DocumentRecord{}, fmt.Errorf("uploader: unknown document type %q", t)
	}
	src, err := os.Open(filepath.Clean(assetPath))
	if err != nil {
		return models.DocumentRecord{}, fmt.Errorf("uploader: open asset: %w", err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return models.DocumentRecord{}, fmt.Errorf("uploader: stat asset: %w", err)
	}

	recordID := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(assetPath))
	dir := filepath.Join(r.BaseDir, "docs", string(t))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return models.DocumentRecord{}, fmt.Errorf("uploader: mkdir: %w", err)
	}
	finalPath := filepath.Join(dir, recordID+ext)
	tmpPath := finalPath + ".part"

	if err := r.transfer(ctx, src, tmpPath, info.Size(), progress); err != nil {
		_ = os.Remove(tmpPath)
		return models.DocumentRecord{}, err
	}

	// confirmation: atomically publish the file, then report 100
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return models.DocumentRecord{}, fmt.Errorf("uploader: confirm: %w", err)
	}
	if progress != nil {
		progress(100)
	}

	rec := models.DocumentRecord{
		RecordID:    recordID,
		ProfileID:   profileID,
		Type:        t,
		FileName:    filepath.Base(assetPath),
		StorePath:   finalPath,
		ContentType: extMime[ext],
		Status:      models.DocStatusPending,
		UploadedAt:  time.Now(),
	}
	if r.Scan != nil {
		if score, err := r.Scan(finalPath); err != nil {
			rec.ScanFailed = true
			rec.ScanFailedReason = err.Error()
		} else {
			rec.Legibility = score
		}
	}
	return rec, nil
}

// transfer copies src into tmpPath chunk by chunk, checking ctx between chunks
// and holding progress at 90 until confirmation.
func (r *Runner) transfer(ctx context.Context, src io.Reader, tmpPath string, total int64, progress ProgressFunc) error {
	chunk := r.ChunkSize
	if chunk <= 0 {
		chunk = 256 * 1024
	}
	dst, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("uploader: create: %w", err)
	}
	defer dst.Close()

	buf := make([]byte, chunk)
	var written int64
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("uploader: cancelled: %w", ctx.Err())
		default:
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("uploader: write: %w", werr)
			}
			written += int64(n)
			if progress != nil && total > 0 {
				pct := int(written * 90 / total)
				if pct > 90 {
					pct = 90
				}
				progress(pct)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("uploader: read: %w", rerr)
		}
	}
}
