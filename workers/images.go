package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"schadescout/models"
	"schadescout/storage"
)

// ImageWorker downloads listing photos, hashes them, and archives them to
// S3-compatible storage. Listings disappear fast once a car sells, so the
// photos are the only durable record of the advertised damage.
type ImageWorker struct {
	store      *storage.PostgresStore
	httpClient *http.Client
	uploader   Uploader

	trigger chan struct{}
}

// Uploader interface for uploading to S3-compatible storage
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// NewImageWorker creates a new image worker
func NewImageWorker(store *storage.PostgresStore, uploader Uploader) *ImageWorker {
	return &ImageWorker{
		store: store,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // Longer timeout for image downloads
		},
		uploader: uploader,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate batch outside the regular interval.
func (w *ImageWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// ImageProcessResult contains the outcome of processing one photo
type ImageProcessResult struct {
	S3Key       string
	ContentHash string
	Size        int64
	Error       error
}

// Process downloads one photo, computes its hash, and uploads it
func (w *ImageWorker) Process(ctx context.Context, img *models.CarImage) ImageProcessResult {
	var result ImageProcessResult

	req, err := http.NewRequestWithContext(ctx, "GET", img.OriginalURL, nil)
	if err != nil {
		result.Error = fmt.Errorf("create request: %w", err)
		return result
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("download: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		result.Error = fmt.Errorf("download status: %d", resp.StatusCode)
		return result
	}

	// Read into memory for hashing and upload, capped at 20MB per photo
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20*1024*1024))
	if err != nil {
		result.Error = fmt.Errorf("read body: %w", err)
		return result
	}

	result.Size = int64(len(data))

	hash := sha256.Sum256(data)
	result.ContentHash = hex.EncodeToString(hash[:])

	// S3 key: cars/{hash_prefix}/{hash}.{ext}
	ext := guessExtension(img.OriginalURL, resp.Header.Get("Content-Type"))
	result.S3Key = fmt.Sprintf("cars/%s/%s%s", result.ContentHash[:2], result.ContentHash, ext)

	if w.uploader != nil {
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "image/jpeg"
		}

		if err := w.uploader.Upload(ctx, result.S3Key, bytes.NewReader(data), contentType); err != nil {
			result.Error = fmt.Errorf("upload: %w", err)
			return result
		}
	}

	return result
}

// guessExtension determines file extension from URL or content-type
func guessExtension(url, contentType string) string {
	ext := strings.ToLower(path.Ext(url))
	if i := strings.IndexAny(ext, "?&"); i >= 0 {
		ext = ext[:i]
	}
	if ext != "" && isImageExt(ext) {
		return ext
	}

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return true
	}
	return false
}

// Run starts the image worker loop
func (w *ImageWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Image worker stopping")
			return
		case <-w.trigger:
			w.processBatch(ctx, batchSize)
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *ImageWorker) processBatch(ctx context.Context, batchSize int) {
	images, err := w.store.GetPendingImages(ctx, batchSize)
	if err != nil {
		log.Printf("Image worker: query error: %v", err)
		return
	}

	if len(images) == 0 {
		return
	}

	log.Printf("Image worker: processing %d photos", len(images))

	var processed, failed int
	for i := range images {
		img := &images[i]

		result := w.Process(ctx, img)

		if result.Error != nil {
			log.Printf("Image worker: failed %s: %v", img.OriginalURL, result.Error)
			failed++

			// Retry up to three times before giving up
			newAttempts := img.Attempts + 1
			status := models.ImageStatusPending
			if newAttempts >= 3 {
				status = models.ImageStatusFailed
			}
			w.store.UpdateImageStatus(ctx, img.ID, status, nil, "", newAttempts)
			continue
		}

		if err := w.store.UpdateImageStatus(ctx, img.ID, models.ImageStatusUploaded, &result.S3Key, result.ContentHash, img.Attempts); err != nil {
			log.Printf("Image worker: failed to update %d: %v", img.ID, err)
			failed++
			continue
		}

		processed++
		log.Printf("Image worker: uploaded %s -> %s (%d bytes)", img.OriginalURL, result.S3Key, result.Size)

		// Rate limit between downloads
		time.Sleep(200 * time.Millisecond)
	}

	if processed > 0 || failed > 0 {
		log.Printf("Image worker: processed %d, failed %d", processed, failed)
	}
}

// NoOpUploader drains downloads without uploading them anywhere
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	io.Copy(io.Discard, data)
	return nil
}

// NewNoOpUploader creates an uploader that does nothing (for testing)
func NewNoOpUploader() *NoOpUploader {
	return &NoOpUploader{}
}
