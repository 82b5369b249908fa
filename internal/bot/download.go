package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDownloadTimeout = 30 * time.Second
	// DefaultMaxImageSize is the largest menu photo accepted (10MB)
	DefaultMaxImageSize = 10 * 1024 * 1024
)

// ImageDownloader fetches menu photos from Telegram's file storage.
type ImageDownloader struct {
	client  *resty.Client
	maxSize int64
}

func NewImageDownloader() *ImageDownloader {
	return &ImageDownloader{
		client:  resty.New().SetDebug(false).SetTimeout(DefaultDownloadTimeout),
		maxSize: DefaultMaxImageSize,
	}
}

func (d *ImageDownloader) WithMaxSize(maxSize int64) *ImageDownloader {
	d.maxSize = maxSize
	return d
}

// DownloadFromURL downloads an image and returns its bytes and MIME type.
// Responses with a non-image Content-Type or larger than the size limit are
// rejected.
func (d *ImageDownloader) DownloadFromURL(ctx context.Context, imageURL string) ([]byte, string, error) {
	res, err := d.client.R().SetContext(ctx).Get(imageURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	if res.IsError() {
		return nil, "", fmt.Errorf("download failed: status %d", res.StatusCode())
	}

	contentType := res.Header().Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("invalid content type: expected image/*, got %s", contentType)
	}
	if res.RawResponse.ContentLength > d.maxSize {
		return nil, "", fmt.Errorf("image too large: %d bytes exceeds limit of %d bytes", res.RawResponse.ContentLength, d.maxSize)
	}

	data := res.Body()
	if int64(len(data)) > d.maxSize {
		return nil, "", fmt.Errorf("image too large: exceeds limit of %d bytes", d.maxSize)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image")
	}

	// Telegram serves photos as application/octet-stream at times
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}
	return data, mimeType, nil
}

// DownloadTelegramFile resolves fileID to a direct URL and downloads it.
func (d *ImageDownloader) DownloadTelegramFile(
	ctx context.Context,
	getFileDirectURL func(fileID string) (string, error),
	fileID string,
) ([]byte, string, error) {
	log.Info().Str("fileID", fileID).Msg("downloading telegram file")

	url, err := getFileDirectURL(fileID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get file URL: %w", err)
	}
	return d.DownloadFromURL(ctx, url)
}
