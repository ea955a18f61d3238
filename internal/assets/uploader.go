// Package assets is the boundary to the image host. Images arrive from
// clients as data URLs or bare base64 and leave as a public URL.
package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/4xmen/gapchat/internal/apperr"
)

var errInvalidDataURL = errors.New("invalid data url")

type Uploader struct {
	store   BlobStore
	maxSize int64
}

func NewUploader(store BlobStore, maxSize int64) *Uploader {
	return &Uploader{store: store, maxSize: maxSize}
}

// Upload decodes an image payload, stores it and returns its URL.
func (u *Uploader) Upload(ctx context.Context, image string) (string, error) {
	content, err := decodeImage(image)
	if err != nil {
		return "", apperr.Validation("Invalid image data")
	}
	if u.maxSize > 0 && int64(len(content)) > u.maxSize {
		return "", apperr.Validation("Image is too large")
	}

	mtype := mimetype.Detect(content)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", apperr.Validation("File must be an image")
	}

	key := "images/" + uuid.NewString() + mtype.Extension()
	if err := u.store.Save(ctx, key, content, mtype.String()); err != nil {
		return "", apperr.Upstream("image upload failed", err)
	}

	return u.store.URL(key), nil
}

// Remove deletes an asset previously returned by Upload. URLs that do not
// belong to the configured store are ignored.
func (u *Uploader) Remove(ctx context.Context, url string) error {
	prefix := u.store.URL("")
	if url == "" || !strings.HasPrefix(url, prefix) {
		return nil
	}
	if err := u.store.Delete(ctx, strings.TrimPrefix(url, prefix)); err != nil {
		return apperr.Upstream("image delete failed", err)
	}
	return nil
}

func decodeImage(image string) ([]byte, error) {
	payload := strings.TrimSpace(image)
	if strings.HasPrefix(payload, "data:") {
		header, data, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, errInvalidDataURL
		}
		payload = data
	}

	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		content, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, err
		}
	}
	if len(content) == 0 {
		return nil, errInvalidDataURL
	}
	return content, nil
}
