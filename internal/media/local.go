package media

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/student-records-api/pkg/storage"
)

// LocalUploader stores assets on the local filesystem and serves them under
// /uploads. Used in development and as a fallback when no Cloudinary
// credentials are configured.
type LocalUploader struct {
	store   *storage.FileStore
	baseURL string
}

// NewLocalUploader wires a file store and the public base URL assets are
// reachable under (empty means relative /uploads paths).
func NewLocalUploader(store *storage.FileStore, publicBaseURL string) *LocalUploader {
	return &LocalUploader{store: store, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Upload writes the file under a random name, keeping the original extension.
func (u *LocalUploader) Upload(ctx context.Context, upload Upload) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := uuid.NewString() + strings.ToLower(path.Ext(upload.Filename))
	if _, err := u.store.SaveStream(name, upload.Content); err != nil {
		return nil, fmt.Errorf("local upload: %w", err)
	}
	return &Asset{URL: u.baseURL + "/uploads/" + name, AssetID: name}, nil
}

// Destroy removes the backing file.
func (u *LocalUploader) Destroy(ctx context.Context, assetID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return u.store.Delete(assetID)
}
