package media

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/noah-isme/student-records-api/pkg/config"
)

// CloudinaryUploader stores assets on Cloudinary.
type CloudinaryUploader struct {
	client  *cloudinary.Cloudinary
	folder  string
	timeout time.Duration
}

// NewCloudinaryUploader builds an uploader from credentials in cfg.
func NewCloudinaryUploader(cfg config.MediaConfig) (*CloudinaryUploader, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials missing")
	}
	client, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary client: %w", err)
	}
	timeout := cfg.UploadTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &CloudinaryUploader{client: client, folder: cfg.UploadFolder, timeout: timeout}, nil
}

// Upload pushes the image and returns its secure URL and public id.
func (u *CloudinaryUploader) Upload(ctx context.Context, upload Upload) (*Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	result, err := u.client.Upload.Upload(ctx, upload.Content, uploader.UploadParams{
		Folder:       u.folder,
		UseFilename:  api.Bool(true),
		ResourceType: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	return &Asset{URL: result.SecureURL, AssetID: result.PublicID}, nil
}

// Destroy removes the asset identified by its public id.
func (u *CloudinaryUploader) Destroy(ctx context.Context, assetID string) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	if _, err := u.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: assetID}); err != nil {
		return fmt.Errorf("cloudinary destroy %s: %w", assetID, err)
	}
	return nil
}
