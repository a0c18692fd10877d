// Package media abstracts the external image host. The service layer only
// sees the Uploader capability, so unit tests swap in in-memory fakes and
// never touch a real network service.
package media

import (
	"context"
	"io"
)

// Asset references an externally hosted image.
type Asset struct {
	// URL is the public location served to clients.
	URL string
	// AssetID is the host-side identifier, kept for later asset management
	// (deletion on record removal or image replacement).
	AssetID string
}

// Upload carries one inbound image file.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Uploader stores and removes image assets on the media host.
type Uploader interface {
	Upload(ctx context.Context, upload Upload) (*Asset, error)
	Destroy(ctx context.Context, assetID string) error
}
