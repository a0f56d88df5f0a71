package cloudinary

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"

	"github.com/akashmaurya09/intelligrade/internal/models"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Enabled reports whether all credentials are present.
func (c Config) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Mirror copies stored attachments to Cloudinary so other devices can reach
// them by URL. The local store stays the source of truth.
type Mirror struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary mirror instance.
func New(cfg Config, logger zerolog.Logger) (*Mirror, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Mirror{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends the attachment under a stable public id derived from the
// collection and record id, overwriting any previous copy. It returns the
// secure URL of the stored asset.
func (m *Mirror) Upload(ctx context.Context, collection models.Collection, id string, attachment models.Attachment) (string, error) {
	if len(attachment.Bytes) == 0 {
		return "", fmt.Errorf("attachment for %s/%s is empty", collection, id)
	}

	params := uploader.UploadParams{
		Folder:       m.assetFolder(collection),
		PublicID:     PublicID(id),
		ResourceType: "auto",
		Overwrite:    api.Bool(true),
	}

	result, err := m.client.Upload.Upload(ctx, bytes.NewReader(attachment.Bytes), params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	m.logger.Info().
		Str("public_id", result.PublicID).
		Str("collection", string(collection)).
		Int("bytes", len(attachment.Bytes)).
		Msg("attachment mirrored to cloudinary")

	return result.SecureURL, nil
}

// Remove deletes the mirrored copy of a record. Missing assets are not an
// error.
func (m *Mirror) Remove(ctx context.Context, collection models.Collection, id string) error {
	publicID := m.assetFolder(collection) + "/" + PublicID(id)
	result, err := m.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   publicID,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to remove asset: %w", err)
	}

	m.logger.Debug().Str("public_id", publicID).Str("result", result.Result).Msg("cloudinary asset removed")
	return nil
}

func (m *Mirror) assetFolder(collection models.Collection) string {
	folder := strings.Trim(m.folder, "/")
	if folder == "" {
		return string(collection)
	}
	return folder + "/" + string(collection)
}

// PublicID maps a record id onto the characters Cloudinary accepts.
func PublicID(id string) string {
	base := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, id)

	base = strings.Trim(base, "-")
	if base == "" {
		return "record"
	}
	return base
}
