package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/akashmaurya09/intelligrade/internal/models"
	"github.com/akashmaurya09/intelligrade/internal/observability"
	"github.com/akashmaurya09/intelligrade/internal/preview"
)

// DefaultPlaceholderPreview is served for records that carry no binary.
const DefaultPlaceholderPreview = "/static/placeholder-document.svg"

// StoredRecord is one record of a collection as read back from the store.
type StoredRecord struct {
	ID         string
	Metadata   datatypes.JSON
	Attachment *models.Attachment
	PreviewURL string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AttachmentStore is the durable key-value store behind papers and submissions.
type AttachmentStore interface {
	Put(ctx context.Context, collection models.Collection, id string, metadata interface{}, attachment *models.Attachment) error
	GetAll(ctx context.Context, collection models.Collection) ([]StoredRecord, error)
	Delete(ctx context.Context, collection models.Collection, id string) error
}

type attachmentStore struct {
	db          *gorm.DB
	previews    preview.Registry
	placeholder string
}

// NewAttachmentStore constructs the store. An empty placeholder selects
// DefaultPlaceholderPreview.
func NewAttachmentStore(db *gorm.DB, previews preview.Registry, placeholder string) AttachmentStore {
	if placeholder == "" {
		placeholder = DefaultPlaceholderPreview
	}
	return &attachmentStore{db: db, previews: previews, placeholder: placeholder}
}

// Put upserts the record. A nil attachment leaves any previously stored
// binary and media type in place.
func (s *attachmentStore) Put(ctx context.Context, collection models.Collection, id string, metadata interface{}, attachment *models.Attachment) (err error) {
	defer observeStore(collection, "put", time.Now(), &err)

	if id == "" {
		return fmt.Errorf("put %s: id must not be empty", collection)
	}

	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode %s metadata: %w", collection, err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.AttachmentRecord
		lookup := tx.Where("collection = ? AND id = ?", collection, id).Limit(1).Find(&existing)
		if lookup.Error != nil {
			return lookup.Error
		}
		if lookup.RowsAffected == 0 {
			record := models.AttachmentRecord{
				Collection: collection,
				ID:         id,
				Metadata:   datatypes.JSON(payload),
			}
			if attachment != nil {
				record.Blob = attachment.Bytes
				record.MediaType = attachment.MediaType
			}
			return tx.Create(&record).Error
		}

		updates := map[string]interface{}{
			"metadata":   datatypes.JSON(payload),
			"updated_at": time.Now(),
		}
		if attachment != nil {
			updates["blob"] = attachment.Bytes
			updates["media_type"] = attachment.MediaType
		}

		return tx.Model(&models.AttachmentRecord{}).
			Where("collection = ? AND id = ?", collection, id).
			Updates(updates).Error
	})
}

// GetAll returns every record of the collection in no particular order.
func (s *attachmentStore) GetAll(ctx context.Context, collection models.Collection) (_ []StoredRecord, err error) {
	defer observeStore(collection, "get_all", time.Now(), &err)

	var rows []models.AttachmentRecord
	if err := s.db.WithContext(ctx).Where("collection = ?", collection).Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]StoredRecord, 0, len(rows))
	for _, row := range rows {
		record := StoredRecord{
			ID:         row.ID,
			Metadata:   row.Metadata,
			PreviewURL: s.placeholder,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
		}

		if len(row.Blob) > 0 {
			mediaType := row.MediaType
			if mediaType == "" {
				mediaType = "application/octet-stream"
			}
			handle, issueErr := s.previews.Issue(ctx, models.Attachment{Bytes: row.Blob, MediaType: mediaType})
			if issueErr != nil {
				return nil, fmt.Errorf("issue preview for %s/%s: %w", collection, row.ID, issueErr)
			}
			record.PreviewURL = handle

			if row.MediaType != "" {
				record.Attachment = &models.Attachment{Bytes: row.Blob, MediaType: row.MediaType}
			}
		}

		records = append(records, record)
	}

	return records, nil
}

// Delete removes the record and its binary permanently.
func (s *attachmentStore) Delete(ctx context.Context, collection models.Collection, id string) (err error) {
	defer observeStore(collection, "delete", time.Now(), &err)

	return s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&models.AttachmentRecord{}).Error
}

func observeStore(collection models.Collection, operation string, start time.Time, err *error) {
	outcome := "ok"
	if err != nil && *err != nil {
		outcome = "error"
	}
	observability.StoreOperations().WithLabelValues(string(collection), operation, outcome).Inc()
	observability.StoreLatency().WithLabelValues(string(collection), operation).Observe(time.Since(start).Seconds())
}
