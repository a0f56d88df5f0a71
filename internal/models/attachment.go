package models

import "strings"

// Attachment is a binary payload together with its media type.
type Attachment struct {
	Bytes     []byte `json:"-"`
	MediaType string `json:"media_type"`
	// Fresh is true for a newly uploaded payload that has not been stored yet.
	Fresh bool `json:"-"`
}

// NewUpload wraps freshly uploaded bytes.
func NewUpload(data []byte, mediaType string) *Attachment {
	return &Attachment{Bytes: data, MediaType: strings.TrimSpace(mediaType), Fresh: true}
}

// IsImage reports whether the declared media type is an image type.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.MediaType)), "image/")
}

// Size returns the payload length in bytes.
func (a *Attachment) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Bytes)
}

// Clone returns a deep copy of the attachment.
func (a *Attachment) Clone() *Attachment {
	if a == nil {
		return nil
	}
	data := make([]byte, len(a.Bytes))
	copy(data, a.Bytes)
	return &Attachment{Bytes: data, MediaType: a.MediaType, Fresh: a.Fresh}
}
