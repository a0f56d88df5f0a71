package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttachmentIsImage(t *testing.T) {
	cases := map[string]bool{
		"image/jpeg":       true,
		" IMAGE/PNG ":      true,
		"image/webp":       true,
		"application/pdf":  false,
		"text/plain":       false,
		"":                 false,
		"application/json": false,
	}
	for mediaType, want := range cases {
		require.Equal(t, want, Attachment{MediaType: mediaType}.IsImage(), mediaType)
	}
}

func TestAttachmentCloneIsDeep(t *testing.T) {
	original := NewUpload([]byte{1, 2, 3}, " image/png ")
	require.Equal(t, "image/png", original.MediaType)
	require.True(t, original.Fresh)

	clone := original.Clone()
	clone.Bytes[0] = 9
	require.Equal(t, byte(1), original.Bytes[0])
	require.Equal(t, 3, clone.Size())

	var missing *Attachment
	require.Nil(t, missing.Clone())
	require.Zero(t, missing.Size())
}
