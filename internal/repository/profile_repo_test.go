package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/akashmaurya09/intelligrade/internal/models"
)

func TestProfileRepositoryNormalisesEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository(setupTestDB(t))

	profile := models.UserProfile{UID: "u1", Email: "  Teacher@Example.com ", DisplayName: "Ms T", Role: "teacher"}
	require.NoError(t, repo.Create(ctx, &profile))

	found, err := repo.GetByEmail(ctx, "teacher@example.COM")
	require.NoError(t, err)
	require.Equal(t, "u1", found.UID)

	_, err = repo.GetByUID(ctx, "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
