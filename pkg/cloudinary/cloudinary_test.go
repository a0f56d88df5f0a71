package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublicIDSanitises(t *testing.T) {
	require.Equal(t, "paper-1", PublicID("paper-1"))
	require.Equal(t, "1700000000000-abc", PublicID("1700000000000/abc"))
	require.Equal(t, "record", PublicID("///"))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)

	mirror, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/intelligrade/"}, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "intelligrade/papers", mirror.assetFolder("papers"))
}
