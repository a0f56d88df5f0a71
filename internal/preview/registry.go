// Package preview issues session-scoped handles for stored attachments.
//
// A handle stands in for a browser object URL: it is derived from a stored
// binary on every load, never persisted, and released once superseded.
package preview

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/akashmaurya09/intelligrade/internal/models"
)

// HandlePrefix marks strings issued by a Registry.
const HandlePrefix = "preview:"

// ErrHandleNotFound indicates the handle was never issued, expired or was released.
var ErrHandleNotFound = errors.New("preview handle not found")

// Registry issues, resolves and releases preview handles.
type Registry interface {
	Issue(ctx context.Context, attachment models.Attachment) (string, error)
	Resolve(ctx context.Context, handle string) (models.Attachment, error)
	Release(ctx context.Context, handle string) error
}

// IsHandle reports whether value looks like an issued preview handle.
func IsHandle(value string) bool {
	return strings.HasPrefix(value, HandlePrefix) && len(value) > len(HandlePrefix)
}

func newHandle() string {
	return HandlePrefix + uuid.NewString()
}
