// Package directory is the engine's view of the account directory: record
// lookup, multi-valued attributes and group membership.
package directory

import (
	"context"

	"github.com/dmitrijs2005/credengine/internal/server/models"
)

// Repository is implemented by every directory backend. Implementations are
// not required to be safe for concurrent use; wrap them in Serialized.
type Repository interface {
	// LookupAccount resolves a user record by name. Missing records yield
	// common.ErrNotFound.
	LookupAccount(ctx context.Context, name string) (*models.Account, error)
	// ReadAttribute returns the ordered values of an attribute. A missing
	// attribute yields an empty slice.
	ReadAttribute(ctx context.Context, handle, name string) ([]string, error)
	// WriteAttribute replaces every value of an attribute.
	WriteAttribute(ctx context.Context, handle, name string, values []string) error
	// IsMember reports whether the named user belongs to group.
	IsMember(ctx context.Context, group, name string) (bool, error)
}
