// internal/membership/service.go
package membership

import (
	"context"
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterMember(ctx context.Context, p Profile) (int64, error)
	GetMember(ctx context.Context, id int64) (*Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	UpdateMember(ctx context.Context, id int64, p Profile) error
}
