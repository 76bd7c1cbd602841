// internal/catalog/service.go
package catalog

import (
	"context"
)

// Service defines the interface for the catalog service.
type Service interface {
	CreateBook(ctx context.Context, d Draft) (int64, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	ListBooks(ctx context.Context, p Page) ([]Book, error)
	// UpdateBook replaces every field and resets available copies to the new total.
	UpdateBook(ctx context.Context, id int64, d Draft) error
	DeleteBook(ctx context.Context, id int64) error
	Borrow(ctx context.Context, id int64) error
	Return(ctx context.Context, id int64) error
}
