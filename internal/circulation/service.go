// internal/circulation/service.go
package circulation

import (
	"context"
)

// Service defines the interface for the circulation service.
type Service interface {
	ListIssuances(ctx context.Context) ([]Issuance, error)
	// CreateIssuance records a loan without touching the book's counter.
	CreateIssuance(ctx context.Context, l Loan) (int64, error)
	// CompleteIssuance closes an open issuance without touching the book's counter.
	CompleteIssuance(ctx context.Context, id int64) error
	// Checkout borrows a copy and records the loan in one transaction.
	Checkout(ctx context.Context, l Loan) (int64, error)
	// Checkin closes the loan and returns the copy in one transaction.
	Checkin(ctx context.Context, issuanceID int64) error
}
