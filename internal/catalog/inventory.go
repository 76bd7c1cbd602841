// internal/catalog/inventory.go
package catalog

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"librarydesk/internal/store"
)

const tableBooks = "books"

// Inventory applies the guarded counter transitions to books.available_copies.
// Each transition is one conditional UPDATE, so concurrent callers can never
// push the counter outside [0, total_copies].
type Inventory struct {
	transitions metric.Int64Counter
}

// NewInventory creates an Inventory reporting transitions to mp.
func NewInventory(mp metric.MeterProvider) (*Inventory, error) {
	counter, err := mp.Meter("librarydesk/catalog").Int64Counter("library.inventory.transitions",
		metric.WithDescription("Guarded available_copies transitions by operation and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create transitions counter: %w", err)
	}
	return &Inventory{transitions: counter}, nil
}

// Decrement takes one copy off the shelf. ErrUnavailable covers both an
// unknown book and one with no copies left.
func (inv *Inventory) Decrement(ctx context.Context, q *store.Querier, bookID int64) error {
	ds := q.Dialect().Update(tableBooks).
		Set(goqu.Record{"available_copies": goqu.L("available_copies - 1")}).
		Where(
			goqu.C("book_id").Eq(bookID),
			goqu.C("available_copies").Gt(0),
		)
	return inv.apply(ctx, q, ds, "borrow", ErrUnavailable)
}

// Increment puts one copy back. ErrReturnRejected covers both an unknown book
// and one whose copies are all on the shelf.
func (inv *Inventory) Increment(ctx context.Context, q *store.Querier, bookID int64) error {
	ds := q.Dialect().Update(tableBooks).
		Set(goqu.Record{"available_copies": goqu.L("available_copies + 1")}).
		Where(
			goqu.C("book_id").Eq(bookID),
			goqu.C("available_copies").Lt(goqu.I("total_copies")),
		)
	return inv.apply(ctx, q, ds, "return", ErrReturnRejected)
}

func (inv *Inventory) apply(ctx context.Context, q *store.Querier, ds *goqu.UpdateDataset, op string, rejected error) error {
	n, err := q.Exec(ctx, ds)
	if err != nil {
		inv.count(ctx, op, "error")
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		inv.count(ctx, op, "rejected")
		return rejected
	}
	inv.count(ctx, op, "applied")
	return nil
}

func (inv *Inventory) count(ctx context.Context, op, outcome string) {
	inv.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

// Holding is one book's counters next to its open issuances.
type Holding struct {
	BookID          int64 `db:"book_id"`
	TotalCopies     int   `db:"total_copies"`
	AvailableCopies int   `db:"available_copies"`
	OpenIssuances   int   `db:"open_issuances"`
}

// InBounds reports whether 0 <= available <= total.
func (h Holding) InBounds() bool {
	return h.AvailableCopies >= 0 && h.AvailableCopies <= h.TotalCopies
}

// Overcommitted reports whether more issuances are open than copies are out.
func (h Holding) Overcommitted() bool {
	return h.OpenIssuances > h.TotalCopies-h.AvailableCopies
}

// AuditReport summarizes Audit.
type AuditReport struct {
	Books         int
	OutOfBounds   []int64
	Overcommitted []int64
}

// Audit reads every book with its open issuance count.
func Audit(ctx context.Context, q *store.Querier) (AuditReport, error) {
	var holdings []Holding
	ds := q.Dialect().From(goqu.T(tableBooks).As("b")).
		LeftJoin(goqu.T("issuance").As("i"), goqu.On(
			goqu.I("i.book_id").Eq(goqu.I("b.book_id")),
			goqu.I("i.returned_date").IsNull(),
		)).
		Select(
			goqu.I("b.book_id"),
			goqu.I("b.total_copies"),
			goqu.I("b.available_copies"),
			goqu.COUNT(goqu.I("i.issuance_id")).As("open_issuances"),
		).
		GroupBy(goqu.I("b.book_id"), goqu.I("b.total_copies"), goqu.I("b.available_copies")).
		Order(goqu.I("b.book_id").Asc())
	if err := q.Select(ctx, &holdings, ds); err != nil {
		return AuditReport{}, fmt.Errorf("select holdings: %w", err)
	}

	report := AuditReport{Books: len(holdings)}
	for _, h := range holdings {
		if !h.InBounds() {
			report.OutOfBounds = append(report.OutOfBounds, h.BookID)
		}
		if h.Overcommitted() {
			report.Overcommitted = append(report.Overcommitted, h.BookID)
		}
	}
	return report, nil
}
