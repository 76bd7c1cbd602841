// internal/circulation/implementation.go
package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"librarydesk/internal/activity"
	"librarydesk/internal/catalog"
	"librarydesk/internal/civil"
	"librarydesk/internal/store"
)

const tableIssuance = "issuance"

var issuanceColumns = []any{"issuance_id", "member_id", "book_id", "due_date", "returned_date"}

// service implements the Service interface.
type service struct {
	db        *store.DB
	inventory *catalog.Inventory
	activity  activity.Recorder
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService creates a new circulation service instance.
func NewService(db *store.DB, inventory *catalog.Inventory, recorder activity.Recorder) Service {
	return &service{
		db:        db,
		inventory: inventory,
		activity:  recorder,
		tracer:    otel.Tracer("librarydesk/circulation"),
		now:       time.Now,
	}
}

func (s *service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "circulation."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// today is the current UTC calendar date.
func (s *service) today() civil.Date {
	return civil.DateOf(s.now().UTC())
}

// ListIssuances returns every issuance ordered by id.
func (s *service) ListIssuances(ctx context.Context) (issuances []Issuance, err error) {
	ctx, span := s.start(ctx, "list")
	defer func() { finish(span, err) }()

	issuances = []Issuance{}
	ds := s.db.Dialect().From(tableIssuance).Select(issuanceColumns...).Order(goqu.C("issuance_id").Asc())
	if err := s.db.Select(ctx, &issuances, ds); err != nil {
		return nil, fmt.Errorf("select issuances: %w", err)
	}
	return issuances, nil
}

// CreateIssuance records a loan.
func (s *service) CreateIssuance(ctx context.Context, l Loan) (id int64, err error) {
	ctx, span := s.start(ctx, "create", loanAttributes(l)...)
	defer func() { finish(span, err) }()

	id, err = insertIssuance(ctx, s.db.Querier, l)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("issuance.id", id))

	s.recordLoan(ctx, id, "issued", l)
	return id, nil
}

// CompleteIssuance stamps today's date on an open issuance. Unknown and
// already closed issuances both yield ErrIssuanceNotFound.
func (s *service) CompleteIssuance(ctx context.Context, id int64) (err error) {
	ctx, span := s.start(ctx, "complete", attribute.Int64("issuance.id", id))
	defer func() { finish(span, err) }()

	if err := s.closeIssuance(ctx, s.db.Querier, id); err != nil {
		return err
	}

	s.activity.Record(ctx, activity.Entry{Entity: "issuance", EntityID: id, Action: "completed"})
	return nil
}

// Checkout takes a copy off the shelf and records the loan. Either both
// happen or neither does.
func (s *service) Checkout(ctx context.Context, l Loan) (id int64, err error) {
	ctx, span := s.start(ctx, "checkout", loanAttributes(l)...)
	defer func() { finish(span, err) }()

	err = s.db.WithTx(ctx, func(q *store.Querier) error {
		if err := s.inventory.Decrement(ctx, q, l.BookID); err != nil {
			return err
		}
		var err error
		id, err = insertIssuance(ctx, q, l)
		return err
	})
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("issuance.id", id))

	s.recordLoan(ctx, id, "checked_out", l)
	return id, nil
}

// Checkin closes an open issuance and puts its copy back on the shelf. Either
// both happen or neither does.
func (s *service) Checkin(ctx context.Context, issuanceID int64) (err error) {
	ctx, span := s.start(ctx, "checkin", attribute.Int64("issuance.id", issuanceID))
	defer func() { finish(span, err) }()

	var bookID int64
	err = s.db.WithTx(ctx, func(q *store.Querier) error {
		sel := q.Dialect().From(tableIssuance).Select("book_id").Where(
			goqu.C("issuance_id").Eq(issuanceID),
			goqu.C("returned_date").IsNull(),
		)
		if err := q.Get(ctx, &bookID, sel); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrIssuanceNotFound
			}
			return fmt.Errorf("select issuance %d: %w", issuanceID, err)
		}

		if err := s.inventory.Increment(ctx, q, bookID); err != nil {
			return err
		}
		return s.closeIssuance(ctx, q, issuanceID)
	})
	if err != nil {
		return err
	}

	s.activity.Record(ctx, activity.Entry{
		Entity:   "issuance",
		EntityID: issuanceID,
		Action:   "checked_in",
		Detail:   map[string]any{"book_id": bookID},
	})
	return nil
}

func (s *service) closeIssuance(ctx context.Context, q *store.Querier, id int64) error {
	ds := q.Dialect().Update(tableIssuance).
		Set(goqu.Record{"returned_date": s.today()}).
		Where(
			goqu.C("issuance_id").Eq(id),
			goqu.C("returned_date").IsNull(),
		)
	n, err := q.Exec(ctx, ds)
	if err != nil {
		return fmt.Errorf("close issuance %d: %w", id, err)
	}
	if n == 0 {
		return ErrIssuanceNotFound
	}
	return nil
}

func insertIssuance(ctx context.Context, q *store.Querier, l Loan) (int64, error) {
	ds := q.Dialect().Insert(tableIssuance).Rows(goqu.Record{
		"member_id": l.MemberID,
		"book_id":   l.BookID,
		"due_date":  l.DueDate,
	})
	id, err := q.Insert(ctx, ds, "issuance_id")
	if errors.Is(err, store.ErrForeignKeyViolation) {
		return 0, ErrUnknownReference
	}
	if err != nil {
		return 0, fmt.Errorf("insert issuance: %w", err)
	}
	return id, nil
}

func (s *service) recordLoan(ctx context.Context, id int64, action string, l Loan) {
	s.activity.Record(ctx, activity.Entry{
		Entity:   "issuance",
		EntityID: id,
		Action:   action,
		Detail: map[string]any{
			"member_id": l.MemberID,
			"book_id":   l.BookID,
			"due_date":  l.DueDate.String(),
		},
	})
}

func loanAttributes(l Loan) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("member.id", l.MemberID),
		attribute.Int64("book.id", l.BookID),
		attribute.String("due_date", l.DueDate.String()),
	}
}
