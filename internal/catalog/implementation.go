// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"librarydesk/internal/activity"
	"librarydesk/internal/store"
)

var bookColumns = []any{"book_id", "title", "author", "genre", "isbn", "total_copies", "available_copies"}

// service implements the Service interface.
type service struct {
	db        *store.DB
	inventory *Inventory
	activity  activity.Recorder
	tracer    trace.Tracer
}

// NewService creates a new catalog service instance.
func NewService(db *store.DB, inventory *Inventory, recorder activity.Recorder) Service {
	return &service{
		db:        db,
		inventory: inventory,
		activity:  recorder,
		tracer:    otel.Tracer("librarydesk/catalog"),
	}
}

func (s *service) start(ctx context.Context, op string, id int64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "catalog."+op, trace.WithAttributes(attribute.Int64("book.id", id)))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateBook stores a new book with every copy available.
func (s *service) CreateBook(ctx context.Context, d Draft) (id int64, err error) {
	ctx, span := s.start(ctx, "create", 0)
	defer func() { finish(span, err) }()

	ds := s.db.Dialect().Insert(tableBooks).Rows(goqu.Record{
		"title":            d.Title,
		"author":           d.Author,
		"genre":            d.Genre,
		"isbn":             d.ISBN,
		"total_copies":     d.TotalCopies,
		"available_copies": d.TotalCopies,
	})
	id, err = s.db.Insert(ctx, ds, "book_id")
	if err != nil {
		return 0, fmt.Errorf("insert book: %w", err)
	}
	span.SetAttributes(attribute.Int64("book.id", id))

	s.activity.Record(ctx, activity.Entry{
		Entity:   "book",
		EntityID: id,
		Action:   "created",
		Detail:   map[string]any{"title": d.Title, "total_copies": d.TotalCopies},
	})
	return id, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id int64) (book *Book, err error) {
	ctx, span := s.start(ctx, "get", id)
	defer func() { finish(span, err) }()

	book = &Book{}
	ds := s.db.Dialect().From(tableBooks).Select(bookColumns...).Where(goqu.C("book_id").Eq(id))
	if err := s.db.Get(ctx, book, ds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("select book %d: %w", id, err)
	}
	return book, nil
}

// ListBooks returns one page of books ordered by id.
func (s *service) ListBooks(ctx context.Context, p Page) (books []Book, err error) {
	p = p.normalize()
	ctx, span := s.tracer.Start(ctx, "catalog.list", trace.WithAttributes(
		attribute.Int("page", p.Number),
		attribute.Int("limit", p.Limit),
	))
	defer func() { finish(span, err) }()

	books = []Book{}
	ds := s.db.Dialect().From(tableBooks).Select(bookColumns...).
		Order(goqu.C("book_id").Asc()).
		Limit(uint(p.Limit)).
		Offset(p.offset())
	if err := s.db.Select(ctx, &books, ds); err != nil {
		return nil, fmt.Errorf("select books: %w", err)
	}
	return books, nil
}

// UpdateBook overwrites the book and puts every copy back on the shelf,
// whatever was borrowed before.
func (s *service) UpdateBook(ctx context.Context, id int64, d Draft) (err error) {
	ctx, span := s.start(ctx, "update", id)
	defer func() { finish(span, err) }()

	ds := s.db.Dialect().Update(tableBooks).
		Set(goqu.Record{
			"title":            d.Title,
			"author":           d.Author,
			"genre":            d.Genre,
			"isbn":             d.ISBN,
			"total_copies":     d.TotalCopies,
			"available_copies": d.TotalCopies,
		}).
		Where(goqu.C("book_id").Eq(id))
	n, err := s.db.Exec(ctx, ds)
	if err != nil {
		return fmt.Errorf("update book %d: %w", id, err)
	}
	if n == 0 {
		return ErrBookNotFound
	}

	s.activity.Record(ctx, activity.Entry{
		Entity:   "book",
		EntityID: id,
		Action:   "updated",
		Detail:   map[string]any{"title": d.Title, "total_copies": d.TotalCopies},
	})
	return nil
}

// DeleteBook removes a book. Books with issuance history cannot be removed.
func (s *service) DeleteBook(ctx context.Context, id int64) (err error) {
	ctx, span := s.start(ctx, "delete", id)
	defer func() { finish(span, err) }()

	n, err := s.db.Exec(ctx, s.db.Dialect().Delete(tableBooks).Where(goqu.C("book_id").Eq(id)))
	if errors.Is(err, store.ErrForeignKeyViolation) {
		return ErrBookInUse
	}
	if err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	if n == 0 {
		return ErrBookNotFound
	}

	s.activity.Record(ctx, activity.Entry{Entity: "book", EntityID: id, Action: "deleted"})
	return nil
}

// Borrow takes one copy of the book off the shelf.
func (s *service) Borrow(ctx context.Context, id int64) (err error) {
	ctx, span := s.start(ctx, "borrow", id)
	defer func() { finish(span, err) }()

	if err := s.inventory.Decrement(ctx, s.db.Querier, id); err != nil {
		return err
	}
	s.activity.Record(ctx, activity.Entry{Entity: "book", EntityID: id, Action: "borrowed"})
	return nil
}

// Return puts one copy of the book back on the shelf.
func (s *service) Return(ctx context.Context, id int64) (err error) {
	ctx, span := s.start(ctx, "return", id)
	defer func() { finish(span, err) }()

	if err := s.inventory.Increment(ctx, s.db.Querier, id); err != nil {
		return err
	}
	s.activity.Record(ctx, activity.Entry{Entity: "book", EntityID: id, Action: "returned"})
	return nil
}
