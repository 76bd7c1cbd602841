// Package activity keeps an append-only log of successful catalog, membership
// and circulation mutations.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"librarydesk/internal/store"
)

const (
	tableActivity = "activity"

	DefaultLimit = 50
	MaxLimit     = 500
)

// Entry is one recorded mutation.
type Entry struct {
	ID        int64          `json:"activity_id"`
	Entity    string         `json:"entity"`
	EntityID  int64          `json:"entity_id"`
	Action    string         `json:"action"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type row struct {
	ID        int64     `db:"activity_id"`
	Entity    string    `db:"entity"`
	EntityID  int64     `db:"entity_id"`
	Action    string    `db:"action"`
	Detail    *string   `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}

// Recorder is what the domain services depend on.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Log persists entries in the activity table.
type Log struct {
	db     *store.DB
	tracer trace.Tracer
	logger *slog.Logger
	now    func() time.Time
}

// NewLog creates a Log backed by db.
func NewLog(db *store.DB, logger *slog.Logger) *Log {
	return &Log{
		db:     db,
		tracer: otel.Tracer("librarydesk/activity"),
		logger: logger,
		now:    time.Now,
	}
}

// Record appends e and logs, rather than returns, any failure: the mutation it
// describes has already been committed.
func (l *Log) Record(ctx context.Context, e Entry) {
	if err := l.Append(ctx, e); err != nil {
		l.logger.WarnContext(ctx, "failed to record activity",
			"entity", e.Entity,
			"entity_id", e.EntityID,
			"action", e.Action,
			"error", err,
		)
	}
}

// Append writes e.
func (l *Log) Append(ctx context.Context, e Entry) error {
	ctx, span := l.tracer.Start(ctx, "activity.append",
		trace.WithAttributes(
			attribute.String("entity", e.Entity),
			attribute.Int64("entity.id", e.EntityID),
			attribute.String("action", e.Action),
		),
	)
	defer span.End()

	var detail any
	if len(e.Detail) > 0 {
		b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshal detail: %w", err)
		}
		detail = string(b)
	}

	ds := l.db.Dialect().Insert(tableActivity).Rows(goqu.Record{
		"entity":     e.Entity,
		"entity_id":  e.EntityID,
		"action":     e.Action,
		"detail":     detail,
		"created_at": l.now().UTC(),
	})
	id, err := l.db.Insert(ctx, ds, "activity_id")
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert activity: %w", err)
	}

	span.SetAttributes(attribute.Int64("activity.id", id))
	return nil
}

// List returns the newest entries first. limit is clamped to [1, MaxLimit].
func (l *Log) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	ctx, span := l.tracer.Start(ctx, "activity.list", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	var rows []row
	ds := l.db.Dialect().From(tableActivity).
		Select("activity_id", "entity", "entity_id", "action", "detail", "created_at").
		Order(goqu.C("activity_id").Desc()).
		Limit(uint(limit))
	if err := l.db.Select(ctx, &rows, ds); err != nil {
		return nil, fmt.Errorf("select activity: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := Entry{
			ID:        r.ID,
			Entity:    r.Entity,
			EntityID:  r.EntityID,
			Action:    r.Action,
			CreatedAt: r.CreatedAt,
		}
		if r.Detail != nil && *r.Detail != "" {
			if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(*r.Detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode detail of activity %d: %w", r.ID, err)
			}
		}
		entries = append(entries, e)
	}

	span.SetAttributes(attribute.Int("activity.loaded", len(entries)))
	return entries, nil
}
