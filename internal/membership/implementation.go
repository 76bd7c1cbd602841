// internal/membership/implementation.go
package membership

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

const tableMembers = "members"

var memberColumns = []any{"member_id", "name", "email", "phone", "membership_type", "address", "password_hash"}

// service implements the Service interface.
type service struct {
	db       *store.DB
	activity activity.Recorder
	tracer   trace.Tracer
}

// NewService creates a new membership service instance.
func NewService(db *store.DB, recorder activity.Recorder) Service {
	return &service{
		db:       db,
		activity: recorder,
		tracer:   otel.Tracer("librarydesk/membership"),
	}
}

func (s *service) start(ctx context.Context, op string, id int64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "membership."+op, trace.WithAttributes(attribute.Int64("member.id", id)))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RegisterMember creates a new member.
func (s *service) RegisterMember(ctx context.Context, p Profile) (id int64, err error) {
	ctx, span := s.start(ctx, "register", 0)
	defer func() { finish(span, err) }()

	passwordHash, err := hashPassword(p.Password)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	ds := s.db.Dialect().Insert(tableMembers).Rows(goqu.Record{
		"name":            p.Name,
		"email":           p.Email,
		"phone":           p.Phone,
		"membership_type": p.MembershipType,
		"address":         p.Address,
		"password_hash":   passwordHash,
	})
	id, err = s.db.Insert(ctx, ds, "member_id")
	if errors.Is(err, store.ErrUniqueViolation) {
		return 0, ErrEmailTaken
	}
	if err != nil {
		return 0, fmt.Errorf("insert member: %w", err)
	}
	span.SetAttributes(attribute.Int64("member.id", id))

	s.activity.Record(ctx, activity.Entry{
		Entity:   "member",
		EntityID: id,
		Action:   "registered",
		Detail:   map[string]any{"membership_type": p.MembershipType},
	})
	return id, nil
}

// GetMember retrieves a member by its ID.
func (s *service) GetMember(ctx context.Context, id int64) (member *Member, err error) {
	ctx, span := s.start(ctx, "get", id)
	defer func() { finish(span, err) }()

	member = &Member{}
	ds := s.db.Dialect().From(tableMembers).Select(memberColumns...).Where(goqu.C("member_id").Eq(id))
	if err := s.db.Get(ctx, member, ds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("select member %d: %w", id, err)
	}
	return member, nil
}

// ListMembers returns every member ordered by id.
func (s *service) ListMembers(ctx context.Context) (members []Member, err error) {
	ctx, span := s.tracer.Start(ctx, "membership.list")
	defer func() { finish(span, err) }()

	members = []Member{}
	ds := s.db.Dialect().From(tableMembers).Select(memberColumns...).Order(goqu.C("member_id").Asc())
	if err := s.db.Select(ctx, &members, ds); err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	return members, nil
}

// UpdateMember overwrites every field of the member. The stored hash is kept
// when the password did not change.
func (s *service) UpdateMember(ctx context.Context, id int64, p Profile) (err error) {
	ctx, span := s.start(ctx, "update", id)
	defer func() { finish(span, err) }()

	current, err := s.GetMember(ctx, id)
	if err != nil {
		return err
	}

	passwordHash := current.PasswordHash
	if same, verr := verifyPassword(p.Password, current.PasswordHash); verr != nil || !same {
		if passwordHash, err = hashPassword(p.Password); err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
	}

	ds := s.db.Dialect().Update(tableMembers).
		Set(goqu.Record{
			"name":            p.Name,
			"email":           p.Email,
			"phone":           p.Phone,
			"membership_type": p.MembershipType,
			"address":         p.Address,
			"password_hash":   passwordHash,
		}).
		Where(goqu.C("member_id").Eq(id))
	n, err := s.db.Exec(ctx, ds)
	if errors.Is(err, store.ErrUniqueViolation) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("update member %d: %w", id, err)
	}
	if n == 0 {
		return ErrMemberNotFound
	}

	s.activity.Record(ctx, activity.Entry{
		Entity:   "member",
		EntityID: id,
		Action:   "updated",
		Detail:   map[string]any{"membership_type": p.MembershipType},
	})
	return nil
}
