package circulation

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"librarydesk/internal/activity"
	"librarydesk/internal/catalog"
	"librarydesk/internal/civil"
	"librarydesk/internal/membership"
	"librarydesk/internal/store/storetest"
)

var today = time.Date(2026, 10, 17, 15, 4, 5, 0, time.UTC)

type fixture struct {
	circulation *service
	books       catalog.Service
	memberID    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storetest.SQLite(t)
	recorder := activity.NewLog(db, slog.Default())
	inv, err := catalog.NewInventory(noop.NewMeterProvider())
	require.NoError(t, err)

	members := membership.NewService(db, recorder)
	memberID, err := members.RegisterMember(context.Background(), membership.Profile{
		Name: "Ada", Email: "ada@example.com", Phone: "555", MembershipType: membership.TypeStandard,
		Address: "London", Password: "pw",
	})
	require.NoError(t, err)

	svc := NewService(db, inv, recorder).(*service)
	svc.now = func() time.Time { return today }

	return &fixture{
		circulation: svc,
		books:       catalog.NewService(db, inv, recorder),
		memberID:    memberID,
	}
}

func (f *fixture) book(t *testing.T, copies int) int64 {
	t.Helper()
	id, err := f.books.CreateBook(context.Background(), catalog.Draft{
		Title: "Dune", Author: "Frank Herbert", Genre: "SF", ISBN: "9780441013593", TotalCopies: copies,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) available(t *testing.T, bookID int64) int {
	t.Helper()
	b, err := f.books.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	return b.AvailableCopies
}

var due = civil.Date{Year: 2026, Month: time.November, Day: 1}

func TestCreateAndCompleteIssuance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.book(t, 2)

	id, err := f.circulation.CreateIssuance(ctx, Loan{MemberID: f.memberID, BookID: bookID, DueDate: due})
	require.NoError(t, err)
	assert.Equal(t, 2, f.available(t, bookID), "plain issuance leaves the counter alone")

	require.NoError(t, f.circulation.CompleteIssuance(ctx, id))
	assert.ErrorIs(t, f.circulation.CompleteIssuance(ctx, id), ErrIssuanceNotFound)
	assert.ErrorIs(t, f.circulation.CompleteIssuance(ctx, 999), ErrIssuanceNotFound)

	list, err := f.circulation.ListIssuances(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due, list[0].DueDate)
	require.NotNil(t, list[0].ReturnedDate)
	assert.Equal(t, civil.DateOf(today), *list[0].ReturnedDate)
	assert.False(t, list[0].Open())
}

func TestReturnedDateIsUTC(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.book(t, 1)

	// 23:30 on Oct 17 in UTC-5 is already Oct 18 in UTC.
	f.circulation.now = func() time.Time {
		return time.Date(2026, 10, 17, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	}

	id, err := f.circulation.CreateIssuance(ctx, Loan{MemberID: f.memberID, BookID: bookID, DueDate: due})
	require.NoError(t, err)
	require.NoError(t, f.circulation.CompleteIssuance(ctx, id))

	list, err := f.circulation.ListIssuances(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].ReturnedDate)
	assert.Equal(t, civil.Date{Year: 2026, Month: time.October, Day: 18}, *list[0].ReturnedDate)
}

func TestCreateIssuanceUnknownReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.book(t, 1)

	_, err := f.circulation.CreateIssuance(ctx, Loan{MemberID: 404, BookID: bookID, DueDate: due})
	assert.ErrorIs(t, err, ErrUnknownReference)

	_, err = f.circulation.CreateIssuance(ctx, Loan{MemberID: f.memberID, BookID: 404, DueDate: due})
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestCheckoutAndCheckin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.book(t, 1)

	id, err := f.circulation.Checkout(ctx, Loan{MemberID: f.memberID, BookID: bookID, DueDate: due})
	require.NoError(t, err)
	assert.Equal(t, 0, f.available(t, bookID))

	_, err = f.circulation.Checkout(ctx, Loan{MemberID: f.memberID, BookID: bookID, DueDate: due})
	assert.ErrorIs(t, err, catalog.ErrUnavailable)

	require.NoError(t, f.circulation.Checkin(ctx, id))
	assert.Equal(t, 1, f.available(t, bookID))

	assert.ErrorIs(t, f.circulation.Checkin(ctx, id), ErrIssuanceNotFound)
	assert.Equal(t, 1, f.available(t, bookID))
}

func TestCheckoutRollsBackOnUnknownMember(t *testing.T) {
	f := newFixture(t)
	bookID := f.book(t, 1)

	_, err := f.circulation.Checkout(context.Background(), Loan{MemberID: 404, BookID: bookID, DueDate: due})
	assert.ErrorIs(t, err, ErrUnknownReference)
	assert.Equal(t, 1, f.available(t, bookID))
}

func TestCheckinRollsBackWhenReturnRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := f.book(t, 1)

	// issued without a borrow, so the copy is still on the shelf
	id, err := f.circulation.CreateIssuance(ctx, Loan{MemberID: f.memberID, BookID: bookID, DueDate: due})
	require.NoError(t, err)

	assert.ErrorIs(t, f.circulation.Checkin(ctx, id), catalog.ErrReturnRejected)

	list, err := f.circulation.ListIssuances(ctx)
	require.NoError(t, err)
	assert.True(t, list[0].Open())
}

func TestHandler(t *testing.T) {
	f := newFixture(t)
	bookID := f.book(t, 1)
	r := chi.NewRouter()
	NewHandler(f.circulation, slog.Default()).Routes(r)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}
	loan := `{"member_id":` + jsonInt(f.memberID) + `,"book_id":` + jsonInt(bookID) + `,"due_date":"2026-11-01"}`

	rec := send(http.MethodPost, "/issuances", loan)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"Issuance added successfully","issuanceId":1}`, rec.Body.String())

	rec = send(http.MethodGet, "/issuances", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"issuance_id":1,"member_id":1,"book_id":1,"due_date":"2026-11-01","returned_date":null}]`, rec.Body.String())

	rec = send(http.MethodPatch, "/issuances/1/return", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Book returned successfully"}`, rec.Body.String())

	rec = send(http.MethodPatch, "/issuances/999/return", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Issuance not found"}`, rec.Body.String())

	rec = send(http.MethodPatch, "/issuances/abc/return", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = send(http.MethodPost, "/issuances", `{"member_id":1,"book_id":1,"due_date":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid due date")

	rec = send(http.MethodPost, "/issuances", `{"member_id":9,"book_id":1,"due_date":"2026-11-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Member or book does not exist"}`, rec.Body.String())

	rec = send(http.MethodPost, "/circulation/checkout", loan)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created createdResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Book checked out successfully", created.Message)

	rec = send(http.MethodPost, "/circulation/checkout", loan)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Book not available for borrowing"}`, rec.Body.String())

	rec = send(http.MethodPost, "/circulation/checkin", `{"issuance_id":`+jsonInt(created.IssuanceID)+`}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Book checked in successfully"}`, rec.Body.String())

	rec = send(http.MethodPost, "/circulation/checkin", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Issuance ID is required")
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
