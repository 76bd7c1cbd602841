package validation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/civil"
)

func paths(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	out := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		out[i] = f.Path
	}
	return out
}

func TestBook(t *testing.T) {
	f, err := Book(map[string]any{
		"title": "Dune", "author": "Frank Herbert", "genre": "SF", "isbn": "9780441013593",
		"total_copies": json.Number("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, BookFields{Title: "Dune", Author: "Frank Herbert", Genre: "SF", ISBN: "9780441013593", TotalCopies: 5}, f)

	f, err = Book(map[string]any{"title": "a", "author": "b", "genre": "c", "isbn": "d", "total_copies": "7"})
	require.NoError(t, err)
	assert.Equal(t, 7, f.TotalCopies)
}

func TestBookCollectsEveryViolation(t *testing.T) {
	_, err := Book(map[string]any{"total_copies": json.Number("0")})
	assert.Equal(t, []string{"title", "author", "genre", "isbn", "total_copies"}, paths(t, err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Title is required", verr.Fields[0].Msg)
	assert.Equal(t, "Total copies must be a positive integer", verr.Fields[4].Msg)
	assert.Equal(t, json.Number("0"), verr.Fields[4].Value)
	assert.Nil(t, verr.Fields[0].Value)
	assert.Equal(t, "body", verr.Fields[0].Location)
}

func TestBookTotalCopiesShapes(t *testing.T) {
	base := func(v any) map[string]any {
		return map[string]any{"title": "a", "author": "b", "genre": "c", "isbn": "d", "total_copies": v}
	}
	for _, bad := range []any{json.Number("2.5"), json.Number("-1"), "abc", "5.0", true, nil, []any{1}, json.Number("3000000000")} {
		_, err := Book(base(bad))
		assert.Equal(t, []string{"total_copies"}, paths(t, err), "%#v", bad)
	}
	for _, good := range []any{json.Number("1"), json.Number("4.0"), float64(3), "+2"} {
		_, err := Book(base(good))
		assert.NoError(t, err, "%#v", good)
	}
}

func TestMember(t *testing.T) {
	valid := map[string]any{
		"name": "Ada", "email": "ada@example.com", "phone": "555", "membership_type": "Premium",
		"address": "1 Analytical St", "password": "secret",
	}
	f, err := Member(valid)
	require.NoError(t, err)
	assert.Equal(t, "Premium", f.MembershipType)

	valid["email"] = "not-an-email"
	valid["membership_type"] = "Gold"
	_, err = Member(valid)
	assert.Equal(t, []string{"email", "membership_type"}, paths(t, err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("email"))
	assert.Equal(t, "Invalid email", verr.Fields[0].Msg)
	assert.Contains(t, verr.Error(), "email")
}

func TestIssuance(t *testing.T) {
	f, err := Issuance(map[string]any{"member_id": json.Number("3"), "book_id": "4", "due_date": "2030/1/9"})
	require.NoError(t, err)
	assert.Equal(t, IssuanceFields{MemberID: 3, BookID: 4, DueDate: civil.Date{Year: 2030, Month: time.January, Day: 9}}, f)

	_, err = Issuance(map[string]any{"member_id": json.Number("0"), "due_date": "next week"})
	assert.Equal(t, []string{"member_id", "book_id", "due_date"}, paths(t, err))
}

func TestIntegerFormsShareOneRange(t *testing.T) {
	for _, v := range []any{json.Number("3000000000"), json.Number("3e9"), float64(3e9), "3000000000"} {
		f, err := Issuance(map[string]any{"member_id": v, "book_id": json.Number("1"), "due_date": "2030-01-09"})
		require.NoError(t, err, "%#v", v)
		assert.Equal(t, int64(3000000000), f.MemberID, "%#v", v)
	}

	for _, v := range []any{json.Number("3000000000"), json.Number("3e9")} {
		_, err := Book(map[string]any{"title": "a", "author": "b", "genre": "c", "isbn": "d", "total_copies": v})
		assert.Equal(t, []string{"total_copies"}, paths(t, err), "%#v", v)
	}
}

func TestCheckin(t *testing.T) {
	f, err := Checkin(map[string]any{"issuance_id": json.Number("12")})
	require.NoError(t, err)
	assert.Equal(t, int64(12), f.IssuanceID)

	_, err = Checkin(map[string]any{})
	assert.Equal(t, []string{"issuance_id"}, paths(t, err))
}
