package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/doug-martin/goqu/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"pgregory.net/rapid"

	"librarydesk/internal/activity"
	"librarydesk/internal/store"
	"librarydesk/internal/store/storetest"
)

func newTestService(t *testing.T) (Service, *store.DB) {
	t.Helper()
	db := storetest.SQLite(t)
	inv, err := NewInventory(noop.NewMeterProvider())
	require.NoError(t, err)
	return NewService(db, inv, activity.NewLog(db, slog.Default())), db
}

func dune(copies int) Draft {
	return Draft{Title: "Dune", Author: "Frank Herbert", Genre: "SF", ISBN: "9780441013593", TotalCopies: copies}
}

func available(t *testing.T, svc Service, id int64) int {
	t.Helper()
	book, err := svc.GetBook(context.Background(), id)
	require.NoError(t, err)
	return book.AvailableCopies
}

func TestCreateBookStartsFullyAvailable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateBook(ctx, dune(5))
	require.NoError(t, err)

	book, err := svc.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Book{ID: id, Title: "Dune", Author: "Frank Herbert", Genre: "SF", ISBN: "9780441013593", TotalCopies: 5, AvailableCopies: 5}, *book)
}

func TestBorrowReturnRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateBook(ctx, dune(5))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Borrow(ctx, id))
	}
	assert.Equal(t, 2, available(t, svc, id))

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.Return(ctx, id))
	}
	assert.Equal(t, 4, available(t, svc, id))
}

func TestBorrowAtZeroIsRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateBook(ctx, dune(1))
	require.NoError(t, err)
	require.NoError(t, svc.Borrow(ctx, id))

	assert.ErrorIs(t, svc.Borrow(ctx, id), ErrUnavailable)
	assert.Equal(t, 0, available(t, svc, id))

	assert.ErrorIs(t, svc.Borrow(ctx, 999), ErrUnavailable)
}

func TestReturnAtCeilingIsRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateBook(ctx, dune(2))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Return(ctx, id), ErrReturnRejected)
	assert.Equal(t, 2, available(t, svc, id))

	assert.ErrorIs(t, svc.Return(ctx, 999), ErrReturnRejected)
}

func TestInventoryCountsTransitions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	inv, err := NewInventory(provider)
	require.NoError(t, err)

	db := storetest.SQLite(t)
	svc := NewService(db, inv, activity.NewLog(db, slog.Default()))
	ctx := context.Background()

	id, err := svc.CreateBook(ctx, dune(1))
	require.NoError(t, err)

	require.NoError(t, svc.Borrow(ctx, id))
	assert.ErrorIs(t, svc.Borrow(ctx, id), ErrUnavailable)
	assert.ErrorIs(t, svc.Borrow(ctx, id), ErrUnavailable)
	require.NoError(t, svc.Return(ctx, id))
	assert.ErrorIs(t, svc.Return(ctx, id), ErrReturnRejected)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := transitionCounts(t, rm)
	assert.Equal(t, map[string]int64{
		"borrow/applied":  1,
		"borrow/rejected": 2,
		"return/applied":  1,
		"return/rejected": 1,
	}, counts)
}

func transitionCounts(t *testing.T, rm metricdata.ResourceMetrics) map[string]int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "library.inventory.transitions" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "unexpected data type %T", m.Data)

			counts := make(map[string]int64)
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value(attribute.Key("op"))
				outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
				counts[op.AsString()+"/"+outcome.AsString()] = dp.Value
			}
			return counts
		}
	}
	t.Fatal("library.inventory.transitions not collected")
	return nil
}

func TestUpdateBookResetsAvailability(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateBook(ctx, dune(3))
	require.NoError(t, err)
	require.NoError(t, svc.Borrow(ctx, id))
	require.NoError(t, svc.Borrow(ctx, id))

	d := dune(4)
	d.Title = "Dune Messiah"
	require.NoError(t, svc.UpdateBook(ctx, id, d))

	book, err := svc.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", book.Title)
	assert.Equal(t, 4, book.TotalCopies)
	assert.Equal(t, 4, book.AvailableCopies)

	assert.ErrorIs(t, svc.UpdateBook(ctx, 999, d), ErrBookNotFound)
}

func TestDeleteBook(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateBook(ctx, dune(1))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBook(ctx, id))
	assert.ErrorIs(t, svc.DeleteBook(ctx, id), ErrBookNotFound)

	_, err = svc.GetBook(ctx, id)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestListBooksPages(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := svc.CreateBook(ctx, dune(1))
		require.NoError(t, err)
	}

	first, err := svc.ListBooks(ctx, Page{})
	require.NoError(t, err)
	assert.Len(t, first, DefaultPageLimit)
	assert.Equal(t, int64(1), first[0].ID)

	second, err := svc.ListBooks(ctx, Page{Number: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.Equal(t, int64(11), second[0].ID)

	empty, err := svc.ListBooks(ctx, Page{Number: 5})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Number: 1, Limit: 10}, Page{}.normalize())
	assert.Equal(t, Page{Number: 3, Limit: MaxPageLimit}, Page{Number: 3, Limit: 1000}.normalize())
	assert.Equal(t, uint(20), Page{Number: 3, Limit: 10}.offset())
}

func TestConcurrentBorrowsOfLastCopy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateBook(ctx, dune(1))
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Borrow(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrUnavailable):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)
	assert.Equal(t, 0, available(t, svc, id))
}

func TestCounterStaysInBounds(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		total := rapid.IntRange(1, 6).Draw(rt, "total")
		ops := rapid.SliceOfN(rapid.Bool(), 0, 40).Draw(rt, "borrow")

		id, err := svc.CreateBook(ctx, dune(total))
		if err != nil {
			rt.Fatalf("create: %v", err)
		}

		want := total
		for _, borrow := range ops {
			if borrow {
				err = svc.Borrow(ctx, id)
				if want > 0 {
					want--
					if err != nil {
						rt.Fatalf("borrow with %d available: %v", want+1, err)
					}
				} else if err != ErrUnavailable {
					rt.Fatalf("borrow at zero: got %v", err)
				}
			} else {
				err = svc.Return(ctx, id)
				if want < total {
					want++
					if err != nil {
						rt.Fatalf("return with %d available: %v", want-1, err)
					}
				} else if err != ErrReturnRejected {
					rt.Fatalf("return at ceiling: got %v", err)
				}
			}

			book, err := svc.GetBook(ctx, id)
			if err != nil {
				rt.Fatalf("get: %v", err)
			}
			if book.AvailableCopies != want || book.AvailableCopies < 0 || book.AvailableCopies > book.TotalCopies {
				rt.Fatalf("available %d, want %d of %d", book.AvailableCopies, want, total)
			}
		}
	})

	report, err := Audit(ctx, db.Querier)
	require.NoError(t, err)
	assert.Empty(t, report.OutOfBounds)
	assert.Empty(t, report.Overcommitted)
}

func TestAuditFlagsOvercommittedBooks(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateBook(ctx, dune(2))
	require.NoError(t, err)

	memberID, err := db.Insert(ctx, db.Dialect().Insert("members").Rows(goqu.Record{
		"name": "Ada", "email": "ada@example.com", "phone": "1", "membership_type": "Standard",
		"address": "x", "password_hash": "h",
	}), "member_id")
	require.NoError(t, err)

	// an issuance recorded without a borrow
	_, err = db.Insert(ctx, db.Dialect().Insert("issuance").Rows(goqu.Record{
		"member_id": memberID, "book_id": id, "due_date": "2030-01-01",
	}), "issuance_id")
	require.NoError(t, err)

	report, err := Audit(ctx, db.Querier)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Books)
	assert.Equal(t, []int64{id}, report.Overcommitted)

	require.NoError(t, svc.Borrow(ctx, id))
	report, err = Audit(ctx, db.Querier)
	require.NoError(t, err)
	assert.Empty(t, report.Overcommitted)

	assert.ErrorIs(t, svc.DeleteBook(ctx, id), ErrBookInUse)
}
