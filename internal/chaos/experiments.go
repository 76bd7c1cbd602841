package chaos

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/civil"
	"librarydesk/internal/clients"
	"librarydesk/internal/membership"
	"librarydesk/internal/store"
)

// Library builds experiments that drive a live service through its API and
// read the resulting state straight from its store.
type Library struct {
	client      *clients.Client
	db          *store.DB
	concurrency int
	duration    time.Duration
}

func NewLibrary(client *clients.Client, db *store.DB, concurrency int, duration time.Duration) *Library {
	return &Library{client: client, db: db, concurrency: concurrency, duration: duration}
}

// RegisterAll registers every library experiment with the engine.
func (l *Library) RegisterAll(e *Engine) {
	e.Register(l.ConcurrentBorrowRace())
	e.Register(l.ReturnFlood())
	e.Register(l.CheckoutChurn())
}

// holdingsMetrics are the store-level invariants every experiment watches.
func (l *Library) holdingsMetrics() []Metric {
	return []Metric{
		{
			Name: "books_out_of_bounds",
			Query: func(ctx context.Context) (float64, error) {
				report, err := catalog.Audit(ctx, l.db.Querier)
				return float64(len(report.OutOfBounds)), err
			},
			Threshold: Threshold{Operator: "==", Value: 0},
		},
	}
}

func counterMetric(name string, n *atomic.Int64, want float64) Metric {
	return Metric{
		Name:      name,
		Query:     func(context.Context) (float64, error) { return float64(n.Load()), nil },
		Threshold: Threshold{Operator: "<=", Value: want},
	}
}

func (l *Library) newBook(ctx context.Context, title string, copies int) (int64, error) {
	return l.client.CreateBook(ctx, catalog.Draft{
		Title:       title,
		Author:      "Chaos Monkey",
		Genre:       "Testing",
		ISBN:        fmt.Sprintf("chaos-%d", time.Now().UnixNano()),
		TotalCopies: copies,
	})
}

// fanOut runs fn concurrently and joins every unexpected error.
func (l *Library) fanOut(ctx context.Context, fn func(ctx context.Context, i int) error) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < l.concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := fn(ctx, i); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// ConcurrentBorrowRace borrows the only copy of a book from many clients at once.
func (l *Library) ConcurrentBorrowRace() Experiment {
	var (
		bookID    int64
		succeeded atomic.Int64
	)

	return Experiment{
		Name:        "concurrent-borrow-race",
		Hypothesis:  "Exactly one of many simultaneous borrows of a single copy succeeds",
		SteadyState: append(l.holdingsMetrics(), counterMetric("borrow_successes", &succeeded, 1)),
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "PATCH /books/{id}/borrow",
				Execute: func(ctx context.Context) error {
					var err error
					if bookID, err = l.newBook(ctx, "Race Condition", 1); err != nil {
						return err
					}
					return l.fanOut(ctx, func(ctx context.Context, _ int) error {
						err := l.client.Borrow(ctx, bookID)
						switch {
						case err == nil:
							succeeded.Add(1)
							return nil
						case clients.IsStatus(err, http.StatusBadRequest):
							return nil
						default:
							return err
						}
					})
				},
			},
		},
		Rollback: []Action{
			{
				Type:    "cleanup",
				Target:  "DELETE /books/{id}",
				Execute: func(ctx context.Context) error { return l.client.DeleteBook(ctx, bookID) },
			},
		},
		Validation: []Assertion{
			{
				Metric:    "borrow_successes",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "exactly one borrow should succeed",
			},
			{
				Metric:    "books_out_of_bounds",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "available copies must stay within [0, total]",
			},
		},
		Duration: l.duration,
	}
}

// ReturnFlood returns copies of a book that is fully on the shelf.
func (l *Library) ReturnFlood() Experiment {
	var (
		bookID   int64
		accepted atomic.Int64
	)

	return Experiment{
		Name:        "return-flood",
		Hypothesis:  "Returns never push available copies above the total",
		SteadyState: append(l.holdingsMetrics(), counterMetric("returns_accepted", &accepted, 0)),
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "PATCH /books/{id}/return",
				Execute: func(ctx context.Context) error {
					var err error
					if bookID, err = l.newBook(ctx, "Overflow", 2); err != nil {
						return err
					}
					return l.fanOut(ctx, func(ctx context.Context, _ int) error {
						err := l.client.Return(ctx, bookID)
						switch {
						case err == nil:
							accepted.Add(1)
							return nil
						case clients.IsStatus(err, http.StatusBadRequest):
							return nil
						default:
							return err
						}
					})
				},
			},
		},
		Rollback: []Action{
			{
				Type:    "cleanup",
				Target:  "DELETE /books/{id}",
				Execute: func(ctx context.Context) error { return l.client.DeleteBook(ctx, bookID) },
			},
		},
		Validation: []Assertion{
			{
				Metric:    "returns_accepted",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "no return should be accepted at the ceiling",
			},
		},
		Duration: l.duration,
	}
}

// CheckoutChurn runs overlapping checkout/checkin cycles through the
// transactional circulation endpoints.
func (l *Library) CheckoutChurn() Experiment {
	const copies = 3
	var cycles atomic.Int64

	return Experiment{
		Name:       "checkout-churn",
		Hypothesis: "Transactional checkouts never leave more open issuances than copies out",
		SteadyState: append(l.holdingsMetrics(), Metric{
			Name: "books_overcommitted",
			Query: func(ctx context.Context) (float64, error) {
				report, err := catalog.Audit(ctx, l.db.Querier)
				return float64(len(report.Overcommitted)), err
			},
			Threshold: Threshold{Operator: "==", Value: 0},
		}, Metric{
			Name:      "completed_cycles",
			Query:     func(context.Context) (float64, error) { return float64(cycles.Load()), nil },
			Threshold: Threshold{Operator: ">=", Value: 0},
		}),
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "POST /circulation/checkout",
				Execute: func(ctx context.Context) error {
					bookID, err := l.newBook(ctx, "Churn", copies)
					if err != nil {
						return err
					}
					memberID, err := l.client.RegisterMember(ctx, membership.Profile{
						Name:           "Chaos Member",
						Email:          fmt.Sprintf("chaos-%d@example.com", time.Now().UnixNano()),
						Phone:          "000",
						MembershipType: membership.TypeStandard,
						Address:        "Nowhere",
						Password:       "chaos",
					})
					if err != nil {
						return err
					}
					due := civil.DateOf(time.Now().AddDate(0, 0, 14))

					return l.fanOut(ctx, func(ctx context.Context, _ int) error {
						id, err := l.client.Checkout(ctx, circulation.Loan{MemberID: memberID, BookID: bookID, DueDate: due})
						if clients.IsStatus(err, http.StatusBadRequest) {
							return nil
						}
						if err != nil {
							return err
						}
						if err := l.client.Checkin(ctx, id); err != nil {
							return err
						}
						cycles.Add(1)
						return nil
					})
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "books_overcommitted",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "open issuances must match borrowed copies",
			},
			{
				Metric:    "completed_cycles",
				Condition: func(v float64) bool { return v >= 1 },
				Message:   "at least one checkout/checkin cycle should complete",
			},
		},
		Duration: l.duration,
	}
}
