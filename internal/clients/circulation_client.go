// internal/clients/circulation_client.go
package clients

import (
	"context"
	"fmt"
	"net/http"

	"librarydesk/internal/circulation"
)

type loanRequest struct {
	MemberID int64  `json:"member_id"`
	BookID   int64  `json:"book_id"`
	DueDate  string `json:"due_date"`
}

type issuanceCreated struct {
	IssuanceID int64 `json:"issuanceId"`
}

func newLoanRequest(l circulation.Loan) loanRequest {
	return loanRequest{MemberID: l.MemberID, BookID: l.BookID, DueDate: l.DueDate.String()}
}

// CreateIssuance records a loan without borrowing the copy.
func (c *Client) CreateIssuance(ctx context.Context, l circulation.Loan) (int64, error) {
	var resp issuanceCreated
	if err := c.do(ctx, http.MethodPost, "/issuances", newLoanRequest(l), &resp); err != nil {
		return 0, err
	}
	return resp.IssuanceID, nil
}

func (c *Client) ListIssuances(ctx context.Context) ([]circulation.Issuance, error) {
	var issuances []circulation.Issuance
	if err := c.do(ctx, http.MethodGet, "/issuances", nil, &issuances); err != nil {
		return nil, err
	}
	return issuances, nil
}

// CompleteIssuance closes a loan without returning the copy.
func (c *Client) CompleteIssuance(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/issuances/%d/return", id), nil, nil)
}

// Checkout borrows the copy and records the loan in one step.
func (c *Client) Checkout(ctx context.Context, l circulation.Loan) (int64, error) {
	var resp issuanceCreated
	if err := c.do(ctx, http.MethodPost, "/circulation/checkout", newLoanRequest(l), &resp); err != nil {
		return 0, err
	}
	return resp.IssuanceID, nil
}

// Checkin closes the loan and returns the copy in one step.
func (c *Client) Checkin(ctx context.Context, issuanceID int64) error {
	body := struct {
		IssuanceID int64 `json:"issuance_id"`
	}{issuanceID}
	return c.do(ctx, http.MethodPost, "/circulation/checkin", body, nil)
}
