// internal/clients/membership_client.go
package clients

import (
	"context"
	"fmt"
	"net/http"

	"librarydesk/internal/membership"
)

type memberRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	MembershipType string `json:"membership_type"`
	Address        string `json:"address"`
	Password       string `json:"password"`
}

func (c *Client) RegisterMember(ctx context.Context, p membership.Profile) (int64, error) {
	req := memberRequest{
		Name:           p.Name,
		Email:          p.Email,
		Phone:          p.Phone,
		MembershipType: p.MembershipType,
		Address:        p.Address,
		Password:       p.Password,
	}
	var resp struct {
		MemberID int64 `json:"memberId"`
	}
	if err := c.do(ctx, http.MethodPost, "/members", req, &resp); err != nil {
		return 0, err
	}
	return resp.MemberID, nil
}

func (c *Client) GetMember(ctx context.Context, id int64) (*membership.Member, error) {
	var member membership.Member
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/members/%d", id), nil, &member); err != nil {
		return nil, err
	}
	return &member, nil
}
