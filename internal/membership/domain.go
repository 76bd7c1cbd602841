// internal/membership/domain.go
package membership

import "errors"

const (
	TypeStandard = "Standard"
	TypePremium  = "Premium"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrEmailTaken     = errors.New("email already in use")
)

// Member represents a library member. The password hash never leaves the service.
type Member struct {
	ID             int64  `json:"member_id" db:"member_id"`
	Name           string `json:"name" db:"name"`
	Email          string `json:"email" db:"email"`
	Phone          string `json:"phone" db:"phone"`
	MembershipType string `json:"membership_type" db:"membership_type"`
	Address        string `json:"address" db:"address"`
	PasswordHash   string `json:"-" db:"password_hash"`
}

// Profile carries the client-editable fields of a member, password in clear.
type Profile struct {
	Name           string
	Email          string
	Phone          string
	MembershipType string
	Address        string
	Password       string
}
