// internal/circulation/domain.go
package circulation

import (
	"errors"

	"librarydesk/internal/civil"
)

var (
	ErrIssuanceNotFound = errors.New("issuance not found")
	ErrUnknownReference = errors.New("member or book does not exist")
)

// Issuance records a book lent to a member. It is open while ReturnedDate is nil.
type Issuance struct {
	ID           int64       `json:"issuance_id" db:"issuance_id"`
	MemberID     int64       `json:"member_id" db:"member_id"`
	BookID       int64       `json:"book_id" db:"book_id"`
	DueDate      civil.Date  `json:"due_date" db:"due_date"`
	ReturnedDate *civil.Date `json:"returned_date" db:"returned_date"`
}

// Open reports whether the issuance has not been returned yet.
func (i Issuance) Open() bool { return i.ReturnedDate == nil }

// Loan is a request to lend a book.
type Loan struct {
	MemberID int64
	BookID   int64
	DueDate  civil.Date
}
