// internal/catalog/domain.go
package catalog

import "errors"

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

var (
	ErrBookNotFound   = errors.New("book not found")
	ErrUnavailable    = errors.New("book not available for borrowing")
	ErrReturnRejected = errors.New("all copies are already available")
	ErrBookInUse      = errors.New("book is referenced by issuances")
)

// Book is a title held in one or more interchangeable copies.
type Book struct {
	ID              int64  `json:"book_id" db:"book_id"`
	Title           string `json:"title" db:"title"`
	Author          string `json:"author" db:"author"`
	Genre           string `json:"genre" db:"genre"`
	ISBN            string `json:"isbn" db:"isbn"`
	TotalCopies     int    `json:"total_copies" db:"total_copies"`
	AvailableCopies int    `json:"available_copies" db:"available_copies"`
}

// Draft carries the client-editable fields of a book.
type Draft struct {
	Title       string
	Author      string
	Genre       string
	ISBN        string
	TotalCopies int
}

// Page selects a window of the book listing. Number is 1-based.
type Page struct {
	Number int
	Limit  int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) offset() uint {
	return uint((p.Number - 1) * p.Limit)
}
