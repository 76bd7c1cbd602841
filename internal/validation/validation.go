// Package validation checks incoming JSON payloads before any store mutation.
//
// Each entity function takes the decoded request object and returns either the
// normalized fields or a *ValidationError listing every violated field, in
// declaration order. Nothing here touches the store.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"librarydesk/internal/civil"
)

// FieldError is one entry of the 400 response's "errors" list.
type FieldError struct {
	Type     string `json:"type"`
	Value    any    `json:"value,omitempty"`
	Msg      string `json:"msg"`
	Path     string `json:"path"`
	Location string `json:"location"`
}

// ValidationError collects all field violations of one payload.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	paths := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		paths[i] = f.Path
	}
	return "invalid fields: " + strings.Join(paths, ", ")
}

// Has reports whether path failed validation.
func (e *ValidationError) Has(path string) bool {
	for _, f := range e.Fields {
		if f.Path == path {
			return true
		}
	}
	return false
}

// BookFields is a validated book payload.
type BookFields struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	Genre       string `json:"genre" validate:"required"`
	ISBN        string `json:"isbn" validate:"required"`
	TotalCopies int    `json:"total_copies" validate:"min=1,max=2147483647"`
}

// MemberFields is a validated member payload.
type MemberFields struct {
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone" validate:"required"`
	MembershipType string `json:"membership_type" validate:"oneof=Standard Premium"`
	Address        string `json:"address" validate:"required"`
	Password       string `json:"password" validate:"required"`
}

// IssuanceFields is a validated issuance payload.
type IssuanceFields struct {
	MemberID int64      `json:"member_id" validate:"min=1"`
	BookID   int64      `json:"book_id" validate:"min=1"`
	DueDate  civil.Date `json:"due_date" validate:"required"`
}

// CheckinFields is a validated check-in payload.
type CheckinFields struct {
	IssuanceID int64 `json:"issuance_id" validate:"min=1"`
}

var messages = map[string]string{
	"title":           "Title is required",
	"author":          "Author is required",
	"genre":           "Genre is required",
	"isbn":            "ISBN is required",
	"total_copies":    "Total copies must be a positive integer",
	"name":            "Name is required",
	"email":           "Invalid email",
	"phone":           "Phone is required",
	"membership_type": "Invalid membership type",
	"address":         "Address is required",
	"password":        "Password is required",
	"member_id":       "Member ID is required",
	"book_id":         "Book ID is required",
	"due_date":        "Invalid due date",
	"issuance_id":     "Issuance ID is required",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d, _ := field.Interface().(civil.Date)
		if d.IsZero() {
			return ""
		}
		return d.String()
	}, civil.Date{})
	return v
}

// Book validates a book create/update payload.
func Book(raw map[string]any) (BookFields, error) {
	f := BookFields{
		Title:       str(raw["title"]),
		Author:      str(raw["author"]),
		Genre:       str(raw["genre"]),
		ISBN:        str(raw["isbn"]),
		TotalCopies: int(integer(raw["total_copies"])),
	}
	return f, check(f, raw)
}

// Member validates a member create/update payload.
func Member(raw map[string]any) (MemberFields, error) {
	f := MemberFields{
		Name:           str(raw["name"]),
		Email:          str(raw["email"]),
		Phone:          str(raw["phone"]),
		MembershipType: str(raw["membership_type"]),
		Address:        str(raw["address"]),
		Password:       str(raw["password"]),
	}
	return f, check(f, raw)
}

// Issuance validates an issuance payload.
func Issuance(raw map[string]any) (IssuanceFields, error) {
	f := IssuanceFields{
		MemberID: integer(raw["member_id"]),
		BookID:   integer(raw["book_id"]),
	}
	if s, ok := raw["due_date"].(string); ok {
		f.DueDate, _ = civil.Parse(s)
	}
	return f, check(f, raw)
}

// Checkin validates a check-in payload.
func Checkin(raw map[string]any) (CheckinFields, error) {
	f := CheckinFields{IssuanceID: integer(raw["issuance_id"])}
	return f, check(f, raw)
}

func check(fields any, raw map[string]any) error {
	err := validate.Struct(fields)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate: %w", err)
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		path := fe.Field()
		out.Fields = append(out.Fields, FieldError{
			Type:     "field",
			Value:    raw[path],
			Msg:      messages[path],
			Path:     path,
			Location: "body",
		})
	}
	return out
}

// str accepts strings and scalars; anything else counts as missing.
func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	if rv := reflect.ValueOf(v); rv.IsValid() && rv.Kind() == reflect.String {
		return rv.String()
	}
	return ""
}

// integer accepts whole JSON numbers and base-10 integer strings. Anything
// else yields 0, which every integer rule rejects.
func integer(v any) int64 {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return wholeFloat(f)
		}
		return 0
	case float64:
		return wholeFloat(t)
	case int:
		return int64(t)
	case int64:
		return t
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	if rv := reflect.ValueOf(v); rv.IsValid() && rv.Kind() == reflect.String {
		return integer(json.Number(rv.String()))
	}
	return 0
}

// maxExactFloat is the largest integer a float64 holds exactly.
const maxExactFloat = 1 << 53

// wholeFloat applies the same range to exponent-form numbers as to plain
// integers; per-field rules such as total_copies' max set the real bound.
func wholeFloat(f float64) int64 {
	if f != math.Trunc(f) || math.Abs(f) > maxExactFloat {
		return 0
	}
	return int64(f)
}
