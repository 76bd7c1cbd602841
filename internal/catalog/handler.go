// internal/catalog/handler.go
package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"librarydesk/internal/validation"
	"librarydesk/internal/web"
)

const (
	msgBookAdded      = "Book added successfully"
	msgBookUpdated    = "Book updated successfully"
	msgBookDeleted    = "Book deleted successfully"
	msgBookBorrowed   = "Book borrowed successfully"
	msgBookReturned   = "Book returned successfully"
	msgBookNotFound   = "Book not found"
	msgUnavailable    = "Book not available for borrowing"
	msgReturnRejected = "Cannot return book, all copies are already available"
	msgBookInUse      = "Book has issuances and cannot be deleted"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes mounts the /books endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/books", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{bookID}", h.handleGet)
		r.Put("/{bookID}", h.handleUpdate)
		r.Delete("/{bookID}", h.handleDelete)
		r.Patch("/{bookID}/borrow", h.handleBorrow)
		r.Patch("/{bookID}/return", h.handleReturn)
	})
}

type createdResponse struct {
	Message string `json:"message"`
	BookID  int64  `json:"bookId"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	books, err := h.service.ListBooks(r.Context(), Page{Number: page, Limit: limit})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, books)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "bookID")
	if !ok {
		h.writeError(w, r, ErrBookNotFound)
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, book)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	id, err := h.service.CreateBook(r.Context(), draft)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.JSON(w, http.StatusCreated, createdResponse{Message: msgBookAdded, BookID: id})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	id, ok := web.PathID(r, "bookID")
	if !ok {
		h.writeError(w, r, ErrBookNotFound)
		return
	}

	if err := h.service.UpdateBook(r.Context(), id, draft); err != nil {
		h.writeError(w, r, err)
		return
	}
	web.Message(w, http.StatusOK, msgBookUpdated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "bookID")
	if !ok {
		h.writeError(w, r, ErrBookNotFound)
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	web.Message(w, http.StatusOK, msgBookDeleted)
}

func (h *Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "bookID")
	if !ok {
		h.writeError(w, r, ErrUnavailable)
		return
	}

	if err := h.service.Borrow(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	web.Message(w, http.StatusOK, msgBookBorrowed)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "bookID")
	if !ok {
		h.writeError(w, r, ErrReturnRejected)
		return
	}

	if err := h.service.Return(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	web.Message(w, http.StatusOK, msgBookReturned)
}

// decodeDraft reads and validates the body. It writes the response itself
// when it returns false.
func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (Draft, bool) {
	raw, err := web.DecodeObject(r)
	if err != nil {
		web.BadBody(w, r, h.logger, err)
		return Draft{}, false
	}

	f, err := validation.Book(raw)
	if err != nil {
		if !web.Validation(w, err) {
			web.ServerError(w, r, h.logger, err)
		}
		return Draft{}, false
	}

	return Draft{
		Title:       f.Title,
		Author:      f.Author,
		Genre:       f.Genre,
		ISBN:        f.ISBN,
		TotalCopies: f.TotalCopies,
	}, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrBookNotFound):
		web.Message(w, http.StatusNotFound, msgBookNotFound)
	case errors.Is(err, ErrUnavailable):
		web.Message(w, http.StatusBadRequest, msgUnavailable)
	case errors.Is(err, ErrReturnRejected):
		web.Message(w, http.StatusBadRequest, msgReturnRejected)
	case errors.Is(err, ErrBookInUse):
		web.Message(w, http.StatusBadRequest, msgBookInUse)
	default:
		web.ServerError(w, r, h.logger, err)
	}
}
