// internal/circulation/handler.go
package circulation

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"librarydesk/internal/catalog"
	"librarydesk/internal/validation"
	"librarydesk/internal/web"
)

const (
	msgIssuanceAdded    = "Issuance added successfully"
	msgIssuanceNotFound = "Issuance not found"
	msgBookReturned     = "Book returned successfully"
	msgCheckedOut       = "Book checked out successfully"
	msgCheckedIn        = "Book checked in successfully"
	msgUnknownReference = "Member or book does not exist"
	msgUnavailable      = "Book not available for borrowing"
	msgReturnRejected   = "Cannot return book, all copies are already available"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes mounts /issuances and the transactional /circulation endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/issuances", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Patch("/{issuanceID}/return", h.handleComplete)
	})
	r.Post("/circulation/checkout", h.handleCheckout)
	r.Post("/circulation/checkin", h.handleCheckin)
}

type createdResponse struct {
	Message    string `json:"message"`
	IssuanceID int64  `json:"issuanceId"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	issuances, err := h.service.ListIssuances(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, issuances)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.decodeLoan(w, r)
	if !ok {
		return
	}

	id, err := h.service.CreateIssuance(r.Context(), loan)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.JSON(w, http.StatusCreated, createdResponse{Message: msgIssuanceAdded, IssuanceID: id})
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "issuanceID")
	if !ok {
		h.writeError(w, r, ErrIssuanceNotFound)
		return
	}

	if err := h.service.CompleteIssuance(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	web.Message(w, http.StatusOK, msgBookReturned)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	loan, ok := h.decodeLoan(w, r)
	if !ok {
		return
	}

	id, err := h.service.Checkout(r.Context(), loan)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.JSON(w, http.StatusCreated, createdResponse{Message: msgCheckedOut, IssuanceID: id})
}

func (h *Handler) handleCheckin(w http.ResponseWriter, r *http.Request) {
	raw, err := web.DecodeObject(r)
	if err != nil {
		web.BadBody(w, r, h.logger, err)
		return
	}
	f, err := validation.Checkin(raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.Checkin(r.Context(), f.IssuanceID); err != nil {
		h.writeError(w, r, err)
		return
	}
	web.Message(w, http.StatusOK, msgCheckedIn)
}

func (h *Handler) decodeLoan(w http.ResponseWriter, r *http.Request) (Loan, bool) {
	raw, err := web.DecodeObject(r)
	if err != nil {
		web.BadBody(w, r, h.logger, err)
		return Loan{}, false
	}

	f, err := validation.Issuance(raw)
	if err != nil {
		h.writeError(w, r, err)
		return Loan{}, false
	}

	return Loan{MemberID: f.MemberID, BookID: f.BookID, DueDate: f.DueDate}, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if web.Validation(w, err) {
		return
	}

	switch {
	case errors.Is(err, ErrIssuanceNotFound):
		web.Message(w, http.StatusNotFound, msgIssuanceNotFound)
	case errors.Is(err, ErrUnknownReference):
		web.Message(w, http.StatusBadRequest, msgUnknownReference)
	case errors.Is(err, catalog.ErrUnavailable):
		web.Message(w, http.StatusBadRequest, msgUnavailable)
	case errors.Is(err, catalog.ErrReturnRejected):
		web.Message(w, http.StatusBadRequest, msgReturnRejected)
	default:
		web.ServerError(w, r, h.logger, err)
	}
}
