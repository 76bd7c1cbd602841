// internal/membership/handler.go
package membership

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"librarydesk/internal/validation"
	"librarydesk/internal/web"
)

const (
	msgMemberAdded    = "Member added successfully"
	msgMemberUpdated  = "Member updated successfully"
	msgMemberNotFound = "Member not found"
	msgEmailTaken     = "Email already in use"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Routes mounts the /members endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/members", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleRegister)
		r.Get("/{memberID}", h.handleGet)
		r.Put("/{memberID}", h.handleUpdate)
	})
}

type createdResponse struct {
	Message  string `json:"message"`
	MemberID int64  `json:"memberId"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, members)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := web.PathID(r, "memberID")
	if !ok {
		h.writeError(w, r, ErrMemberNotFound)
		return
	}

	member, err := h.service.GetMember(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.JSON(w, http.StatusOK, member)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.decodeProfile(w, r)
	if !ok {
		return
	}

	id, err := h.service.RegisterMember(r.Context(), profile)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.JSON(w, http.StatusCreated, createdResponse{Message: msgMemberAdded, MemberID: id})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.decodeProfile(w, r)
	if !ok {
		return
	}
	id, ok := web.PathID(r, "memberID")
	if !ok {
		h.writeError(w, r, ErrMemberNotFound)
		return
	}

	if err := h.service.UpdateMember(r.Context(), id, profile); err != nil {
		h.writeError(w, r, err)
		return
	}
	web.Message(w, http.StatusOK, msgMemberUpdated)
}

func (h *Handler) decodeProfile(w http.ResponseWriter, r *http.Request) (Profile, bool) {
	raw, err := web.DecodeObject(r)
	if err != nil {
		web.BadBody(w, r, h.logger, err)
		return Profile{}, false
	}

	f, err := validation.Member(raw)
	if err != nil {
		if !web.Validation(w, err) {
			web.ServerError(w, r, h.logger, err)
		}
		return Profile{}, false
	}

	return Profile{
		Name:           f.Name,
		Email:          f.Email,
		Phone:          f.Phone,
		MembershipType: f.MembershipType,
		Address:        f.Address,
		Password:       f.Password,
	}, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrMemberNotFound):
		web.Message(w, http.StatusNotFound, msgMemberNotFound)
	case errors.Is(err, ErrEmailTaken):
		web.Message(w, http.StatusBadRequest, msgEmailTaken)
	default:
		web.ServerError(w, r, h.logger, err)
	}
}
