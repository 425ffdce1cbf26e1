package web

import (
	"errors"
	"net/http"

	"github.com/justestif/muse/internal/waitlist"
)

const (
	msgWaitlistFieldsRequired = "Email and name are required"
	msgWaitlistEmailRequired  = "Email parameter is required"
	msgWaitlistAdded          = "Successfully added to waitlist"
	msgWaitlistDuplicate      = "Email already registered"
)

type waitlistRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type waitlistCreated struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type waitlistConflict struct {
	AlreadyRegistered bool   `json:"alreadyRegistered"`
	Message           string `json:"message"`
}

// JoinWaitlist registers an email (POST /api/waitlist).
func (h *Handlers) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req waitlistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	_, err := h.waitlist.Register(r.Context(), req.Email, req.Name)
	switch {
	case errors.Is(err, waitlist.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, msgWaitlistFieldsRequired)
	case errors.Is(err, waitlist.ErrAlreadyRegistered):
		writeJSON(w, http.StatusConflict, waitlistConflict{
			AlreadyRegistered: true,
			Message:           msgWaitlistDuplicate,
		})
	case err != nil:
		h.log.Error("waitlist registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	default:
		writeJSON(w, http.StatusCreated, waitlistCreated{
			Success: true,
			Message: msgWaitlistAdded,
		})
	}
}

// CheckWaitlist reports whether an email is registered (GET /api/waitlist).
func (h *Handlers) CheckWaitlist(w http.ResponseWriter, r *http.Request) {
	res, err := h.waitlist.Check(r.Context(), r.URL.Query().Get("email"))
	switch {
	case errors.Is(err, waitlist.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, msgWaitlistEmailRequired)
	case err != nil:
		h.log.Error("waitlist check failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}
