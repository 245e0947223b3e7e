package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardwatch/wardwatch/internal/domain"
)

var roles = map[domain.Role]bool{
	domain.RoleNurse:          true,
	domain.RoleDoctor:         true,
	domain.RoleAttending:      true,
	domain.RoleDepartmentHead: true,
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, u)
}

// putUser creates or replaces a staff member. The id comes from the path.
func (h *Handler) putUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if err := decodeJSON(r, &u); err != nil {
		h.fail(w, r, err)
		return
	}
	u.ID = chi.URLParam(r, "userID")

	var problems []error
	if u.HospitalID == "" {
		problems = append(problems, errors.New("hospitalId is required"))
	}
	if !roles[u.Role] {
		problems = append(problems, fmt.Errorf("unknown role %q", u.Role))
	}
	if len(problems) > 0 {
		h.fail(w, r, fmt.Errorf("%w: %w", ErrUnprocessableEntity, errors.Join(problems...)))
		return
	}

	if err := h.store.UpsertUser(r.Context(), u); err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, u)
}

func (h *Handler) getPreferences(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	if _, err := h.store.GetUser(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	prefs, err := h.store.GetUserPreferences(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if prefs == nil {
		prefs = &domain.Preferences{}
	}
	respond(w, http.StatusOK, prefs)
}

func (h *Handler) putPreferences(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	var prefs domain.Preferences
	if err := decodeJSON(r, &prefs); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := prefs.QuietHours.Active(h.now()); err != nil {
		h.fail(w, r, fmt.Errorf("%w: %w", ErrUnprocessableEntity, err))
		return
	}
	if _, err := h.store.GetUser(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.SetUserPreferences(r.Context(), id, prefs); err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, prefs)
}
