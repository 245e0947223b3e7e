package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wardwatch/wardwatch/internal/audit"
)

const defaultAuditLimit = 100

type verifyResponse struct {
	Intact bool   `json:"intact"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) findAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		h.fail(w, r, fmt.Errorf("%w: audit reader", ErrNotConfigured))
		return
	}
	c, err := auditCriteria(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	events, err := h.audit.Find(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	respondList(w, events, len(events))
}

func (h *Handler) verifyAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		h.fail(w, r, fmt.Errorf("%w: audit reader", ErrNotConfigured))
		return
	}
	c, err := auditCriteria(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.audit.Verify(r.Context(), c)
	switch {
	case err == nil:
		respond(w, http.StatusOK, verifyResponse{Intact: true})
	case errors.Is(err, audit.ErrChainBroken):
		respond(w, http.StatusOK, verifyResponse{Reason: err.Error()})
	default:
		h.fail(w, r, err)
	}
}

func auditCriteria(r *http.Request) (audit.Criteria, error) {
	q := r.URL.Query()
	c := audit.Criteria{
		Action:     q.Get("action"),
		ActorID:    q.Get("actorId"),
		HospitalID: q.Get("hospitalId"),
		Resource:   q.Get("resource"),
		ResourceID: q.Get("resourceId"),
		Result:     audit.Result(q.Get("result")),
		Limit:      defaultAuditLimit,
	}

	var err error
	if c.StartTime, err = queryTime(r, "from"); err != nil {
		return c, err
	}
	if c.EndTime, err = queryTime(r, "to"); err != nil {
		return c, err
	}
	if limit, err := queryInt(r, "limit"); err != nil {
		return c, err
	} else if limit > 0 {
		c.Limit = limit
	}
	if c.Offset, err = queryInt(r, "offset"); err != nil {
		return c, err
	}
	return c, nil
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339", ErrInvalidQuery, name)
	}
	return t, nil
}
