package http

import (
	"net/http"

	"github.com/halcyonsec/authcore/internal/authcore/service"
	"github.com/halcyonsec/authcore/pkg/httpx"
	"github.com/halcyonsec/authcore/pkg/slogx"
)

// KeyRotationHandler serves POST /v1/keys/rotate. Requires the admin:write
// scope; enforcement happens in the route middleware chain.
type KeyRotationHandler struct {
	KeyRotation *service.KeyRotationService
}

type rotateKeyRequest struct {
	RetireExisting bool `json:"retire_existing"`
}

type rotateKeyResponse struct {
	NewKid      string   `json:"new_kid"`
	RetiredKids []string `json:"retired_kids,omitempty"`
	ActiveKids  []string `json:"active_kids"`
}

func (h *KeyRotationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req rotateKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.KeyRotation.RotateKey(ctx, req.RetireExisting)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, rotateKeyResponse{
		NewKid:      res.NewKid,
		RetiredKids: res.RetiredKids,
		ActiveKids:  res.ActiveKids,
	})
}
