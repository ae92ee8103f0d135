package http

import (
	"net/http"

	"github.com/halcyonsec/authcore/pkg/httpx"
	"github.com/halcyonsec/authcore/pkg/jwtx"
)

// JWKSHandler exposes the public verification keys for token consumers.
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, keys.PublicJWKS())
	}
}
