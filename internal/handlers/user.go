package handlers

import (
	"net/http"

	"github.com/vparshin/authgate/internal/handlers/render"
)

// Example protected resource: whoami, readable only with a valid access token
func handleMe() http.Handler {
	type response struct {
		Username string `json:"username"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Guard middleware always sets the username before we run
		username, _ := UsernameFromContext(r.Context())
		render.JSON(w, response{Username: username})
	})
}
