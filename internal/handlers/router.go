package handlers

import (
	"net/http"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	auth *AuthHandler,
	authMiddleware func(http.Handler) http.Handler,
	loggerMiddleware func(http.Handler) http.Handler,
) http.Handler {
	api := http.NewServeMux()
	api.Handle("/", auth.Handler())
	api.Handle("GET /me", authMiddleware(handleMe()))

	root := http.NewServeMux()
	root.Handle("/v1/api/", http.StripPrefix("/v1/api", api))
	root.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	return chain(root, loggerMiddleware)
}
