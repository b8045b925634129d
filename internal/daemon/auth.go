package daemon

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// authMiddleware guards an HTTP handler with a static bearer token. An empty
// token disables the check entirely, which is the default for local setups.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !tokenMatches(r.Header.Get("Authorization"), token) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":"unauthorized"}`+"\n")
			return
		}
		next(w, r)
	}
}

func tokenMatches(header, token string) bool {
	presented, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}
