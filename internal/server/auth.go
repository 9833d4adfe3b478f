package server

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// NewAuthMiddleware requires an HS256-signed bearer token on every request.
// An empty secret disables the check.
func NewAuthMiddleware(secret string, log zerolog.Logger) func(http.Handler) http.Handler {
	log = log.With().Str("middleware", "auth").Logger()
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				unauthorized(w, "Authorization header required", log)
				return
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Token validation failed")
				unauthorized(w, "Invalid or expired token", log)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string, log zerolog.Logger) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="divtrack"`)
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": msg}, log)
}
