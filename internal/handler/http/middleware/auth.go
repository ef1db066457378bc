package middleware

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/tutorias/attendance-desk/internal/domain/auth"
	"github.com/tutorias/attendance-desk/internal/gateway/rest"
	"github.com/tutorias/attendance-desk/internal/handler/http/response"
)

// AuthRequired rejects requests without a verified access token. It runs
// after jwtauth.Verifier.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())

			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			if token == nil {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			tokenType, ok := claims["type"].(string)
			if tokenType != "access" || !ok {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// ForwardBearer hands the operator's bearer token to the REST gateway so
// upstream calls run with the operator's identity.
func ForwardBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := jwtauth.TokenFromHeader(r); tok != "" {
			r = r.WithContext(rest.WithToken(r.Context(), tok))
		}
		next.ServeHTTP(w, r)
	})
}
