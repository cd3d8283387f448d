package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const actorIDKey contextKey = "actorID"

// AuthMiddleware validates a Bearer HS256 token and stores the actor's
// account id (the "sub" claim) in the request context. Token issuance lives
// in the auth collaborator; this service only verifies.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				respondWithError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}
			sub, err := claims.GetSubject()
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}
			actorID, err := uuid.Parse(sub)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "Invalid token subject")
				return
			}

			ctx := context.WithValue(r.Context(), actorIDKey, actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the authenticated account id placed by
// AuthMiddleware, or false when the request was not authenticated.
func ActorFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(actorIDKey).(uuid.UUID)
	return id, ok
}
