package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/openvax/vaxclinic-platform/internal/identity"
)

// Claims is the token payload issued by the session service. Role is one of
// parent/staff/admin; ClinicID is present for staff tokens only.
type Claims struct {
	Role     string `json:"role"`
	ClinicID string `json:"clinic_id,omitempty"`
	jwt.RegisteredClaims
}

// Auth enforces an HMAC-signed JWT and restricts the request to the given
// roles. The resolved actor is stored on the request context.
func Auth(secret string, roles ...identity.Role) func(http.Handler) http.Handler {
	allowed := map[identity.Role]struct{}{}
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			actor, err := actorFromClaims(claims)
			if err != nil {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[actor.Role]; len(allowed) > 0 && !ok {
				http.Error(w, "insufficient role", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
		})
	}
}

func actorFromClaims(claims *Claims) (identity.Actor, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return identity.Actor{}, err
	}
	role := identity.Role(claims.Role)
	switch role {
	case identity.RoleParent, identity.RoleStaff, identity.RoleAdmin:
	default:
		return identity.Actor{}, jwt.ErrTokenInvalidClaims
	}
	actor := identity.Actor{ID: id, Role: role}
	if role == identity.RoleStaff {
		clinicID, err := uuid.Parse(claims.ClinicID)
		if err != nil {
			return identity.Actor{}, err
		}
		actor.ClinicID = clinicID
	}
	return actor, nil
}
