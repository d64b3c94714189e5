package session

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims mirrors what the API puts in its access tokens. The client has
// no signing key, so tokens are only inspected, never verified.
type tokenClaims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

func inspectToken(tok string) (*tokenClaims, bool) {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// fillFromToken completes s with whatever the token carries.
func fillFromToken(s *Session) {
	claims, ok := inspectToken(s.Token)
	if !ok {
		return
	}
	if s.UserID == 0 {
		s.UserID = claims.UserID
	}
	if s.Email == "" {
		if claims.Email != "" {
			s.Email = claims.Email
		} else if strings.Contains(claims.Subject, "@") {
			s.Email = claims.Subject
		}
	}
	if s.Role == "" && claims.Role.Valid() {
		s.Role = claims.Role
	}
	if s.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
}
