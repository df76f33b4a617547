package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"messaging-service/internal/access"
	"messaging-service/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carried by access tokens. The subject is the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens issued by the auth service.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier constructs a Verifier. An empty issuer disables issuer checks.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses the token and returns the actor it identifies.
func (v *Verifier) Verify(token string) (access.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return access.Anonymous(), fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return access.Anonymous(), fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	role := claims.Role
	if role == "" {
		role = models.RoleGuest
	}
	return access.Actor{UserID: userID, Role: role}, nil
}
