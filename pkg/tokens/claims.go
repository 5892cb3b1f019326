package tokens

import (
	"github.com/Skotchmaster/restaurant/pkg/roles"
	"github.com/golang-jwt/jwt/v5"
)

// Class separates access tokens from refresh tokens. Each class is signed
// with its own secret and carries its class in the typ claim.
type Class string

const (
	Access  Class = "access"
	Refresh Class = "refresh"
)

type Claims struct {
	Email string     `json:"email"`
	Role  roles.Role `json:"role"`
	Type  Class      `json:"typ"`
	jwt.RegisteredClaims
}

// Identity is the part of the claims the rest of the service cares about.
type Identity struct {
	ID    string
	Email string
	Role  roles.Role
}

func (c *Claims) Identity() Identity {
	return Identity{
		ID:    c.Subject,
		Email: c.Email,
		Role:  c.Role,
	}
}
