package models

import "github.com/golang-jwt/jwt/v5"

// UserRole gates privileged submission actions.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleManager   UserRole = "MANAGER"
	RoleRecruiter UserRole = "RECRUITER"
)

// JWTClaims identifies the actor behind a request.
type JWTClaims struct {
	UserID string   `json:"sub"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
