package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims are the claims carried by access tokens issued by the
// authentication collaborator.
type JWTClaims struct {
	UserID string   `json:"uid"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
