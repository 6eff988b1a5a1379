package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleClassAdmin = "class-admin"
	RoleTeacher    = "teacher"
	RoleStudent    = "student"
)

// Token is a signed access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Claims represents JWT payload. ClassID is set for class admins and
// students; RollNumber only for students.
type Claims struct {
	Role       string `json:"role"`
	ClassID    string `json:"classId,omitempty"`
	RollNumber string `json:"rollNumber,omitempty"`
	jwt.RegisteredClaims
}

// Identity is who a token is issued to.
type Identity struct {
	Subject    string
	Role       string
	ClassID    string
	RollNumber string
}

// Issue signs an access token for id.
func Issue(id Identity, issuer, key string, ttl time.Duration) (Token, error) {
	if id.Subject == "" || id.Role == "" {
		return Token{}, errors.New("subject and role required")
	}
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		Role:       id.Role,
		ClassID:    id.ClassID,
		RollNumber: id.RollNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.Subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	switch claims.Role {
	case RoleClassAdmin, RoleTeacher, RoleStudent:
	default:
		return Claims{}, errors.New("unknown role")
	}
	return *claims, nil
}
