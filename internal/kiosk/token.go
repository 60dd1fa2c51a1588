package kiosk

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a kiosk token: the person resolved at the kiosk,
// carried explicitly on every subsequent call instead of ambient client
// state. Identity stays self-asserted (a contact string); the token only
// pins which resolved record the rest of the flow acts on.
type Claims struct {
	PersonID   string `json:"person_id"`
	Role       string `json:"role"`
	Identifier string `json:"identifier"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies kiosk tokens with HS256.
type Issuer struct {
	issuer string
	key    []byte
	ttl    time.Duration
}

// NewIssuer creates a token issuer.
func NewIssuer(issuer, signingKey string, ttl time.Duration) *Issuer {
	return &Issuer{issuer: issuer, key: []byte(signingKey), ttl: ttl}
}

// Issue signs a short-lived token for a resolved person.
func (i *Issuer) Issue(personID, role, identifier string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(i.ttl)
	claims := Claims{
		PersonID:   personID,
		Role:       role,
		Identifier: identifier,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   personID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Parse validates a token and returns its claims.
func (i *Issuer) Parse(tokenStr string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
