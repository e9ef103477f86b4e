package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned for tokens that carry no exp claim.
var ErrNoExpiry = errors.New("token has no expiry")

// TokenExpiry reads the exp claim without verifying the signature. The server is the
// only party holding the key; this is for display and scheduling only.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read exp: %w", err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// AccessTokenExpiry reports when the held access token expires.
func (c *Client) AccessTokenExpiry() (time.Time, error) {
	access, _ := c.Tokens()
	if access == "" {
		return time.Time{}, errors.New("not authenticated")
	}
	return TokenExpiry(access)
}
