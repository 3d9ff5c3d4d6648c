package api

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"beauty-bot/types"
)

var ErrNoUserClaim = errors.New("token carries no user id")

// UserIDFromToken extracts the user id from an access token issued by the
// API. The signature is not verified; the server does that on every call.
func UserIDFromToken(token string) (types.ID, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	for _, key := range []string{"id", "userId", "sub"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return types.ID(v), nil
			}
		case float64:
			return types.ID(strconv.FormatInt(int64(v), 10)), nil
		}
	}
	return "", ErrNoUserClaim
}
