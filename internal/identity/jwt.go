package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates bearer tokens minted by the external identity
// provider and extracts the caller's uid and role claims.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret required")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

type Claims struct {
	UID  string
	Role string
}

func (j *JWTVerifier) Verify(tokenStr string) (*Claims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("missing sub claim")
	}
	role, _ := claims["role"].(string)
	return &Claims{UID: sub, Role: role}, nil
}
