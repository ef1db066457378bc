package jwt

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/tutorias/attendance-desk/internal/domain/auth"
	"github.com/tutorias/attendance-desk/internal/domain/user"
)

const sseTokenTTL = 5 * time.Minute

type Service interface {
	GenerateAccessToken(op user.Operator) (token string, expiresAt int64, err error)
	GenerateSSEToken(userID, sectionID string) (token string, expiresIn int, err error)
	ValidateSSEToken(tokenString string) (userID, sectionID string, err error)
	JWTAuth() *jwtauth.JWTAuth
}

// JWTService verifies operator tokens issued by the identity backend with a
// shared HS256 secret. It also mints the short-lived tokens used by SSE
// streams, which cannot send an Authorization header.
type JWTService struct {
	accessTokenExpirationTime string
	tokenAuth                 *jwtauth.JWTAuth
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime string) Service {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

// GenerateAccessToken issues an operator token. The desk console and tests
// use it; production tokens come from the identity backend.
func (j *JWTService) GenerateAccessToken(op user.Operator) (token string, expiresAt int64, err error) {
	expDuration, err := time.ParseDuration(j.accessTokenExpirationTime)
	if err != nil {
		return "", 0, err
	}
	expiresAt = time.Now().Add(expDuration).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id": op.ID,
		"email":   op.Email,
		"role":    string(op.Role),
		"type":    "access",
		"exp":     expiresAt,
	})
	return tokenString, expiresAt, err
}

// GenerateSSEToken generates a short-lived token bound to one section stream
func (j *JWTService) GenerateSSEToken(userID, sectionID string) (token string, expiresIn int, err error) {
	expiresAt := time.Now().Add(sseTokenTTL).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    userID,
		"section_id": sectionID,
		"type":       "sse",
		"exp":        expiresAt,
	})
	if err != nil {
		return "", 0, err
	}

	return tokenString, int(sseTokenTTL.Seconds()), nil
}

// ValidateSSEToken validates an SSE token and returns the user and section it was issued for
func (j *JWTService) ValidateSSEToken(tokenString string) (userID, sectionID string, err error) {
	token, err := j.tokenAuth.Decode(tokenString)
	if err != nil {
		return "", "", err
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != "sse" {
		return "", "", jwt.ErrInvalidJWT()
	}

	userID, ok = stringClaim(token, "user_id")
	if !ok {
		return "", "", jwt.ErrInvalidJWT()
	}
	sectionID, ok = stringClaim(token, "section_id")
	if !ok {
		return "", "", jwt.ErrInvalidJWT()
	}

	return userID, sectionID, nil
}

func stringClaim(token jwt.Token, name string) (string, bool) {
	v, ok := token.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// OperatorFromContext reads the verified operator claims placed on the
// request context by jwtauth.Verifier.
func OperatorFromContext(ctx context.Context) (user.Operator, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return user.Operator{}, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}

	id, _ := claims["user_id"].(string)
	if id == "" {
		return user.Operator{}, user.ErrOperatorRequired
	}

	roleStr, _ := claims["role"].(string)
	role, ok := user.ParseRole(roleStr)
	if !ok {
		return user.Operator{}, fmt.Errorf("%w: %q", user.ErrUnknownRole, roleStr)
	}

	email, _ := claims["email"].(string)
	return user.Operator{ID: id, Email: email, Role: role}, nil
}
