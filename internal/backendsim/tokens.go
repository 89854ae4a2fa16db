package backendsim

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	errTokenMissing = errors.New("token missing")
	errTokenRevoked = errors.New("token revoked")
)

// claims carried in a session token.
type claims struct {
	UserID   string
	Username string
	Role     string
	Version  int
	ID       string
	Expires  time.Time
}

// tokenService issues and checks HS256 session tokens and bcrypt hashes.
type tokenService struct {
	secretKey  []byte
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time
}

func (s *tokenService) issue(a *account) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      a.id,
		"username": a.username,
		"role":     a.role,
		"ver":      a.tokenVersion,
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
	})
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, time.Unix(exp.Unix(), 0).UTC(), nil
}

func (s *tokenService) validate(tokenString string) (*claims, error) {
	if tokenString == "" {
		return nil, errTokenMissing
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	m, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}

	c := &claims{}
	c.UserID, _ = m["sub"].(string)
	c.Username, _ = m["username"].(string)
	c.Role, _ = m["role"].(string)
	c.ID, _ = m["jti"].(string)
	if v, ok := m["ver"].(float64); ok {
		c.Version = int(v)
	}
	if exp, err := m.GetExpirationTime(); err == nil && exp != nil {
		c.Expires = exp.Time
	}
	if c.UserID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return c, nil
}

func (s *tokenService) hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *tokenService) verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
