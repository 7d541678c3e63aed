package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{key: []byte(secret), ttl: ttl, now: time.Now}
}

// Issued is a freshly signed token together with the session data that must
// be persisted for it.
type Issued struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

func (t *Tokens) Sign(userID, username string, roles []string) (Issued, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"roles":    roles,
		"jti":      jti,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.key)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}

func (t *Tokens) Verify(tokenStr string) (Claims, error) {
	tok, err := jwt.Parse(tokenStr, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(t.now))
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, _ := mapc["sub"].(string)
	username, _ := mapc["username"].(string)
	jti, _ := mapc["jti"].(string)
	if sub == "" {
		return Claims{}, ErrInvalidToken
	}
	var roles []string
	if arr, ok := mapc["roles"].([]interface{}); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok {
				roles = append(roles, s)
			}
		}
	}
	return Claims{Subject: sub, Username: username, JWTID: jti, Roles: roles}, nil
}
