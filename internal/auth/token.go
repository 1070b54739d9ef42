package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Identity adalah hasil verifikasi credential.
type Identity struct {
	UserID uint   `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier dipakai bersama oleh middleware HTTP dan handshake websocket.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewVerifier(secret string, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Verifier{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (v *Verifier) Issue(u *models.User) (string, error) {
	now := v.now()
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify tidak pernah mengembalikan identity parsial: gagal = Unauthenticated.
func (v *Verifier) Verify(tokenStr string) (Identity, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return Identity{}, apperr.Unauthenticated("missing token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, apperr.Unauthenticated("token expired")
		}
		return Identity{}, apperr.Unauthenticated("invalid token")
	}

	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 {
		return Identity{}, apperr.Unauthenticated("invalid token subject")
	}
	role := strings.ToLower(strings.TrimSpace(claims.Role))
	if role != models.RoleAdmin && role != models.RoleOperator {
		return Identity{}, apperr.Unauthenticated("invalid token role")
	}

	return Identity{UserID: uint(uid), Email: claims.Email, Role: role}, nil
}

// BearerToken mengambil token dari header "Authorization: Bearer <token>".
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}
