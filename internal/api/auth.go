package api

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrInvalidToken    = errors.New("invalid token")
)

const adminRole = "admin"

// Claims are the claims of an admin access token
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService exchanges the admin key for access tokens and validates them
type AuthService interface {
	IssueToken(adminKey string) (token string, expiresAt time.Time, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

type authService struct {
	jwtSecret      string
	adminKeyHash   string
	accessTokenTTL time.Duration
	now            func() time.Time
}

func NewAuthService(jwtSecret, adminKeyHash string, accessTokenTTL time.Duration) AuthService {
	if accessTokenTTL <= 0 {
		accessTokenTTL = time.Hour
	}
	return &authService{
		jwtSecret:      jwtSecret,
		adminKeyHash:   adminKeyHash,
		accessTokenTTL: accessTokenTTL,
		now:            time.Now,
	}
}

// HashAdminKey creates the bcrypt hash stored in ADMIN_KEY_HASH
func HashAdminKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *authService) IssueToken(adminKey string) (string, time.Time, error) {
	if adminKey == "" || bcrypt.CompareHashAndPassword([]byte(s.adminKeyHash), []byte(adminKey)) != nil {
		return "", time.Time{}, ErrInvalidAdminKey
	}

	now := s.now()
	expiresAt := now.Add(s.accessTokenTTL)
	claims := Claims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   adminRole,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != adminRole {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
