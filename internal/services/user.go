package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/models"
	"github.com/markjakearzadon/paygate-gobackend/internal/store"
)

const tokenTTL = 7 * 24 * time.Hour

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type UserService struct {
	store  store.Store
	secret []byte
	now    func() time.Time
}

func NewUserService(st store.Store, jwtSecret string) *UserService {
	return &UserService{store: st, secret: []byte(jwtSecret), now: time.Now}
}

// CreateAdmin stores a verified admin with a bcrypt-hashed password.
func (s *UserService) CreateAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(password) < 8 {
		return nil, apperr.New(apperr.KindValidation, "admin requires an email and a password of at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to hash password")
	}

	user := &models.User{
		Name:      strings.TrimSpace(name),
		Email:     email,
		HPassword: string(hash),
		Role:      models.RoleAdmin,
		Verified:  true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the password and returns a signed token for admins.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.store.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if apperr.Is(err, apperr.KindRecordNotFound) {
		return "", nil, apperr.New(apperr.KindUnauthorized, "invalid email or password")
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HPassword), []byte(password)); err != nil {
		return "", nil, apperr.New(apperr.KindUnauthorized, "invalid email or password")
	}
	if user.Role != models.RoleAdmin {
		return "", nil, apperr.New(apperr.KindForbidden, "admin access required")
	}

	token, err := s.issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *UserService) issue(user *models.User) (string, error) {
	if len(s.secret) == 0 {
		return "", apperr.New(apperr.KindInternal, "jwt secret not configured")
	}
	now := s.now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "failed to sign token")
	}
	return signed, nil
}

// ParseToken validates signature and expiry. Only HMAC tokens are accepted.
func (s *UserService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, err, "invalid or expired token")
	}
	return claims, nil
}
