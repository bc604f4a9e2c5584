// Package auth registers accounts, checks passwords, and issues the HS256
// tokens the API authenticates with.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/verimarket/backend/internal/config"
	"github.com/verimarket/backend/internal/models"
)

const minPasswordLen = 8

// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*models.Account, error)
	Login(ctx context.Context, email, password string) (string, *models.Account, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

type service struct {
	store  Store
	secret []byte
	ttl    time.Duration
	cost   int
}

func NewService(st Store, cfg config.AuthConfig) Service {
	return &service{store: st, secret: []byte(cfg.JWTSecret), ttl: cfg.TokenTTL, cost: bcrypt.DefaultCost}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.DisplayName)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email %q is not valid", models.ErrInvalidInput, in.Email)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: display name is required", models.ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", models.ErrInvalidInput, minPasswordLen)
	}
	if !models.ValidRole(in.Role) {
		return nil, fmt.Errorf("%w: role %q is not one of provider, freelancer, verifier", models.ErrInvalidInput, in.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		Email:        email,
		DisplayName:  name,
		Role:         in.Role,
		PasswordHash: string(hash),
	}
	if err := s.store.Create(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, *models.Account, error) {
	acc, err := s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, models.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.issueToken(acc.ID, acc.Role)
	if err != nil {
		return "", nil, err
	}
	return token, acc, nil
}

func (s *service) issueToken(accountID uuid.UUID, role string) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

// ValidateToken returns the account id and role carried by a token.
func (s *service) ValidateToken(_ context.Context, token string) (uuid.UUID, string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, "", err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, c.Role, nil
}

func (s *service) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return s.store.GetByID(ctx, id)
}
