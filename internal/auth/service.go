package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/semsearch/semsearch/internal/rbac"
	"github.com/semsearch/semsearch/internal/shared"
	"github.com/semsearch/semsearch/internal/users"
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", shared.InvalidInput("Password is too long")
	}
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	issuer *TokenIssuer
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer *TokenIssuer) *Service {
	return &Service{repo: repo, issuer: issuer}
}

// Register creates an identity with the default role when both username and
// email are unused.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*users.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	existing, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.Conflict("Username is already registered")
	}
	existing, err = s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.Conflict("Email is already registered")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, users.User{
		Username:       username,
		Email:          email,
		Role:           rbac.RoleUser,
		HashedPassword: hash,
	})
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, shared.Conflict("User could not be created")
	}
	return created, nil
}

// Authenticate validates username/password credentials and issues a token.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Token, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return Token{}, err
	}
	if user == nil || !CheckPassword(user.HashedPassword, password) {
		return Token{}, shared.Unauthenticated("Incorrect username or password")
	}
	signed, err := s.issuer.Issue(user.ID)
	if err != nil {
		return Token{}, err
	}
	return Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.issuer.TTL().Seconds()),
	}, nil
}
