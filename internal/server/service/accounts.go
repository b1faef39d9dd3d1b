package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"passiflora/internal/server/auth"
	"passiflora/internal/server/database"

	"github.com/go-playground/validator/v10"
)

// UserStore is the account persistence used by AccountService.
type UserStore interface {
	Create(ctx context.Context, user *database.User) (int64, error)
	GetByEmail(ctx context.Context, email string) (*database.User, error)
}

// RegisterInput is the registration request body.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResult is returned after successful authentication.
type LoginResult struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// AccountService handles registration and login.
type AccountService struct {
	users    UserStore
	hasher   *auth.Hasher
	tokens   *auth.TokenService
	validate *validator.Validate
}

// NewAccountService creates a new account service.
func NewAccountService(users UserStore, hasher *auth.Hasher, tokens *auth.TokenService) *AccountService {
	return &AccountService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register validates in, hashes the password and stores the account.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (int64, error) {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return 0, &BadRequestError{Reason: registrationReason(verrs)}
		}
		return 0, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	id, err := s.users.Create(ctx, &database.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateUser) {
			return 0, ErrUserTaken
		}
		return 0, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	slog.Info("user registered", "user_id", id)
	return id, nil
}

// registrationReason reports empty fields before format problems.
func registrationReason(errs validator.ValidationErrors) string {
	for _, fe := range errs {
		if fe.Tag() == "required" {
			return "cannot create a user with empty fields"
		}
	}
	for _, fe := range errs {
		switch fe.Tag() {
		case "email":
			return "invalid email format"
		case "min":
			return "password must be at least 8 characters long"
		}
	}
	return "invalid registration"
}

// Login checks the credentials and issues a bearer token. Unknown emails
// are verified against a dummy hash so they take as long as a wrong password.
func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, database.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	hash := s.hasher.DummyHash()
	if user != nil {
		hash = user.PasswordHash
	}

	if !auth.VerifyPassword(hash, password) || user == nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	return &LoginResult{ID: user.ID, Email: user.Email, Token: token}, nil
}
