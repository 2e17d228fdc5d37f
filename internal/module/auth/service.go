package auth

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/simp-lee/jwt"
	"golang.org/x/crypto/bcrypt"

	"github.com/simp-lee/ftthadmin/internal/domain"
)

const minPasswordClasses = 3

// Service defines the authentication operations.
type Service interface {
	Login(ctx context.Context, email, password string) (*TokenResponse, error)
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, userID uint) error
	ResolveToken(ctx context.Context, token string) (*domain.User, error)
	GetUser(ctx context.Context, id uint) (*domain.User, error)
}

// authService implements Service.
type authService struct {
	jwtSvc      jwt.Service
	userRepo    domain.UserRepository
	tokenExpiry time.Duration
}

// NewService creates a new auth Service issuing tokens valid for tokenExpiry.
func NewService(jwtSvc jwt.Service, userRepo domain.UserRepository, tokenExpiry time.Duration) Service {
	return &authService{
		jwtSvc:      jwtSvc,
		userRepo:    userRepo,
		tokenExpiry: tokenExpiry,
	}
}

// NewTokenService builds the JWT service for tokens that live for
// tokenExpiry. Lifetimes above the library default raise the maximum and the
// user revocation window with it.
func NewTokenService(secret string, tokenExpiry time.Duration, opts ...jwt.Option) (jwt.Service, error) {
	if tokenExpiry > jwt.DefaultMaxTokenLifetime {
		opts = append([]jwt.Option{jwt.WithMaxTokenLifetime(tokenExpiry)}, opts...)
		if tokenExpiry > jwt.DefaultUserRevocationTTL {
			opts = append([]jwt.Option{jwt.WithUserRevocationTTL(tokenExpiry)}, opts...)
		}
	}
	return jwt.New(secret, opts...)
}

// Login authenticates a user by email and password and returns a JWT.
func (s *authService) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		// Don't reveal whether the user exists.
		if domain.IsNotFound(err) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrUnauthorized
	}

	token, err := s.jwtSvc.GenerateToken(strconv.FormatUint(uint64(user.ID), 10), nil, s.tokenExpiry)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to generate token", err)
	}

	parsed, err := s.jwtSvc.ParseToken(token)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to parse generated token", err)
	}

	return &TokenResponse{
		Token:     token,
		ExpiresAt: parsed.ExpiresAt.Unix(),
	}, nil
}

// Register creates a new user with the given credentials.
func (s *authService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if err := validateRegisterInput(name, email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to hash password", err)
	}

	user := domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, &user); err != nil {
		if domain.IsAlreadyExists(err) {
			return nil, domain.FieldError("email", "email already registered")
		}
		return nil, err
	}

	return &user, nil
}

// Logout revokes a single token.
func (s *authService) Logout(_ context.Context, token string) error {
	if token == "" {
		return domain.ErrUnauthorized
	}
	if err := s.jwtSvc.RevokeToken(token); err != nil {
		return tokenError(err)
	}
	return nil
}

// LogoutAll revokes every token issued to the user so far.
func (s *authService) LogoutAll(_ context.Context, userID uint) error {
	if err := s.jwtSvc.RevokeAllUserTokens(strconv.FormatUint(uint64(userID), 10)); err != nil {
		return tokenError(err)
	}
	return nil
}

// ResolveToken validates a token and returns its owner.
func (s *authService) ResolveToken(ctx context.Context, token string) (*domain.User, error) {
	parsed, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, tokenError(err)
	}
	id, err := strconv.ParseUint(parsed.UserID, 10, 0)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(ctx, uint(id))
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

// GetUser returns a user by id.
func (s *authService) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// validateRegisterInput validates registration input and reports every
// failing field at once.
func validateRegisterInput(name, email, password string) error {
	fields := make(map[string][]string)

	nameLen := utf8.RuneCountInString(strings.TrimSpace(name))
	switch {
	case nameLen == 0:
		fields["name"] = append(fields["name"], "name is required")
	case nameLen > 100:
		fields["name"] = append(fields["name"], "name must not exceed 100 characters")
	}

	trimmedEmail := strings.TrimSpace(email)
	if trimmedEmail == "" {
		fields["email"] = append(fields["email"], "email is required")
	} else if addr, err := mail.ParseAddress(trimmedEmail); err != nil || addr.Name != "" || addr.Address != trimmedEmail {
		fields["email"] = append(fields["email"], "email must be a valid email address")
	}

	switch {
	case len(password) < 8:
		fields["password"] = append(fields["password"], "password must be at least 8 characters")
	case len(password) > 72:
		fields["password"] = append(fields["password"], "password must not exceed 72 characters")
	case countCharClasses(password) < minPasswordClasses:
		fields["password"] = append(fields["password"], "password must mix at least three of lowercase, uppercase, digits and symbols")
	}

	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}

// tokenError maps JWT failures to ErrUnauthorized. A closed service is an
// internal error.
func tokenError(err error) error {
	if errors.Is(err, jwt.ErrServiceClosed) {
		return domain.NewAppError(domain.CodeInternal, "token service unavailable", err)
	}
	return domain.ErrUnauthorized
}

// countCharClasses counts how many of lowercase, uppercase, digit and symbol
// occur in s.
func countCharClasses(s string) int {
	var lower, upper, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	n := 0
	for _, ok := range []bool{lower, upper, digit, symbol} {
		if ok {
			n++
		}
	}
	return n
}
