package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("identity: password must be at least 8 characters")
	// ErrSessionExpired signals the session token is absent, malformed, or expired.
	ErrSessionExpired = errors.New("identity: session expired")
	// ErrProfileNotFound signals a live session with no linked profile. It is
	// treated as unauthenticated by callers; a partial identity must never be
	// trusted downstream.
	ErrProfileNotFound = errors.New("identity: profile not found")
	// ErrInvalidInput signals a malformed request; retrying without changing
	// it will never succeed.
	ErrInvalidInput = errors.New("identity: invalid input")
)

// Service resolves principals and handles account registration and login.
type Service struct {
	repo      Repository
	jwtSecret []byte
	tokenTTL  time.Duration
}

// LoginResult bundles the token and domain user returned after a successful login.
type LoginResult struct {
	Token string
	User  User
}

// NewService creates a new identity service.
func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  24 * time.Hour,
	}
}

// Register creates a new customer account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := validateSignup(req.Email, req.Password, req.FullName); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     req.FullName,
		PasswordHash: string(passwordHash),
		Role:         RoleCustomer,
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// RegisterWorker creates a worker account together with its pending worker
// directory profile. Vetting happens later through the worker review flow.
func (s *Service) RegisterWorker(ctx context.Context, req WorkerSignupRequest) (*User, error) {
	if err := validateSignup(req.Email, req.Password, req.FullName); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	user, err := s.repo.CreateWorkerUser(ctx, CreateWorkerUserParams{
		CreateUserParams: CreateUserParams{
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			FullName:     req.FullName,
			PasswordHash: string(passwordHash),
			Role:         RoleWorker,
		},
		Specialties: req.Specialties,
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// ApplyAsWorker converts an existing customer account into a worker with a
// pending directory profile. Access policy is enforced by the caller; the
// identity layer only guarantees the conversion itself is atomic.
func (s *Service) ApplyAsWorker(ctx context.Context, userID string, specialties []string) (*User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	user, err := s.repo.ConvertToWorker(ctx, userID, specialties)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Login authenticates a user and returns a JWT session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("identity: generate token: %w", err)
	}

	return LoginResult{
		Token: token,
		User:  user,
	}, nil
}

// Resolve turns a raw session token into a typed Principal. The role and, for
// workers, the directory status are looked up fresh on every call so a grant
// revoked between requests never survives as a stale permission. The token
// deliberately carries only the user id; authority always comes from storage.
func (s *Service) Resolve(ctx context.Context, sessionToken string) (Principal, error) {
	userID, err := s.verifyToken(sessionToken)
	if err != nil {
		return Principal{}, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, fmt.Errorf("%w: user %s", ErrProfileNotFound, userID)
		}
		return Principal{}, err
	}

	principal := Principal{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
	}

	if user.Role == RoleWorker {
		status, err := s.repo.GetWorkerStatusByEmail(ctx, user.Email)
		if err != nil {
			if errors.Is(err, ErrNoWorkerProfile) {
				return Principal{}, fmt.Errorf("%w: worker %s", ErrProfileNotFound, user.Email)
			}
			return Principal{}, err
		}
		principal.WorkerStatus = status
	}

	return principal, nil
}

func (s *Service) verifyToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrSessionExpired
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrSessionExpired
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrSessionExpired
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", ErrSessionExpired
	}

	return userID, nil
}

// generateToken creates a JWT session token for the user.
func (s *Service) generateToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func validateSignup(email, password, fullName string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	if strings.TrimSpace(email) == "" || strings.TrimSpace(fullName) == "" {
		return fmt.Errorf("%w: email and full_name are required", ErrInvalidInput)
	}
	return nil
}
