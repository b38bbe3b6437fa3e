package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "alice@example.com",
		Password: "supersafe",
		FullName: "Alice Customer",
	}

	ctx := context.Background()
	user, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if user.Email != req.Email {
		t.Fatalf("expected email %q got %q", req.Email, user.Email)
	}
	if user.Role != RoleCustomer {
		t.Fatalf("register: expected role %s got %s", RoleCustomer, user.Role)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}

	principal, err := svc.Resolve(ctx, resp.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal.ID != user.ID {
		t.Fatalf("resolve: expected user id %q got %q", user.ID, principal.ID)
	}
	if principal.Role != RoleCustomer {
		t.Fatalf("resolve: expected role %s got %s", RoleCustomer, principal.Role)
	}
	if principal.WorkerStatus != "" {
		t.Fatalf("resolve: expected empty worker status for customer, got %s", principal.WorkerStatus)
	}
}

func TestService_RegisterWorkerStartsPending(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	ctx := context.Background()
	user, err := svc.RegisterWorker(ctx, WorkerSignupRequest{
		Email:       "wanda@example.com",
		Password:    "strongpassword",
		FullName:    "Wanda Worker",
		Specialties: []string{"car-wash"},
	})
	if err != nil {
		t.Fatalf("register worker: %v", err)
	}
	if user.Role != RoleWorker {
		t.Fatalf("expected role %s got %s", RoleWorker, user.Role)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "strongpassword"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	principal, err := svc.Resolve(ctx, resp.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal.WorkerStatus != WorkerPending {
		t.Fatalf("expected worker status %s got %s", WorkerPending, principal.WorkerStatus)
	}
}

func TestService_ResolveSeesFreshWorkerStatus(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	ctx := context.Background()
	user, err := svc.RegisterWorker(ctx, WorkerSignupRequest{
		Email:    "wanda@example.com",
		Password: "strongpassword",
		FullName: "Wanda Worker",
	})
	if err != nil {
		t.Fatalf("register worker: %v", err)
	}
	resp, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "strongpassword"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// An approval applied after the token was minted must be visible on the
	// next resolution without a new login.
	repo.workerStatus[user.Email] = WorkerApproved

	principal, err := svc.Resolve(ctx, resp.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal.WorkerStatus != WorkerApproved {
		t.Fatalf("expected worker status %s got %s", WorkerApproved, principal.WorkerStatus)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Password: "short",
		FullName: "Alice Customer",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "",
		Password: "strongpassword",
		FullName: "",
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing fields, got %v", err)
	}
}

func TestService_ApplyAsWorker(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{
		Email:    "alice@example.com",
		Password: "strongpassword",
		FullName: "Alice Customer",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	upgraded, err := svc.ApplyAsWorker(ctx, user.ID, []string{"car-wash"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if upgraded.Role != RoleWorker {
		t.Fatalf("expected role %s got %s", RoleWorker, upgraded.Role)
	}
	if repo.workerStatus[user.Email] != WorkerPending {
		t.Fatalf("expected pending directory profile, got %s", repo.workerStatus[user.Email])
	}

	if _, err := svc.ApplyAsWorker(ctx, user.ID, nil); !errors.Is(err, ErrAlreadyWorker) {
		t.Fatalf("second apply: expected ErrAlreadyWorker, got %v", err)
	}
	if _, err := svc.ApplyAsWorker(ctx, "", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank id: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.ApplyAsWorker(ctx, "user-999", nil); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown id: expected ErrUserNotFound, got %v", err)
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "alice@example.com",
		Password: "strongpassword",
		FullName: "Alice Customer",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "unknown@example.com",
		Password: "irrelevant",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_ResolveRejectsBadTokens(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	for _, token := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		if _, err := svc.Resolve(context.Background(), token); !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("token %q: expected ErrSessionExpired, got %v", token, err)
		}
	}
}

func TestService_ResolveExpiredToken(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")
	svc.tokenTTL = -time.Minute

	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterRequest{
		Email:    "alice@example.com",
		Password: "strongpassword",
		FullName: "Alice Customer",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := svc.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "strongpassword"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := svc.Resolve(ctx, resp.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestService_ResolveProfileNotFound(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterRequest{
		Email:    "alice@example.com",
		Password: "strongpassword",
		FullName: "Alice Customer",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := svc.Login(ctx, LoginRequest{Email: user.Email, Password: "strongpassword"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Account deleted between login and the next request.
	delete(repo.usersByID, user.ID)
	delete(repo.usersByEmail, user.Email)

	if _, err := svc.Resolve(ctx, resp.Token); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

type fakeRepository struct {
	usersByEmail map[string]User
	usersByID    map[string]User
	workerStatus map[string]WorkerStatus
	nextID       int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		usersByEmail: make(map[string]User),
		usersByID:    make(map[string]User),
		workerStatus: make(map[string]WorkerStatus),
		nextID:       1,
	}
}

func (f *fakeRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if _, exists := f.usersByEmail[strings.ToLower(params.Email)]; exists {
		return User{}, ErrDuplicateEmail
	}

	id := fmt.Sprintf("user-%d", f.nextID)
	f.nextID++

	user := User{
		ID:           id,
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	f.usersByEmail[strings.ToLower(user.Email)] = user
	f.usersByID[user.ID] = user

	return user, nil
}

func (f *fakeRepository) CreateWorkerUser(ctx context.Context, params CreateWorkerUserParams) (User, error) {
	user, err := f.CreateUser(ctx, params.CreateUserParams)
	if err != nil {
		return User{}, err
	}
	f.workerStatus[user.Email] = WorkerPending
	return user, nil
}

func (f *fakeRepository) ConvertToWorker(ctx context.Context, userID string, specialties []string) (User, error) {
	user, ok := f.usersByID[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	if user.Role != RoleCustomer {
		return User{}, ErrAlreadyWorker
	}
	user.Role = RoleWorker
	f.usersByID[user.ID] = user
	f.usersByEmail[strings.ToLower(user.Email)] = user
	f.workerStatus[user.Email] = WorkerPending
	return user, nil
}

func (f *fakeRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, ok := f.usersByEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, ok := f.usersByID[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) GetWorkerStatusByEmail(ctx context.Context, email string) (WorkerStatus, error) {
	status, ok := f.workerStatus[email]
	if !ok {
		return "", ErrNoWorkerProfile
	}
	return status, nil
}
