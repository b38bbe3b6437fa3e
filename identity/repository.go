package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"garageflow/db"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = errors.New("identity: user not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("identity: email already exists")
	// ErrNoWorkerProfile signals that no worker directory row matches the email.
	ErrNoWorkerProfile = errors.New("identity: no worker profile")
	// ErrAlreadyWorker signals the account already holds a non-customer role,
	// so a worker application cannot convert it.
	ErrAlreadyWorker = errors.New("identity: account is already a worker")
)

// Repository handles data access for accounts and principal resolution.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	CreateWorkerUser(ctx context.Context, params CreateWorkerUserParams) (User, error)
	ConvertToWorker(ctx context.Context, userID string, specialties []string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	GetWorkerStatusByEmail(ctx context.Context, email string) (WorkerStatus, error)
}

// CreateUserParams contains write parameters for creating accounts.
type CreateUserParams struct {
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
}

// CreateWorkerUserParams additionally carries the worker directory profile
// written in the same transaction as the account row.
type CreateWorkerUserParams struct {
	CreateUserParams
	Specialties []string
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed identity repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, full_name, password_hash, role, created_at, updated_at`

// CreateUser inserts a new account with hashed password.
func (r *PGRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO users (email, full_name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, userColumns)

	user, err := scanUser(r.pool.QueryRow(ctx, insertSQL, params.Email, params.FullName, params.PasswordHash, params.Role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("identity: create user: %w", err)
	}

	return user, nil
}

// CreateWorkerUser inserts the account row and its pending worker directory
// profile inside a single transaction so a half-registered worker can never
// be observed.
func (r *PGRepository) CreateWorkerUser(ctx context.Context, params CreateWorkerUserParams) (User, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO users (email, full_name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, userColumns)

	var user User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx, insertSQL, params.Email, params.FullName, params.PasswordHash, RoleWorker))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("identity: create worker user: %w", err)
		}
		return insertWorkerProfile(ctx, tx, user, params.Specialties)
	})
	if err != nil {
		return User{}, err
	}

	return user, nil
}

// ConvertToWorker upgrades an existing customer account into a worker: the
// role flips and a pending directory profile appears in the same transaction.
// The conditional role predicate makes a concurrent double-apply lose cleanly
// instead of inserting a second profile.
func (r *PGRepository) ConvertToWorker(ctx context.Context, userID string, specialties []string) (User, error) {
	updateSQL := fmt.Sprintf(`
		UPDATE users
		SET role = 'worker', updated_at = now()
		WHERE id = $1 AND role = 'customer'
		RETURNING %s
	`, userColumns)

	var user User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx, updateSQL, userID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Either the account is gone or it already left the
				// customer role; one more read tells them apart.
				if _, getErr := scanUser(tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns), userID)); getErr != nil {
					if errors.Is(getErr, pgx.ErrNoRows) {
						return ErrUserNotFound
					}
					return fmt.Errorf("identity: convert to worker: %w", getErr)
				}
				return ErrAlreadyWorker
			}
			return fmt.Errorf("identity: convert to worker: %w", err)
		}
		return insertWorkerProfile(ctx, tx, user, specialties)
	})
	if err != nil {
		return User{}, err
	}

	return user, nil
}

func insertWorkerProfile(ctx context.Context, tx pgx.Tx, user User, specialties []string) error {
	if specialties == nil {
		specialties = []string{}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO workers (user_id, email, full_name, status, specialties)
		VALUES ($1, $2, $3, 'pending', $4)
	`, user.ID, user.Email, user.FullName, specialties); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("identity: create worker profile: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves an account by email address.
func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("identity: get user by email: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves an account by ID.
func (r *PGRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	selectSQL := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	user, err := scanUser(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("identity: get user by id: %w", err)
	}

	return user, nil
}

// GetWorkerStatusByEmail reads the current vetting status from the worker
// directory. The directory table is the single source of truth; the status is
// never denormalized onto the users row.
func (r *PGRepository) GetWorkerStatusByEmail(ctx context.Context, email string) (WorkerStatus, error) {
	var status WorkerStatus
	err := r.pool.QueryRow(ctx, `SELECT status FROM workers WHERE email = $1`, email).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoWorkerProfile
		}
		return "", fmt.Errorf("identity: get worker status: %w", err)
	}
	return status, nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}
