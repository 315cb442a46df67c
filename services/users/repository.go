package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matheusmosca/planet-shop/pkg/database"
)

var (
	ErrUserNotFound = fmt.Errorf("user %w", database.ErrNotFound)
	ErrEmailTaken   = errors.New("email already registered")
)

const uniqueViolation = "23505"

// UserRepository define a interface para operações de banco de dados de usuários
type UserRepository interface {
	Create(ctx context.Context, tx database.Tx, account *Account) error
	GetByID(ctx context.Context, userID string) (*Account, error)
	Save(ctx context.Context, account *Account) error
}

// PostgresUserRepository implementa UserRepository usando PostgreSQL
type PostgresUserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository cria uma nova instância de PostgresUserRepository
func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, tx database.Tx, account *Account) error {
	pgTx := database.PgxTx(tx)

	err := pgTx.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, account.ID, account.Email, account.PasswordHash, account.FirstName, account.LastName,
		string(account.Status)).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, userID string) (*Account, error) {
	var a Account
	var status string
	err := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, first_name, last_name, status, deactivated_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &status,
		&a.DeactivatedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	a.Status = AccountStatus(status)
	return &a, nil
}

// Save grava o estado mutável da conta
func (r *PostgresUserRepository) Save(ctx context.Context, account *Account) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET email = $2, password_hash = $3, first_name = $4, last_name = $5,
		    status = $6, deactivated_at = $7, updated_at = NOW()
		WHERE id = $1
	`, account.ID, account.Email, account.PasswordHash, account.FirstName, account.LastName,
		string(account.Status), account.DeactivatedAt)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
