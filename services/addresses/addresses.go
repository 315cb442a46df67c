// Package addresses guarda os endereços de entrega e escolhe o endereço
// padrão usado no checkout.
package addresses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
	"github.com/matheusmosca/planet-shop/pkg/database"
)

var ErrNoDefaultAddress = fmt.Errorf("default address %w", database.ErrNotFound)

// Address representa um endereço de entrega
type Address struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	Label       string    `json:"label" binding:"required"`
	Country     string    `json:"country" binding:"required"`
	State       string    `json:"state" binding:"required"`
	City        string    `json:"city" binding:"required"`
	Street      string    `json:"street" binding:"required"`
	PhoneNumber string    `json:"phone_number"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}

// String é o texto congelado no pedido
func (a *Address) String() string {
	return fmt.Sprintf("%s - %s, %s, %s, %s", a.Label, a.Street, a.City, a.State, a.Country)
}

// AddressRepository define a interface para operações de banco de dados de endereços
type AddressRepository interface {
	GetDefault(ctx context.Context, userID string) (*Address, error)
	ListByUser(ctx context.Context, userID string) ([]Address, error)
	Create(ctx context.Context, address *Address) error
}

// PostgresAddressRepository implementa AddressRepository usando PostgreSQL
type PostgresAddressRepository struct {
	db *pgxpool.Pool
}

// NewAddressRepository cria uma nova instância de PostgresAddressRepository
func NewAddressRepository(db *pgxpool.Pool) AddressRepository {
	return &PostgresAddressRepository{db: db}
}

const addressColumns = `id, user_id, label, country, state, city, street, phone_number, is_default, created_at`

func scanAddress(row pgx.Row) (*Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.Country, &a.State, &a.City, &a.Street,
		&a.PhoneNumber, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresAddressRepository) GetDefault(ctx context.Context, userID string) (*Address, error) {
	address, err := scanAddress(r.db.QueryRow(ctx, `
		SELECT `+addressColumns+`
		FROM addresses
		WHERE user_id = $1 AND is_default
	`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoDefaultAddress
		}
		return nil, fmt.Errorf("failed to get default address: %w", err)
	}
	return address, nil
}

func (r *PostgresAddressRepository) ListByUser(ctx context.Context, userID string) ([]Address, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+addressColumns+`
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var list []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// Create aplica as regras de endereço padrão: o primeiro endereço vira padrão
// e um novo padrão desmarca os demais.
func (r *PostgresAddressRepository) Create(ctx context.Context, address *Address) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		// Serializa cadastros concorrentes do mesmo usuário
		if _, err := tx.Exec(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, address.UserID); err != nil {
			return err
		}

		var hasDefault bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM addresses WHERE user_id = $1 AND is_default)
		`, address.UserID).Scan(&hasDefault)
		if err != nil {
			return err
		}

		if !hasDefault {
			address.IsDefault = true
		}
		if address.IsDefault && hasDefault {
			if _, err := tx.Exec(ctx, `
				UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default
			`, address.UserID); err != nil {
				return err
			}
		}

		address.ID = uuid.New().String()
		return tx.QueryRow(ctx, `
			INSERT INTO addresses (id, user_id, label, country, state, city, street, phone_number, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at
		`, address.ID, address.UserID, address.Label, address.Country, address.State, address.City,
			address.Street, address.PhoneNumber, address.IsDefault).Scan(&address.CreatedAt)
	})
}

// AddressUseCase expõe o endereço padrão para o checkout
type AddressUseCase struct {
	repository AddressRepository
}

// NewAddressUseCase cria uma nova instância de AddressUseCase
func NewAddressUseCase(repository AddressRepository) *AddressUseCase {
	return &AddressUseCase{repository: repository}
}

// GetDefaultAddress retorna NotFound quando o usuário não tem endereço padrão
func (uc *AddressUseCase) GetDefaultAddress(ctx context.Context, userID string) (*Address, error) {
	address, err := uc.repository.GetDefault(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoDefaultAddress) {
			return nil, apperrors.NotFound("address_not_found", "No default shipping address")
		}
		return nil, err
	}
	return address, nil
}

func (uc *AddressUseCase) List(ctx context.Context, userID string) ([]Address, error) {
	return uc.repository.ListByUser(ctx, userID)
}

func (uc *AddressUseCase) Create(ctx context.Context, userID string, address *Address) error {
	address.UserID = userID
	return uc.repository.Create(ctx, address)
}
