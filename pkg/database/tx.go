package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound é retornado pelos repositórios quando a linha não existe
var ErrNotFound = errors.New("not found")

// Tx interface para transações compartilhadas entre os repositórios
type Tx interface {
	Commit() error
	Rollback() error
}

// Beginner abre transações
type Beginner interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit() error {
	return t.tx.Commit(context.Background())
}

// Rollback depois de um Commit bem sucedido é um no-op.
func (t *PostgresTx) Rollback() error {
	err := t.tx.Rollback(context.Background())
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// TxManager abre transações no pool
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager cria uma nova instância de TxManager
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// BeginTx inicia uma nova transação
func (m *TxManager) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &PostgresTx{tx: tx}, nil
}

// PgxTx extracts the pgx transaction behind tx. Repositories only receive
// transactions opened by TxManager.
func PgxTx(tx Tx) pgx.Tx {
	return tx.(*PostgresTx).tx
}

// NotFound converte pgx.ErrNoRows em ErrNotFound
func NotFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
