package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
	"github.com/matheusmosca/planet-shop/pkg/database"
	"github.com/matheusmosca/planet-shop/services/carts"
)

// CartCreator cria o carrinho na mesma transação do cadastro
type CartCreator interface {
	CreateCart(ctx context.Context, tx database.Tx, userID string) (*carts.Cart, error)
}

// UserUseCase contém a lógica de negócio de contas
type UserUseCase struct {
	repository UserRepository
	carts      CartCreator
	txs        database.Beginner
	logger     *zap.Logger
	now        func() time.Time
}

// NewUserUseCase cria uma nova instância de UserUseCase
func NewUserUseCase(repository UserRepository, carts CartCreator, txs database.Beginner, logger *zap.Logger) *UserUseCase {
	return &UserUseCase{
		repository: repository,
		carts:      carts,
		txs:        txs,
		logger:     logger,
		now:        time.Now,
	}
}

// Register cria a conta e o carrinho em uma única transação
func (uc *UserUseCase) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	if problems := req.Validate(); len(problems) > 0 {
		return nil, apperrors.Validation("invalid_registration", "Registration data is invalid", problems...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &Account{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Status:       AccountStatusActive,
	}

	// 1. Inicia a transação
	tx, err := uc.txs.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// 2. Cria o usuário
	if err := uc.repository.Create(ctx, tx, account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperrors.Validation("email_taken", "A user with this email already exists")
		}
		return nil, err
	}

	// 3. Cria o carrinho explicitamente
	if _, err := uc.carts.CreateCart(ctx, tx, account.ID); err != nil {
		return nil, err
	}

	// 4. Commit da transação
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("erro ao comitar cadastro: %w", err)
	}

	uc.logger.Info("✅ [REGISTER] Success", zap.String("user_id", account.ID))
	return account, nil
}

// Get retorna a conta pelo id
func (uc *UserUseCase) Get(ctx context.Context, userID string) (*Account, error) {
	account, err := uc.repository.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperrors.NotFound("user_not_found", "User not found")
		}
		return nil, err
	}
	return account, nil
}

// Deactivate desativa a conta e anonimiza os dados pessoais
func (uc *UserUseCase) Deactivate(ctx context.Context, userID string) (*Account, error) {
	account, err := uc.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return account, nil
	}

	account.Deactivate(uc.now().UTC())
	if err := uc.repository.Save(ctx, account); err != nil {
		return nil, err
	}

	uc.logger.Info("🗑️ [DEACTIVATE] account anonymized", zap.String("user_id", userID))
	return account, nil
}

// GetEmail é usado pelo notificador de pedidos
func (uc *UserUseCase) GetEmail(ctx context.Context, userID string) (string, error) {
	account, err := uc.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return account.Email, nil
}

// IsActive implementa auth.ActiveChecker
func (uc *UserUseCase) IsActive(ctx context.Context, userID string) (bool, error) {
	account, err := uc.repository.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return account.IsActive(), nil
}
