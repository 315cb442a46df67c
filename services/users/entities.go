package users

import (
	"fmt"
	"strings"
	"time"
)

// AccountStatus é o estado da conta
type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "active"
	AccountStatusDeactivated AccountStatus = "deactivated"
)

// Account representa o usuário da loja
type Account struct {
	ID            string        `json:"id"`
	Email         string        `json:"email"`
	PasswordHash  string        `json:"-"`
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	Status        AccountStatus `json:"status"`
	DeactivatedAt *time.Time    `json:"deactivated_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"-"`
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// Deactivate marca a conta como desativada e remove os dados pessoais.
// Pedidos continuam apontando para o mesmo id.
func (a *Account) Deactivate(now time.Time) {
	a.Status = AccountStatusDeactivated
	a.DeactivatedAt = &now
	a.Email = fmt.Sprintf("deleted-%s@anonymized.invalid", a.ID)
	a.FirstName = ""
	a.LastName = ""
	a.PasswordHash = "!"
}

// RegisterRequest é o corpo de POST /api/users
type RegisterRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Password2 string `json:"password2" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

const minPasswordLength = 8

// Validate retorna uma mensagem por campo inválido
func (r *RegisterRequest) Validate() []string {
	var problems []string
	email := strings.TrimSpace(r.Email)
	if at := strings.LastIndex(email, "@"); at < 1 || at == len(email)-1 {
		problems = append(problems, "email: must be a valid email address")
	}
	if len(r.Password) < minPasswordLength {
		problems = append(problems, fmt.Sprintf("password: must have at least %d characters", minPasswordLength))
	}
	if r.Password != r.Password2 {
		problems = append(problems, "password2: passwords must match")
	}
	return problems
}
