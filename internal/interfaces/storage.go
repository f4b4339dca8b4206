package interfaces

import (
	"context"

	"github.com/bobmcallan/finch/internal/models"
)

// ImportedStatement is a statement import held in session scope: a
// pseudo-account plus its transactions, removable like a linked institution.
type ImportedStatement struct {
	Token        string               `json:"token"` // pseudo credential ("import:<uuid>")
	Account      models.Account       `json:"account"`
	Transactions []models.Transaction `json:"transactions"`
}

// SessionStore is the explicit session-scoped store for state derived from
// credential tokens: institution metadata per token, per-account boundary
// estimates, and imported statements. Populated on balance fetch; removing a
// token cascades to everything sourced from it.
type SessionStore interface {
	PutInstitution(ctx context.Context, token string, inst *models.Institution, accountIDs []string) error
	GetInstitution(ctx context.Context, token string) (*models.Institution, error)

	PutBoundary(ctx context.Context, accountID string, boundary models.Date) error
	GetBoundary(ctx context.Context, accountID string) (models.Date, error)
	DeleteBoundary(ctx context.Context, accountID string) error

	PutImport(ctx context.Context, stmt *ImportedStatement) error
	GetImport(ctx context.Context, token string) (*ImportedStatement, error)
	ListImports(ctx context.Context) ([]*ImportedStatement, error)

	// RemoveToken deletes the institution cache, boundary estimates for its
	// accounts, and any imported statement held under the token. Returns the
	// account IDs whose state was removed so callers can clear in-memory
	// estimates.
	RemoveToken(ctx context.Context, token string) ([]string, error)

	Close() error
}

// StorageManager owns store lifecycle.
type StorageManager interface {
	SessionStore() SessionStore
	Close() error
}
