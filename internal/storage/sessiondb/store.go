// Package sessiondb implements SessionStore using BadgerHold.
// It holds only state derived from credential tokens: institution metadata,
// boundary estimates, and imported statements.
package sessiondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/finch/internal/common"
	"github.com/bobmcallan/finch/internal/interfaces"
	"github.com/bobmcallan/finch/internal/models"
)

// Record is the generic session entry. Payloads are JSON so domain types
// keep a single serialization path.
type Record struct {
	Kind     string
	Key      string
	Payload  []byte
	DateTime time.Time
}

const (
	kindInstitution = "institution"
	kindBoundary    = "boundary"
	kindImport      = "import"
)

// keySep is the composite key separator. A null byte prevents collisions
// when tokens contain ":" characters.
const keySep = "\x00"

func compositeKey(kind, key string) string {
	return kind + keySep + key
}

// institutionEntry is the stored payload for one credential token.
type institutionEntry struct {
	Institution models.Institution `json:"institution"`
	AccountIDs  []string           `json:"account_ids"`
}

// Store implements interfaces.SessionStore using BadgerHold.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore creates a session store backed by BadgerHold.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessiondb path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open sessiondb at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("SessionDB opened")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) put(kind, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s '%s': %w", kind, key, err)
	}
	rec := Record{
		Kind:     kind,
		Key:      key,
		Payload:  data,
		DateTime: time.Now(),
	}
	if err := s.db.Upsert(compositeKey(kind, key), rec); err != nil {
		return fmt.Errorf("failed to put %s '%s': %w", kind, key, err)
	}
	return nil
}

func (s *Store) get(kind, key string, out interface{}) error {
	var rec Record
	if err := s.db.Get(compositeKey(kind, key), &rec); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("%s '%s' not found", kind, key)
		}
		return fmt.Errorf("failed to get %s '%s': %w", kind, key, err)
	}
	if err := json.Unmarshal(rec.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s '%s': %w", kind, key, err)
	}
	return nil
}

func (s *Store) delete(kind, key string) error {
	err := s.db.Delete(compositeKey(kind, key), Record{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete %s '%s': %w", kind, key, err)
	}
	return nil
}

func (s *Store) PutInstitution(_ context.Context, token string, inst *models.Institution, accountIDs []string) error {
	return s.put(kindInstitution, token, institutionEntry{Institution: *inst, AccountIDs: accountIDs})
}

func (s *Store) GetInstitution(_ context.Context, token string) (*models.Institution, error) {
	var entry institutionEntry
	if err := s.get(kindInstitution, token, &entry); err != nil {
		return nil, err
	}
	return &entry.Institution, nil
}

func (s *Store) PutBoundary(_ context.Context, accountID string, boundary models.Date) error {
	return s.put(kindBoundary, accountID, boundary)
}

func (s *Store) GetBoundary(_ context.Context, accountID string) (models.Date, error) {
	var d models.Date
	if err := s.get(kindBoundary, accountID, &d); err != nil {
		return models.Date{}, err
	}
	return d, nil
}

func (s *Store) DeleteBoundary(_ context.Context, accountID string) error {
	return s.delete(kindBoundary, accountID)
}

func (s *Store) PutImport(_ context.Context, stmt *interfaces.ImportedStatement) error {
	return s.put(kindImport, stmt.Token, stmt)
}

func (s *Store) GetImport(_ context.Context, token string) (*interfaces.ImportedStatement, error) {
	var stmt interfaces.ImportedStatement
	if err := s.get(kindImport, token, &stmt); err != nil {
		return nil, err
	}
	return &stmt, nil
}

func (s *Store) ListImports(_ context.Context) ([]*interfaces.ImportedStatement, error) {
	var records []Record
	if err := s.db.Find(&records, badgerhold.Where("Kind").Eq(kindImport)); err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	stmts := make([]*interfaces.ImportedStatement, 0, len(records))
	for _, rec := range records {
		var stmt interfaces.ImportedStatement
		if err := json.Unmarshal(rec.Payload, &stmt); err != nil {
			return nil, fmt.Errorf("failed to decode import '%s': %w", rec.Key, err)
		}
		stmts = append(stmts, &stmt)
	}
	return stmts, nil
}

// RemoveToken deletes everything sourced from one credential: the
// institution cache, boundary estimates for its accounts, and any imported
// statement held under the token. Returns the cascaded account IDs.
func (s *Store) RemoveToken(ctx context.Context, token string) ([]string, error) {
	var removed []string

	var entry institutionEntry
	if err := s.get(kindInstitution, token, &entry); err == nil {
		for _, accountID := range entry.AccountIDs {
			if err := s.delete(kindBoundary, accountID); err != nil {
				return nil, err
			}
			removed = append(removed, accountID)
		}
	}
	if err := s.delete(kindInstitution, token); err != nil {
		return nil, err
	}

	if stmt, err := s.GetImport(ctx, token); err == nil {
		if err := s.delete(kindBoundary, stmt.Account.ID); err != nil {
			return nil, err
		}
		removed = append(removed, stmt.Account.ID)
	}
	if err := s.delete(kindImport, token); err != nil {
		return nil, err
	}

	s.logger.Debug().Str("token", token).Int("accounts", len(removed)).Msg("Session state removed for token")
	return removed, nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.db.Close()
}
