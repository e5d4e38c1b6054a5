// Package store implements the durable intent store: a whole-document
// key-value record persisted atomically on every write. All writers perform a
// full read-modify-write cycle under the store's serialization lock and
// re-validate status transitions against the freshly read record, which is
// the concurrency-safety mechanism in lieu of row-level locking.
package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fusionplus-hq/coordinator/pkg/models"
)

var (
	// ErrNotFound means no intent exists with the given ID.
	ErrNotFound = errors.New("intent not found")
	// ErrConflict means a transition's precondition no longer held when the
	// record was re-read. Losers of a concurrent write race get this and are
	// expected to no-op.
	ErrConflict = errors.New("intent status changed concurrently")
)

// SecretRecord is the audit copy of a revealed secret.
type SecretRecord struct {
	IntentID   string `json:"intent_id"`
	OrderHash  string `json:"order_hash"`
	Secret     string `json:"secret"`
	RevealedAt int64  `json:"revealed_at"`
}

// Document is the full persisted state. A missing or corrupt backend value is
// reinitialized to the empty default rather than crashing.
type Document struct {
	Intents   []models.Intent   `json:"intents"`
	Whitelist []string          `json:"whitelist"`
	Nonces    map[string]uint64 `json:"nonces"`
	Secrets   []SecretRecord    `json:"secrets"`
}

// NewDocument returns the empty default document.
func NewDocument() *Document {
	return &Document{
		Intents:   []models.Intent{},
		Whitelist: []string{},
		Nonces:    map[string]uint64{},
		Secrets:   []SecretRecord{},
	}
}

// Backend persists the whole document. Write must be atomic from the
// caller's perspective: no partial-write visibility.
type Backend interface {
	Read() (*Document, error)
	Write(doc *Document) error
}

// Store serializes read-modify-write cycles over a Backend.
type Store struct {
	mu      sync.Mutex
	backend Backend
}

// New creates a store over the given backend.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// CreateIntent appends a new intent. The ID must be unique.
func (s *Store) CreateIntent(intent models.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Read()
	if err != nil {
		return err
	}
	for i := range doc.Intents {
		if doc.Intents[i].ID == intent.ID {
			return fmt.Errorf("intent %s already exists", intent.ID)
		}
	}
	now := time.Now()
	intent.CreatedAt = now
	intent.UpdatedAt = now
	doc.Intents = append(doc.Intents, intent)
	return s.backend.Write(doc)
}

// GetIntent returns a copy of the intent with the given ID.
func (s *Store) GetIntent(id string) (*models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Read()
	if err != nil {
		return nil, err
	}
	for i := range doc.Intents {
		if doc.Intents[i].ID == id {
			out := doc.Intents[i]
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// Mutate runs fn against the freshly read intent and persists the result.
// fn returning an error aborts without writing.
func (s *Store) Mutate(id string, fn func(*models.Intent) error) (*models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Read()
	if err != nil {
		return nil, err
	}
	for i := range doc.Intents {
		if doc.Intents[i].ID != id {
			continue
		}
		if err := fn(&doc.Intents[i]); err != nil {
			return nil, err
		}
		doc.Intents[i].UpdatedAt = time.Now()
		if err := s.backend.Write(doc); err != nil {
			return nil, err
		}
		out := doc.Intents[i]
		return &out, nil
	}
	return nil, ErrNotFound
}

// Transition moves the intent to next, validating the legal-edge table
// against the freshly read status. A stale expectation yields ErrConflict;
// an edge missing from the table yields the state machine's TransitionError.
// fn, when non-nil, applies additional mutations under the same write.
func (s *Store) Transition(id string, expect, next models.Status, fn func(*models.Intent)) (*models.Intent, error) {
	return s.Mutate(id, func(in *models.Intent) error {
		if in.Status != expect {
			return fmt.Errorf("%w: have %s, expected %s", ErrConflict, in.Status, expect)
		}
		if err := models.ValidateTransition(in.Status, next); err != nil {
			return err
		}
		in.Status = next
		if fn != nil {
			fn(in)
		}
		return nil
	})
}

// ListByStatus returns all intents with the given status. Full-table scan.
func (s *Store) ListByStatus(status models.Status) ([]models.Intent, error) {
	return s.list(func(in *models.Intent) bool { return in.Status == status })
}

// ListNonTerminal returns every intent that can still move.
func (s *Store) ListNonTerminal() ([]models.Intent, error) {
	return s.list(func(in *models.Intent) bool { return !models.IsTerminal(in.Status) })
}

// ListAll returns every intent.
func (s *Store) ListAll() ([]models.Intent, error) {
	return s.list(func(*models.Intent) bool { return true })
}

func (s *Store) list(match func(*models.Intent) bool) ([]models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Read()
	if err != nil {
		return nil, err
	}
	out := make([]models.Intent, 0)
	for i := range doc.Intents {
		if match(&doc.Intents[i]) {
			out = append(out, doc.Intents[i])
		}
	}
	return out, nil
}

// FindByOrderHash resolves an order hash to its intent. Hex hashes compare
// case-insensitively since chain clients and callers disagree on casing.
func (s *Store) FindByOrderHash(orderHash string) (*models.Intent, error) {
	return s.find(func(in *models.Intent) bool { return strings.EqualFold(in.OrderHash, orderHash) })
}

// FindByHashlock resolves a destination-event hashlock to its intent via the
// order's secret hash, ignoring hex casing.
func (s *Store) FindByHashlock(hashlock string) (*models.Intent, error) {
	return s.find(func(in *models.Intent) bool { return strings.EqualFold(in.SecretHash, hashlock) })
}

func (s *Store) find(match func(*models.Intent) bool) (*models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Read()
	if err != nil {
		return nil, err
	}
	for i := range doc.Intents {
		if match(&doc.Intents[i]) {
			out := doc.Intents[i]
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// AppendSecret records the audit copy of a revealed secret.
func (s *Store) AppendSecret(rec SecretRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Read()
	if err != nil {
		return err
	}
	doc.Secrets = append(doc.Secrets, rec)
	return s.backend.Write(doc)
}

// GetSecret returns the custody record for the given intent, revealed or not.
func (s *Store) GetSecret(intentID string) (*SecretRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Read()
	if err != nil {
		return nil, err
	}
	for i := range doc.Secrets {
		if doc.Secrets[i].IntentID == intentID {
			out := doc.Secrets[i]
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// MarkSecretRevealed stamps the custody record's reveal time. Already-stamped
// records are left untouched so the first reveal time wins.
func (s *Store) MarkSecretRevealed(intentID string, at int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Read()
	if err != nil {
		return err
	}
	for i := range doc.Secrets {
		if doc.Secrets[i].IntentID == intentID {
			if doc.Secrets[i].RevealedAt != 0 {
				return nil
			}
			doc.Secrets[i].RevealedAt = at
			return s.backend.Write(doc)
		}
	}
	return ErrNotFound
}

// IsWhitelisted reports whether the resolver address is on the whitelist.
// An empty whitelist admits everyone (open resolver set).
func (s *Store) IsWhitelisted(resolver string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Read()
	if err != nil {
		return false, err
	}
	if len(doc.Whitelist) == 0 {
		return true, nil
	}
	for _, w := range doc.Whitelist {
		if w == resolver {
			return true, nil
		}
	}
	return false, nil
}

// AddToWhitelist registers a resolver address.
func (s *Store) AddToWhitelist(resolver string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Read()
	if err != nil {
		return err
	}
	for _, w := range doc.Whitelist {
		if w == resolver {
			return nil
		}
	}
	doc.Whitelist = append(doc.Whitelist, resolver)
	return s.backend.Write(doc)
}

// GetCursor reads a named scan cursor (last-scanned block / ledger version).
func (s *Store) GetCursor(name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Read()
	if err != nil {
		return 0, err
	}
	return doc.Nonces[name], nil
}

// SetCursor persists a named scan cursor.
func (s *Store) SetCursor(name string, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Read()
	if err != nil {
		return err
	}
	if doc.Nonces == nil {
		doc.Nonces = map[string]uint64{}
	}
	doc.Nonces[name] = value
	return s.backend.Write(doc)
}
