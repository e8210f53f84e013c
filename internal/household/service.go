// Package household manages household creation and membership via short
// join codes.
package household

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// codeAlphabet deliberately drops lookalike characters (0/O, 1/I/L) so codes
// survive being read aloud or scribbled on paper.
const (
	codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
	codeLength   = 6
)

type Service struct {
	store  storage.Store
	logger *log.Logger
}

func NewService(store storage.Store, logger *log.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.WithComponent(log.ComponentHousehold),
	}
}

// Create registers a new household with a freshly generated join code.
func (s *Service) Create(ctx context.Context, name string) (*core.Household, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ledger.ValidationError{Field: "household", Err: core.ErrEmptyName}
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate join code: %w", err)
	}

	h := &core.Household{Name: name, Code: code}
	if err := s.store.CreateHousehold(ctx, h); err != nil {
		return nil, &ledger.PersistenceError{Op: "create household", Err: err}
	}

	s.logger.InfoContext(ctx, "household created",
		log.FieldOperation, log.OpCreate,
		log.FieldHouseholdID, h.ID)
	return h, nil
}

// FindByCode resolves a join code to its household. An unknown code returns
// NotFoundError and the caller must abort the join.
func (s *Service) FindByCode(ctx context.Context, code string) (*core.Household, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, &ledger.ValidationError{Field: "household", Err: errors.New("empty join code")}
	}

	h, err := s.store.GetHouseholdByCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &ledger.NotFoundError{Kind: "household", ID: code}
	}
	if err != nil {
		return nil, &ledger.PersistenceError{Op: "find household", Err: err}
	}
	return h, nil
}

// Join adds a user to the household behind the given code. The code is
// resolved first; nothing is written when it does not exist.
func (s *Service) Join(ctx context.Context, code, userID string) (*core.Household, error) {
	h, err := s.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetUserHousehold(ctx, userID, h.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &ledger.NotFoundError{Kind: "user", ID: userID}
		}
		return nil, &ledger.PersistenceError{Op: "join household", Err: err}
	}

	s.logger.InfoContext(ctx, "user joined household",
		log.FieldOperation, log.OpJoin,
		log.FieldUserID, userID,
		log.FieldHouseholdID, h.ID)
	return h, nil
}

// Get returns a household by id.
func (s *Service) Get(ctx context.Context, id string) (*core.Household, error) {
	h, err := s.store.GetHousehold(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &ledger.NotFoundError{Kind: "household", ID: id}
	}
	if err != nil {
		return nil, &ledger.PersistenceError{Op: "get household", Err: err}
	}
	return h, nil
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, codeLength)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
