package bridge

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"
)

// Client is a bridge client authorized to issue pause/resume/halt
// commands: the system has no notion of end-user accounts, just
// registered automation clients, so Client carries only what
// authentication needs.
type Client struct {
	ID         uuid.UUID
	Name       string
	SecretHash []byte
}

// ErrClientExists is returned by Register when Name is already taken.
var ErrClientExists = fmt.Errorf("client already registered")

// ErrBadCredentials is returned by Authenticate on a name/secret
// mismatch.
var ErrBadCredentials = fmt.Errorf("bad credentials")

// ClientStore is an in-memory registry of bridge clients, grounded on
// server/tunas/users.go's bcrypt-hashed password storage but without a
// backing SQL table: clients are provisioned once at bridge startup
// (from the operator overlay config) rather than created through the
// HTTP API itself.
type ClientStore struct {
	mu     sync.RWMutex
	byName map[string]*Client
	byID   map[uuid.UUID]*Client
}

// NewClientStore constructs an empty client registry.
func NewClientStore() *ClientStore {
	return &ClientStore{
		byName: make(map[string]*Client),
		byID:   make(map[uuid.UUID]*Client),
	}
}

// Register hashes secret with bcrypt and adds a new Client under name,
// the same cost factor (14) server/tunas/users.go uses for new user
// passwords.
func (s *ClientStore) Register(name, secret string) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[name]; exists {
		return Client{}, ErrClientExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), 14)
	if err != nil {
		return Client{}, fmt.Errorf("hash client secret: %w", err)
	}

	c := &Client{ID: uuid.New(), Name: name, SecretHash: hash}
	s.byName[name] = c
	s.byID[c.ID] = c
	return *c, nil
}

// Authenticate checks name/secret against the registry, the bridge
// equivalent of server/tunas/auth.go's password-verification step.
func (s *ClientStore) Authenticate(name, secret string) (Client, error) {
	s.mu.RLock()
	c, ok := s.byName[name]
	s.mu.RUnlock()
	if !ok {
		return Client{}, ErrBadCredentials
	}

	if err := bcrypt.CompareHashAndPassword(c.SecretHash, []byte(secret)); err != nil {
		return Client{}, ErrBadCredentials
	}
	return *c, nil
}

// GetByID looks up a client by ID, used while validating a JWT's
// subject claim.
func (s *ClientStore) GetByID(id uuid.UUID) (Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return Client{}, false
	}
	return *c, true
}
