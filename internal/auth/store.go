package auth

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrUserNotFound = errors.New("user not found")

// Account is a directory entry: the public user plus its credential.
type Account struct {
	User
	PasswordHash string `json:"-"`
}

type UserStore interface {
	GetByEmail(email string) (Account, error)
	Put(account Account) error
	List() []User
}

type InMemoryUserStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{accounts: make(map[string]Account)}
}

func (s *InMemoryUserStore) GetByEmail(email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[normalizeEmail(email)]
	if !ok {
		return Account{}, ErrUserNotFound
	}
	return a, nil
}

func (s *InMemoryUserStore) Put(account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[normalizeEmail(account.Email)] = account
	return nil
}

func (s *InMemoryUserStore) List() []User {
	s.mu.RLock()
	out := make([]User, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.User)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
