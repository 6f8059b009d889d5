package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	users UserStore
	cost  int
}

type ServiceConfig struct {
	// BcryptCost applies to passwords hashed by Register and SeedUsers.
	BcryptCost int
}

func NewService(userStore UserStore, cfg ServiceConfig) (*Service, error) {
	if userStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Service{users: userStore, cost: cost}, nil
}

func (s *Service) Register(user User, password string) error {
	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.Email) == "" {
		return fmt.Errorf("id and email are required")
	}
	if !user.Role.Valid() {
		return fmt.Errorf("invalid role %q", user.Role)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Email = normalizeEmail(user.Email)
	return s.users.Put(Account{User: user, PasswordHash: string(hash)})
}

func (s *Service) Authenticate(email, password string) (User, error) {
	a, err := s.users.GetByEmail(email)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return a.User, nil
}

// Login authenticates and starts a session in sessions. When only persistence
// fails the session is returned together with ErrStorageUnavailable.
func (s *Service) Login(sessions *SessionStore, email, password string) (Session, error) {
	user, err := s.Authenticate(email, password)
	if err != nil {
		return Session{}, err
	}
	return sessions.Save(user)
}

func (s *Service) Logout(sessions *SessionStore) error {
	return sessions.Clear()
}

func (s *Service) Users() []User {
	return s.users.List()
}

type usersFile struct {
	Users []struct {
		ID       string `yaml:"id"`
		FullName string `yaml:"full_name"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Role     string `yaml:"role"`
	} `yaml:"users"`
}

// SeedUsers registers every user in a YAML document that is not already in
// the directory.
func (s *Service) SeedUsers(data []byte) (int, error) {
	var uf usersFile
	if err := yaml.Unmarshal(data, &uf); err != nil {
		return 0, fmt.Errorf("decode users: %w", err)
	}
	added := 0
	for _, u := range uf.Users {
		if u.Email == "" || u.Password == "" {
			continue
		}
		if _, err := s.users.GetByEmail(u.Email); err == nil {
			continue
		} else if !errors.Is(err, ErrUserNotFound) {
			return added, err
		}
		role, err := ParseRole(u.Role)
		if err != nil {
			return added, fmt.Errorf("user %s: %w", u.Email, err)
		}
		if err := s.Register(User{ID: u.ID, FullName: u.FullName, Email: u.Email, Role: role}, u.Password); err != nil {
			return added, fmt.Errorf("user %s: %w", u.Email, err)
		}
		added++
	}
	return added, nil
}
