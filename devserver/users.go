package devserver

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmailTaken is returned by Create for an email that is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned by Authenticate for an unknown email or a
	// wrong password. The two cases are not distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is an account known to the server
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`

	passwordHash []byte
}

// UserStore keeps users in memory, keyed by id and by lowercased email.
type UserStore struct {
	mu      sync.RWMutex
	nextID  int
	byID    map[int]*User
	byEmail map[string]*User
}

func NewUserStore() *UserStore {
	return &UserStore{
		nextID:  1,
		byID:    make(map[int]*User),
		byEmail: make(map[string]*User),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a user with a bcrypt hash of password.
func (s *UserStore) Create(name, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email required")
	}
	if password == "" {
		return nil, fmt.Errorf("password required")
	}

	// Hash outside the lock, bcrypt is slow
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return nil, ErrEmailTaken
	}
	user := &User{
		ID:           s.nextID,
		Name:         strings.TrimSpace(name),
		Email:        email,
		passwordHash: passwordHash,
	}
	s.nextID++
	s.byID[user.ID] = user
	s.byEmail[email] = user
	return user, nil
}

// Get returns the user with the given id.
func (s *UserStore) Get(id int) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[id]
	return user, ok
}

// Authenticate checks email/password and returns the matching user.
func (s *UserStore) Authenticate(email, password string) (*User, error) {
	s.mu.RLock()
	user, ok := s.byEmail[normalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// List returns all users ordered by id.
func (s *UserStore) List() []*User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.byID))
	for id := 1; id < s.nextID; id++ {
		if u, ok := s.byID[id]; ok {
			out = append(out, u)
		}
	}
	return out
}
