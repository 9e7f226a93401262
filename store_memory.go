package auth

import (
	"context"
	"sync"
)

// MemoryStore is an IdentityStore kept in process memory. Create checks
// and inserts under one lock, so it enforces uniqueness the same way the
// SQL store's constraints do.
type MemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]*User
	byPhone map[string]*User
}

var _ IdentityStore = (*MemoryStore)(nil)
var _ HealthChecker = (*MemoryStore)(nil)

// NewMemoryStore returns a store seeded with users, if any
func NewMemoryStore(seed ...*User) *MemoryStore {
	s := &MemoryStore{
		byEmail: make(map[string]*User),
		byPhone: make(map[string]*User),
	}
	for _, u := range seed {
		if u == nil {
			continue
		}
		record := u.clone()
		prepareUserDefaults(record)
		s.byEmail[record.Email] = record
		s.byPhone[record.Phone] = record
	}
	return s
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byEmail[email]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return u.clone(), nil
}

func (s *MemoryStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *MemoryStore) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byPhone[phone]
	return ok, nil
}

func (s *MemoryStore) Create(ctx context.Context, user *User) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record := user.clone()
	prepareUserDefaults(record)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[record.Email]; ok {
		return nil, ErrDuplicateEmail
	}
	if _, ok := s.byPhone[record.Phone]; ok {
		return nil, ErrDuplicatePhone
	}

	s.byEmail[record.Email] = record
	s.byPhone[record.Phone] = record
	return record.clone(), nil
}

// Len returns the number of stored identities
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byEmail)
}
