package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/auth-service/internal/domain"
)

// memoryCredentialRepository keeps credentials in process. It enforces the
// same uniqueness rules as the credentials table and is used when no
// database is configured.
type memoryCredentialRepository struct {
	mu         sync.RWMutex
	byID       map[string]*domain.Credential
	byEmail    map[string]string
	byUsername map[string]string
	now        func() time.Time
}

// NewMemoryCredentialRepository returns an empty in-memory repository.
func NewMemoryCredentialRepository() CredentialRepository {
	return &memoryCredentialRepository{
		byID:       make(map[string]*domain.Credential),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
		now:        time.Now,
	}
}

func (r *memoryCredentialRepository) Create(_ context.Context, cred *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[cred.Email]; taken {
		return ErrDuplicateEmail
	}
	if _, taken := r.byUsername[cred.Username]; taken {
		return ErrDuplicateUsername
	}

	now := r.now()
	cred.ID = uuid.NewString()
	cred.CreatedAt = now
	cred.UpdatedAt = now

	stored := *cred
	r.byID[stored.ID] = &stored
	r.byEmail[stored.Email] = stored.ID
	r.byUsername[stored.Username] = stored.ID
	return nil
}

func (r *memoryCredentialRepository) Update(_ context.Context, cred *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[cred.ID]
	if !ok {
		return ErrNotFound
	}
	if owner, taken := r.byEmail[cred.Email]; taken && owner != cred.ID {
		return ErrDuplicateEmail
	}
	if owner, taken := r.byUsername[cred.Username]; taken && owner != cred.ID {
		return ErrDuplicateUsername
	}

	delete(r.byEmail, current.Email)
	delete(r.byUsername, current.Username)

	cred.CreatedAt = current.CreatedAt
	cred.UpdatedAt = r.now()
	stored := *cred
	r.byID[stored.ID] = &stored
	r.byEmail[stored.Email] = stored.ID
	r.byUsername[stored.Username] = stored.ID
	return nil
}

func (r *memoryCredentialRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	cred.PasswordHash = hash
	cred.UpdatedAt = r.now()
	return nil
}

func (r *memoryCredentialRepository) MarkEmailVerified(_ context.Context, id, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.byID[id]
	if !ok || cred.Email != email {
		return ErrNotFound
	}
	cred.IsEmailVerified = true
	cred.UpdatedAt = r.now()
	return nil
}

func (r *memoryCredentialRepository) GetByID(_ context.Context, id string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyOf(id)
}

func (r *memoryCredentialRepository) GetByEmail(_ context.Context, email string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return r.copyOf(id)
}

func (r *memoryCredentialRepository) GetByUsername(_ context.Context, username string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	return r.copyOf(id)
}

func (r *memoryCredentialRepository) List(_ context.Context, filter CredentialFilter) ([]domain.Credential, error) {
	r.mu.RLock()
	all := make([]domain.Credential, 0, len(r.byID))
	for _, cred := range r.byID {
		all = append(all, *cred)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []domain.Credential{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memoryCredentialRepository) copyOf(id string) (*domain.Credential, error) {
	cred, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *cred
	return &out, nil
}
