package repository

import (
	"context"
	"sync"
	"time"

	"github.com/craftlab/canvas-gateway/internal/domain"
)

// MemoryUserRepo is an in-memory UserRepository used by tests and local
// development. It enforces the same uniqueness rules as the Mongo
// implementation.
type MemoryUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.UserIdentity
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[string]domain.UserIdentity)}
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id string) (domain.UserIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.UserIdentity{}, domain.ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (domain.UserIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.UserIdentity{}, domain.ErrNotFound
}

func (r *MemoryUserRepo) GetByExternalID(_ context.Context, externalID string) (domain.UserIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ExternalID == externalID {
			return u, nil
		}
	}
	return domain.UserIdentity{}, domain.ErrNotFound
}

func (r *MemoryUserRepo) Create(_ context.Context, user domain.UserIdentity) (domain.UserIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return domain.UserIdentity{}, domain.ErrConflict
		}
		if user.ExternalID != "" && u.ExternalID == user.ExternalID {
			return domain.UserIdentity{}, domain.ErrConflict
		}
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepo) RecordLogin(_ context.Context, id string, profile domain.ProfileUpdate, externalID string, entry domain.LoginEntry) (domain.UserIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.UserIdentity{}, domain.ErrNotFound
	}
	applyProfile(&u, profile)
	if externalID != "" {
		u.ExternalID = externalID
	}
	u.LoginCount++
	u.LoginLog = append(u.LoginLog, entry)
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return u, nil
}

func (r *MemoryUserRepo) UpdateProfile(_ context.Context, id string, profile domain.ProfileUpdate) (domain.UserIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.UserIdentity{}, domain.ErrNotFound
	}
	applyProfile(&u, profile)
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return u, nil
}

func (r *MemoryUserRepo) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Verified = true
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func (r *MemoryUserRepo) SetCredentialHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.CredentialHash = hash
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

func applyProfile(u *domain.UserIdentity, profile domain.ProfileUpdate) {
	if profile.DisplayName != nil {
		u.DisplayName = *profile.DisplayName
	}
	if profile.Email != nil {
		u.Email = *profile.Email
	}
	if profile.AvatarURL != nil {
		u.AvatarURL = *profile.AvatarURL
	}
}
