package memory

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/repository"
)

// UserRepo stores users in a DB.
type UserRepo struct{ db *DB }

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create stores u with a normalized email and fills in its id.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.db.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	r.db.userSeq++
	now := r.db.now()
	u.ID = r.db.userSeq
	u.CreatedAt, u.UpdatedAt = now, now
	r.db.users[u.ID] = *u
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.db.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(_ context.Context, id uint64) (model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

// TokenRepo keeps refresh token hashes in a DB.
type TokenRepo struct{ db *DB }

func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

// StoreRefresh records a refresh token hash.
func (r *TokenRepo) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.tokenSeq++
	r.db.tokens[tokenHash] = model.RefreshToken{
		ID:        r.db.tokenSeq,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp,
		CreatedAt: r.db.now(),
	}
	return nil
}

// ValidateRefresh returns the owner of a live token.
func (r *TokenRepo) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || r.db.now().After(t.ExpiresAt) {
		return 0, repository.ErrTokenInvalid
	}
	return t.UserID, nil
}

// ConsumeRefresh revokes a live token and returns its owner.
func (r *TokenRepo) ConsumeRefresh(_ context.Context, tokenHash string) (uint64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tokens[tokenHash]
	now := r.db.now()
	if !ok || t.RevokedAt != nil || now.After(t.ExpiresAt) {
		return 0, repository.ErrTokenInvalid
	}
	t.RevokedAt = &now
	r.db.tokens[tokenHash] = t
	return t.UserID, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(_ context.Context, tokenHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if t, ok := r.db.tokens[tokenHash]; ok && t.RevokedAt == nil {
		now := r.db.now()
		t.RevokedAt = &now
		r.db.tokens[tokenHash] = t
	}
	return nil
}

// RevokeAllForUser revokes every live token of a user.
func (r *TokenRepo) RevokeAllForUser(_ context.Context, userID uint64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.now()
	for h, t := range r.db.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.db.tokens[h] = t
		}
	}
	return nil
}
