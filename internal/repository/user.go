package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/storage"
)

var ErrNotFound = errors.New("not found")

func userKey(id string) string         { return "user:" + id }
func userEmailKey(email string) string { return "user:email:" + NormalizeEmail(email) }

// NormalizeEmail приводит email к одному виду для ключа (нижний регистр, без пробелов).
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type UserRepository struct {
	store storage.Store
}

func NewUserRepository(store storage.Store) *UserRepository {
	return &UserRepository{store: store}
}

// Create пишет профиль и индекс email → id.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Create", time.Now())()
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("userRepo.Create encode: %w", err)
	}
	if err := r.store.Set(ctx, userKey(u.ID), string(raw)); err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}
	if err := r.store.Set(ctx, userEmailKey(u.Email), u.ID); err != nil {
		return fmt.Errorf("userRepo.Create email index: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByID", time.Now())()
	raw, err := r.store.Get(ctx, userKey(id))
	if errors.Is(err, storage.ErrNil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}
	u := &model.User{}
	if err := json.Unmarshal([]byte(raw), u); err != nil {
		return nil, fmt.Errorf("userRepo.GetByID decode %s: %w", id, err)
	}
	return u, nil
}

// IDByEmail возвращает id пользователя по email или ErrNotFound.
func (r *UserRepository) IDByEmail(ctx context.Context, email string) (string, error) {
	id, err := r.store.Get(ctx, userEmailKey(email))
	if errors.Is(err, storage.ErrNil) || (err == nil && id == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("userRepo.IDByEmail: %w", err)
	}
	return id, nil
}
