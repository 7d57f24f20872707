package service

import (
	"context"
	"fmt"

	"github.com/costavn/notify-engine/internal/repository"
	"go.uber.org/zap"
)

// RecipientCache stores the resolved recipient list for a TTL. A cache hit
// may be up to one TTL stale after a user toggles their email preference;
// that staleness is a documented trade-off, not a bug.
type RecipientCache interface {
	Get(ctx context.Context) ([]string, bool, error)
	Set(ctx context.Context, emails []string) error
}

// RecipientResolver answers which users should receive email digests.
type RecipientResolver struct {
	users  repository.UserRepository
	cache  RecipientCache
	logger *zap.Logger
}

func NewRecipientResolver(
	users repository.UserRepository,
	cache RecipientCache,
	logger *zap.Logger,
) (*RecipientResolver, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("recipient cache is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RecipientResolver{
		users:  users,
		cache:  cache,
		logger: logger,
	}, nil
}

// RecipientEmails returns the opted-in recipient addresses, serving from the
// cache when the entry has not expired. A cache failure degrades to a direct
// directory query.
func (r *RecipientResolver) RecipientEmails(ctx context.Context) ([]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	emails, ok, err := r.cache.Get(ctx)
	if err != nil {
		r.logger.Warn("recipient cache read failed, querying directory", zap.Error(err))
	} else if ok {
		return emails, nil
	}

	emails, err = r.users.EmailsWithNotifyEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load email recipients: %w", err)
	}

	if err := r.cache.Set(ctx, emails); err != nil {
		r.logger.Warn("recipient cache write failed", zap.Error(err))
	}

	return emails, nil
}
