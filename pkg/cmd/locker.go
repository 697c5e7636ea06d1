package cmd

import (
	"context"
	"fmt"

	"github.com/mono-send/send-smartly/pkg/lock"
)

// NewLocker returns a Redis locker when redisURL is set and an in-process one
// otherwise. The returned close function is never nil.
func NewLocker(ctx context.Context, redisURL string) (lock.Locker, func() error, error) {
	if redisURL == "" {
		return lock.NewMemoryLocker(), func() error { return nil }, nil
	}

	locker, err := lock.NewRedisLockerFromURL(redisURL)
	if err != nil {
		return nil, nil, err
	}

	if err := locker.Ping(ctx); err != nil {
		_ = locker.Close()

		return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	return locker, locker.Close, nil
}
