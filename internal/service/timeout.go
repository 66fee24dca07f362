package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/efreitasn/stocksim/internal/domain"
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

func validateUserID(userID string) error {
	if !userIDRegex.MatchString(userID) {
		return &domain.ValidationError{
			Message: "userId must match ^[a-zA-Z0-9_-]{1,128}$",
		}
	}
	return nil
}

// storeCall runs fn with a deadline of d. A deadline hit becomes
// domain.ErrStoreTimeout so callers can retry.
func storeCall[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		var zero T
		return zero, fmt.Errorf("%w: %w", domain.ErrStoreTimeout, err)
	}
	return v, err
}
