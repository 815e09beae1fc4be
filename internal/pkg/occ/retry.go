// Package occ retries optimistic-concurrency conflicts.
//
// Aggregates carry a version column; a save races another writer by
// failing with apperror.ErrCodeConflict. The losing writer re-reads and
// re-applies its mutation a bounded number of times before surfacing the
// conflict.
package occ

import (
	"context"

	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// MaxAttempts bounds transparent conflict retries.
const MaxAttempts = 3

// Retry runs fn until it succeeds, fails with a non-conflict error, or the
// attempt budget is spent. fn must perform the whole read-mutate-write
// cycle so each attempt starts from fresh state.
func Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = fn(ctx)
		if err == nil || !apperror.IsConflict(err) {
			return err
		}
	}
	return err
}
