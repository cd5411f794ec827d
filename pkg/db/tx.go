package db

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
)

// RetryPolicy bounds how often WithTx replays a transaction that lost a
// serialization race or was picked as a deadlock victim.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, Base: 20 * time.Millisecond}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.Base <= 0 {
		p.Base = DefaultRetryPolicy.Base
	}
	return p
}

func (p RetryPolicy) backoff() retry.Backoff {
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), retry.WithJitterPercent(20, retry.NewExponential(p.Base)))
}

// WithTx runs fn in a transaction, rolling back on error or panic.
// Conflicts replay fn from scratch, so fn must re-read everything it
// decides on. When attempts run out the caller gets STORE_CONFLICT.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	attempt := 0
	err := retry.Do(ctx, c.retry.backoff(), func(ctx context.Context) error {
		attempt++
		err := c.runTx(ctx, fn)
		if !IsRetryableConflict(err) {
			return err
		}
		if c.logg != nil {
			c.logg.Debug(c.logg.WithField(ctx, "tx_attempt", attempt), "transaction conflicted, replaying")
		}
		return retry.RetryableError(err)
	})
	if IsRetryableConflict(err) {
		return pkgerrors.Wrap(pkgerrors.CodeStoreConflict, err,
			fmt.Sprintf("transaction conflicted after %d attempts", attempt))
	}
	return err
}

func (c *Client) runTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := c.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
