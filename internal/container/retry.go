// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// retryTransient runs op until it succeeds, fails with an error transient
// does not accept, or attempts runs out. The wait before retry n is
// backoff*2^(n-1). The last error is returned on exhaustion.
func retryTransient(ctx context.Context, attempts int, backoff time.Duration, transient func(error) bool, op func() error) error {
	var err error
	for n := range attempts {
		if n > 0 {
			wait := backoff << (n - 1)
			slog.Debug("retrying engine command", "attempt", n+1, "wait", wait, "error", err)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-timer.C:
			}
		}
		if err = op(); err == nil || !transient(err) {
			return err
		}
	}
	return err
}
