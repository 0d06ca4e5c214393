// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"context"
	"log/slog"
	"time"
)

// RetryTransient runs operation, retrying transient failures up to maxRetries
// times with exponential backoff (baseDelay doubles on each retry). Permanent
// failures return immediately without retry. The returned retry count is the
// number of retries actually performed; exhausted reports whether the final
// error was transient with the budget spent.
func RetryTransient(ctx context.Context, operation func() error, maxRetries int, baseDelay time.Duration) (retries int, exhausted bool, err error) {
	if maxRetries < 0 {
		return 0, false, ErrInvalidMaxRetries
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return attempt, false, ctx.Err()
		default:
		}

		err = operation()
		if err == nil {
			if attempt > 0 {
				slog.Debug("embedding call succeeded after retry", "attempt", attempt+1)
			}
			return attempt, false, nil
		}

		if !IsTransient(err) {
			slog.Debug("embedding call failed permanently", "attempt", attempt+1, "error", err)
			return attempt, false, err
		}

		if attempt == maxRetries {
			return attempt, true, err
		}

		slog.Debug("embedding call failed, will retry", "attempt", attempt+1, "maxRetries", maxRetries, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, false, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
