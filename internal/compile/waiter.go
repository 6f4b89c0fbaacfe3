package compile

import (
	"context"
	"fmt"
	"math"
	"time"

	"unitymcp/internal/errors"
)

// maxTimeoutSeconds is the longest timeout a time.Duration can hold.
const maxTimeoutSeconds = math.MaxInt64 / int64(time.Second)

// WaitForComplete polls status snapshots until the editor is neither compiling
// nor updating, or until timeoutSeconds elapse. A nil timeout uses the
// configured default; zero and negative values are legal and expire on the
// first busy snapshot.
//
// A failed snapshot ends the wait with that failure. Expiry is reported as a
// Timeout error whose details carry {timeout: true}. Cancelling ctx abandons
// the wait with a Cancelled error.
func (m *Monitor) WaitForComplete(ctx context.Context, timeoutSeconds *int) (*WaitResult, error) {
	seconds := m.opts.DefaultTimeoutSeconds
	if timeoutSeconds != nil {
		seconds = *timeoutSeconds
	}

	start := m.now()
	deadline := start.Add(timeoutDuration(seconds))
	polls := 0

	timer := time.NewTimer(m.opts.PollInterval)
	timer.Stop()
	defer timer.Stop()

	for {
		status, err := m.Status(ctx)
		polls++
		if err != nil {
			return nil, err
		}

		now := m.now()
		if !status.Busy() {
			return &WaitResult{
				WaitTime:    now.Sub(start),
				Polls:       polls,
				FinalStatus: status,
			}, nil
		}

		if !now.Before(deadline) {
			elapsed := now.Sub(start)
			m.logger.Warn("Compilation wait timed out",
				"timeoutSeconds", seconds,
				"polls", polls,
				"status", string(status.Label()),
			)
			return nil, errors.New(errors.Timeout,
				fmt.Sprintf("Compilation timeout after %d seconds", seconds),
			).WithDetails(map[string]interface{}{
				"timeout":        true,
				"timeoutSeconds": seconds,
				"waitTime":       elapsed.Seconds(),
				"polls":          polls,
				"lastStatus":     status,
			})
		}

		m.logger.Debug("Compilation in progress, polling again",
			"status", string(status.Label()),
			"poll", polls,
		)

		timer.Reset(m.opts.PollInterval)
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(errors.Cancelled, "Compilation wait cancelled", ctx.Err())
		case <-timer.C:
		}
	}
}

// timeoutDuration converts seconds to a Duration, saturating instead of
// wrapping past the int64 range.
func timeoutDuration(seconds int) time.Duration {
	switch {
	case int64(seconds) > maxTimeoutSeconds:
		return time.Duration(math.MaxInt64)
	case int64(seconds) < -maxTimeoutSeconds:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(seconds) * time.Second
}
