package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig sets the minimum wall time of a padded operation
type TimingConfig struct {
	MinDuration time.Duration
	Jitter      time.Duration
}

// TimingDelay pads an operation so that its duration does not reveal which
// branch it took. Used by forgot-password, where an unknown email would
// otherwise return noticeably faster than a known one.
type TimingDelay struct {
	config TimingConfig
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
	}
}

// cryptoRandIntn returns a random number in [0, max) from crypto/rand
func cryptoRandIntn(max int64) (int64, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	return int64(binary.BigEndian.Uint64(randomBytes) % uint64(max)), nil
}

func (td *TimingDelay) target() time.Duration {
	target := td.config.MinDuration
	if td.config.Jitter > 0 {
		if extra, err := cryptoRandIntn(int64(td.config.Jitter)); err == nil {
			target += time.Duration(extra)
		}
	}
	return target
}

// WaitFrom sleeps until at least the configured duration has passed since
// start, or until ctx is done. A nil TimingDelay does not wait.
func (td *TimingDelay) WaitFrom(ctx context.Context, start time.Time) {
	if td == nil {
		return
	}

	remaining := td.target() - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
