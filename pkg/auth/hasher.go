package auth

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	PasswordBcryptCost = 12
	OTPBcryptCost      = 10
)

// HashPool bounds how many bcrypt operations run at once. Hashers created
// from the same pool share its slots.
type HashPool struct {
	slots *semaphore.Weighted
}

// NewHashPool creates a pool with the given number of slots. Values below 1
// default to GOMAXPROCS.
func NewHashPool(workers int) *HashPool {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &HashPool{slots: semaphore.NewWeighted(int64(workers))}
}

// Hasher hashes and verifies secrets at a fixed bcrypt cost.
type Hasher struct {
	pool *HashPool
	cost int
}

// Hasher returns a hasher bound to this pool. Out-of-range costs fall back
// to bcrypt.DefaultCost.
func (p *HashPool) Hasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{pool: p, cost: cost}
}

// Cost reports the bcrypt work factor used for new digests.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt digest of secret.
func (h *Hasher) Hash(ctx context.Context, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}

	if err := h.pool.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("failed to acquire hash slot: %w", err)
	}
	defer h.pool.slots.Release(1)

	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether secret matches digest. A mismatch or a malformed
// digest is reported as false; an error is returned only when ctx ends
// before a slot is available.
func (h *Hasher) Verify(ctx context.Context, secret, digest string) (bool, error) {
	if digest == "" {
		return false, nil
	}

	if err := h.pool.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("failed to acquire hash slot: %w", err)
	}
	defer h.pool.slots.Release(1)

	// Malformed or foreign digests never match.
	if err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)); err != nil {
		return false, nil
	}
	return true, nil
}
