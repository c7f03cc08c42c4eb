package tier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/p-n-ai/sinifplanim/internal/ai"
	"github.com/p-n-ai/sinifplanim/internal/live"
)

// Topic is the live topic for a teacher's profile.
func Topic(userID string) string {
	return "tier:" + userID
}

// Gate reads and changes subscription state and meters AI credits.
// It satisfies ai.UsageGate.
type Gate struct {
	store Store
	pub   live.Publisher
	now   func() time.Time
}

var _ ai.UsageGate = (*Gate)(nil)

// NewGate creates a tier gate. A nil publisher disables live updates.
func NewGate(store Store, pub live.Publisher) *Gate {
	if pub == nil {
		pub = live.Nop{}
	}
	return &Gate{store: store, pub: pub, now: time.Now}
}

// Profile returns the teacher's profile.
func (g *Gate) Profile(ctx context.Context, userID string) (*Profile, error) {
	p, err := g.store.Get(ctx, userID)
	if err != nil {
		slog.Error("failed to load profile", "user_id", userID, "error", err)
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Usage returns used and available credits for the active tier.
func (g *Gate) Usage(ctx context.Context, userID string) (Usage, error) {
	p, err := g.Profile(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	return p.usage(), nil
}

// RequestUpgrade records a pending upgrade to target. The active tier does
// not change until Approve.
func (g *Gate) RequestUpgrade(ctx context.Context, userID string, target Tier) (*Profile, error) {
	if _, ok := planByKey(target); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, target)
	}
	p, err := g.store.Update(ctx, userID, func(p *Profile) error {
		return p.requestUpgrade(target)
	})
	if err != nil {
		return nil, g.fail("request upgrade", userID, err)
	}
	slog.Info("tier upgrade requested", "user_id", userID, "tier", target)
	live.Notify(ctx, g.pub, Topic(userID), "profile.updated", p)
	return p, nil
}

// Approve activates a pending upgrade after the payment was confirmed out of band.
func (g *Gate) Approve(ctx context.Context, userID string) (*Profile, error) {
	p, err := g.store.Update(ctx, userID, func(p *Profile) error {
		return p.approve(g.now().UTC())
	})
	if err != nil {
		return nil, g.fail("approve upgrade", userID, err)
	}
	slog.Info("tier upgrade approved", "user_id", userID, "tier", p.Tier)
	live.Notify(ctx, g.pub, Topic(userID), "profile.updated", p)
	return p, nil
}

// Allow fails with ai.ErrQuotaExceeded when the active tier's credits are used up.
func (g *Gate) Allow(ctx context.Context, userID string) error {
	p, err := g.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if p.AIUsageCount >= p.Limit() {
		return fmt.Errorf("%w: %d/%d", ai.ErrQuotaExceeded, p.AIUsageCount, p.Limit())
	}
	return nil
}

// Record consumes one credit.
func (g *Gate) Record(ctx context.Context, userID string) error {
	count, err := g.store.IncrementUsage(ctx, userID)
	if err != nil {
		slog.Error("failed to record ai usage", "user_id", userID, "error", err)
		return fmt.Errorf("record ai usage: %w", err)
	}
	live.Notify(ctx, g.pub, Topic(userID), "usage.updated", map[string]int{"aiUsageCount": count})
	return nil
}

func (g *Gate) fail(op, userID string, err error) error {
	if !IsUserError(err) {
		slog.Error("tier update failed", "op", op, "user_id", userID, "error", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsUserError reports errors caused by the request rather than storage.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidTier) ||
		errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrAlreadyPending) ||
		errors.Is(err, ErrNothingPending)
}
