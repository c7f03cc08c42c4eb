// Package tier tracks each teacher's subscription plan and AI credit usage.
// Upgrades are requested as a pending tier and become active only after an
// administrator confirms the payment.
package tier

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("profile not found")
	ErrInvalidTier    = errors.New("invalid tier")
	ErrAlreadyActive  = errors.New("tier already active")
	ErrAlreadyPending = errors.New("tier upgrade already pending")
	ErrNothingPending = errors.New("no pending tier upgrade")
)

// Tier is a plan key, optionally prefixed with "pending-".
type Tier string

const (
	Free     Tier = "free"
	Standard Tier = "standard"
	Pro      Tier = "pro"

	pendingPrefix = "pending-"
)

// Pending returns the pending form of t.
func (t Tier) Pending() Tier {
	return Tier(pendingPrefix + string(t.Base()))
}

// IsPending reports whether t awaits approval.
func (t Tier) IsPending() bool {
	return strings.HasPrefix(string(t), pendingPrefix)
}

// Base strips the pending prefix.
func (t Tier) Base() Tier {
	return Tier(strings.TrimPrefix(string(t), pendingPrefix))
}

// ParseTier validates a plan key. Pending values are rejected.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if _, ok := planByKey(t); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
	return t, nil
}

// Plan is a purchasable subscription level.
type Plan struct {
	Key      Tier     `json:"key"`
	Name     string   `json:"name"`
	Credits  int      `json:"credits"`
	Price    string   `json:"price"`
	Features []string `json:"features"`
}

var plans = []Plan{
	{Key: Free, Name: "Temel", Credits: 10, Price: "Ücretsiz", Features: []string{"10 AI Kredisi/Yıl", "Temel Raporlama"}},
	{Key: Standard, Name: "Standart", Credits: 100, Price: "199,99 TL / Yıllık", Features: []string{"100 AI Kredisi/Yıl", "Gelişmiş Raporlama", "Öncelikli Destek"}},
	{Key: Pro, Name: "Pro", Credits: 500, Price: "399,99 TL / Yıllık", Features: []string{"500 AI Kredisi/Yıl", "Tüm Raporlama Özellikleri", "Özelleştirilebilir Planlar", "7/24 Destek"}},
}

// Plans returns the plan table in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

func planByKey(t Tier) (Plan, bool) {
	for _, p := range plans {
		if p.Key == t {
			return p, true
		}
	}
	return Plan{}, false
}

// Profile is a teacher's subscription state.
type Profile struct {
	UserID        string     `json:"userId"`
	Tier          Tier       `json:"tier"`
	AIUsageCount  int        `json:"aiUsageCount"`
	TierStartDate *time.Time `json:"tierStartDate,omitempty"`
}

// ActiveTier is the tier quotas are computed from: the stored tier unless it
// is pending, unknown or empty, in which case free.
func (p *Profile) ActiveTier() Tier {
	if p.Tier.IsPending() {
		return Free
	}
	if _, ok := planByKey(p.Tier); !ok {
		return Free
	}
	return p.Tier
}

// Limit is the credit allowance of the active tier.
func (p *Profile) Limit() int {
	plan, _ := planByKey(p.ActiveTier())
	return plan.Credits
}

// requestUpgrade marks target as pending without changing the active tier.
func (p *Profile) requestUpgrade(target Tier) error {
	if target == Free {
		return fmt.Errorf("%w: the free tier needs no upgrade", ErrInvalidTier)
	}
	if p.Tier == target {
		return ErrAlreadyActive
	}
	if p.Tier == target.Pending() {
		return ErrAlreadyPending
	}
	p.Tier = target.Pending()
	return nil
}

// approve activates the pending tier, starts its term and resets usage.
func (p *Profile) approve(now time.Time) error {
	if !p.Tier.IsPending() {
		return ErrNothingPending
	}
	p.Tier = p.Tier.Base()
	p.TierStartDate = &now
	p.AIUsageCount = 0
	return nil
}

// Usage summarises credit consumption for display.
type Usage struct {
	Tier     Tier   `json:"tier"`
	TierName string `json:"tierName"`
	Used     int    `json:"used"`
	Limit    int    `json:"limit"`
	Pending  Tier   `json:"pending,omitempty"`
}

func (p *Profile) usage() Usage {
	active := p.ActiveTier()
	plan, _ := planByKey(active)
	u := Usage{Tier: active, TierName: plan.Name, Used: p.AIUsageCount, Limit: plan.Credits}
	if p.Tier.IsPending() {
		u.Pending = p.Tier.Base()
	}
	return u
}
