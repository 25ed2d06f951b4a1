package types

import (
	"fmt"

	"github.com/samber/lo"
)

// SubscriptionTier is the pricing plan a subscriber is billed on.
// Each tier carries a per-user monthly price supplied by configuration.
type SubscriptionTier string

const (
	SubscriptionTierSpark    SubscriptionTier = "spark"
	SubscriptionTierMomentum SubscriptionTier = "momentum"
	SubscriptionTierVision   SubscriptionTier = "vision"
	// SubscriptionTierBasecamp is the individual (non organisation) plan
	// billed directly to a single user.
	SubscriptionTierBasecamp SubscriptionTier = "basecamp"
)

func (t SubscriptionTier) String() string {
	return string(t)
}

func (t SubscriptionTier) Validate() error {
	allowed := []SubscriptionTier{
		SubscriptionTierSpark,
		SubscriptionTierMomentum,
		SubscriptionTierVision,
		SubscriptionTierBasecamp,
	}
	if !lo.Contains(allowed, t) {
		return fmt.Errorf("invalid subscription tier: %s", t)
	}
	return nil
}
