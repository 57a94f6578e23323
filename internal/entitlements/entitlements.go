// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

// Package entitlements maps account tiers to their usage limits.
package entitlements

import "slices"

// Tier is an account tier.
type Tier string

const (
	// TierGuest is an anonymously signed-in user.
	TierGuest Tier = "guest"
	// TierRegular is a fully signed-in user.
	TierRegular Tier = "regular"
)

// Entitlements are the usage limits of a tier.
type Entitlements struct {
	// MaxMessagesPerDay is the number of messages a user may send in a
	// rolling 24-hour window.
	MaxMessagesPerDay int64

	// AvailableChatModels are the model IDs the tier may select.
	AvailableChatModels []string
}

var byTier = map[Tier]Entitlements{
	TierGuest: {
		MaxMessagesPerDay:   20,
		AvailableChatModels: []string{"chat-model", "chat-model-reasoning"},
	},
	TierRegular: {
		MaxMessagesPerDay:   100,
		AvailableChatModels: []string{"chat-model", "chat-model-reasoning"},
	},
}

// ForTier returns the entitlements of a tier. Unknown tiers get guest
// limits.
func ForTier(tier Tier) Entitlements {
	if e, ok := byTier[tier]; ok {
		return e
	}
	return byTier[TierGuest]
}

// CanUseModel reports whether a tier may select the given chat model.
func CanUseModel(tier Tier, model string) bool {
	return slices.Contains(ForTier(tier).AvailableChatModels, model)
}
