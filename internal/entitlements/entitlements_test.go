// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForTier(t *testing.T) {
	guest := ForTier(TierGuest)
	regular := ForTier(TierRegular)

	assert.Less(t, guest.MaxMessagesPerDay, regular.MaxMessagesPerDay)
	assert.NotEmpty(t, guest.AvailableChatModels)
	assert.NotEmpty(t, regular.AvailableChatModels)

	// Unknown tiers fall back to guest limits.
	assert.Equal(t, guest, ForTier(Tier("enterprise")))
}

func TestCanUseModel(t *testing.T) {
	assert.True(t, CanUseModel(TierRegular, "chat-model"))
	assert.True(t, CanUseModel(TierGuest, "chat-model-reasoning"))
	assert.False(t, CanUseModel(TierGuest, "no-such-model"))
}
