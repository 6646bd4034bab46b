package faucet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewardSchedule(t *testing.T) {
	r := DefaultRewards()
	require.NoError(t, r.Validate())
	prev := uint64(0)
	for _, class := range CoreClasses {
		got := r.Reward(class)
		require.Equal(t, r.Base*(uint64(class)+1), got)
		require.Greater(t, got, prev)
		prev = got
	}
	require.Greater(t, r.Reward(ClassBubblegumBurn), r.Reward(Class4))
	require.EqualValues(t, 1_000_000_000, r.Reward(ClassBubblegumBurn))

	require.Error(t, Rewards{Base: 100, Bubblegum: 500}.Validate())
	require.NoError(t, Rewards{Base: 100, Bubblegum: 501}.Validate())
	require.Error(t, Rewards{Base: 0, Bubblegum: 1}.Validate())
	require.Error(t, Rewards{Base: ^uint64(0) / 2, Bubblegum: ^uint64(0)}.Validate())
}

func TestClassCapabilities(t *testing.T) {
	require.Equal(t, CapabilityNone, Class0.Capability())
	require.Equal(t, CapabilityAttributes, Class1.Capability())
	require.Equal(t, CapabilityEdition, Class2.Capability())
	require.Equal(t, CapabilityAppData, Class3.Capability())
	require.Equal(t, CapabilityLinkedAppData, Class4.Capability())
	require.Equal(t, CapabilityNone, ClassBubblegumBurn.Capability())
	require.Equal(t, "Challenge3", Class3.String())
	require.Equal(t, "BurnBubblegumV2Asset", ClassBubblegumBurn.String())
	require.False(t, ClaimClass(6).Valid())
}
