package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankForXP(t *testing.T) {
	cases := []struct {
		xp   int
		want string
	}{
		{0, "Ashborn"},
		{99, "Ashborn"},
		{100, "Fog Runner"},
		{145, "Fog Runner"},
		{300, "Tin Sight"},
		{600, "Brass Deceiver"},
		{1000, "Steel Pusher"},
		{1600, "Iron Puller"},
		{2500, "Atium Shadow"},
		{4000, "Mistborn"},
		{6499, "Mistborn"},
		{6500, "Lord Mistborn"},
		{1_000_000, "Lord Mistborn"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RankForXP(tc.xp), "xp=%d", tc.xp)
	}
}

func TestRankTableIsSorted(t *testing.T) {
	for i := 1; i < len(rankTable); i++ {
		assert.Greater(t, rankTable[i].Threshold, rankTable[i-1].Threshold)
	}
}
