package services

import (
	"fmt"
	"testing"

	"lore-machine/repository"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestCalculateSharesWorkedExample(t *testing.T) {
	stats := []repository.ContributorStat{
		// 10*2 + 150 + 0.1*100 = 180
		{UserID: "a", FID: 1, ApprovedLines: 2, VoteSum: 150, LorePoints: 100},
		// 10*1 + 100 + 0.1*5 = 110.5
		{UserID: "b", FID: 2, ApprovedLines: 1, VoteSum: 100, LorePoints: 5},
		// 10*1 + 0 + 0 = 10
		{UserID: "c", FID: 3, ApprovedLines: 1},
	}

	got := CalculateShares(stats)

	// total 300.5: floor(180/300.5*1e4)=5990, floor(110.5/300.5*1e4)=3677, floor(10/300.5*1e4)=332
	want := []ContributorShare{
		{UserID: "a", FID: 1, ContributionScore: 180, ShareAmount: 5990},
		{UserID: "b", FID: 2, ContributionScore: 110.5, ShareAmount: 3677},
		{UserID: "c", FID: 3, ContributionScore: 10, ShareAmount: 332},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("shares mismatch (-want +got):\n%s", diff)
	}
}

func TestCalculateSharesDropsZeroShares(t *testing.T) {
	stats := []repository.ContributorStat{
		{UserID: "whale", ApprovedLines: 1, VoteSum: 1_000_000},
		{UserID: "minnow", LorePoints: 1},
	}
	got := CalculateShares(stats)
	assert.Len(t, got, 1)
	assert.Equal(t, "whale", got[0].UserID)
	assert.Equal(t, int64(9999), got[0].ShareAmount)
}

func TestCalculateSharesZeroTotal(t *testing.T) {
	assert.Empty(t, CalculateShares(nil))
	assert.Empty(t, CalculateShares([]repository.ContributorStat{{UserID: "a"}}))
}

func TestCalculateSharesTieBreaksOnUserID(t *testing.T) {
	stats := []repository.ContributorStat{
		{UserID: "b", ApprovedLines: 1},
		{UserID: "a", ApprovedLines: 1},
	}
	got := CalculateShares(stats)
	assert.Equal(t, []string{"a", "b"}, []string{got[0].UserID, got[1].UserID})
	assert.Equal(t, int64(5000), got[0].ShareAmount)
}

func TestCalculateSharesNeverExceedBasis(t *testing.T) {
	for n := 1; n <= 40; n++ {
		stats := make([]repository.ContributorStat, n)
		for i := range stats {
			stats[i] = repository.ContributorStat{
				UserID:        fmt.Sprintf("u%02d", i),
				ApprovedLines: int64(i%3 + 1),
				VoteSum:       int64(i * 37 % 101),
				LorePoints:    int64(i * 13),
			}
		}
		var sum int64
		for _, s := range CalculateShares(stats) {
			assert.Positive(t, s.ShareAmount)
			sum += s.ShareAmount
		}
		assert.LessOrEqual(t, sum, int64(TotalShares), "n=%d", n)
		assert.Greater(t, sum, int64(TotalShares-n), "floors lose less than one share each, n=%d", n)
	}
}
