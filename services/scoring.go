package services

import (
	"math/big"
	"sort"

	"lore-machine/repository"
)

// TotalShares is the share basis of a story: 10000 = 100%.
const TotalShares = 10000

type ContributorShare struct {
	UserID            string  `json:"userId"`
	FID               int64   `json:"fid"`
	Address           string  `json:"address,omitempty"`
	ContributionScore float64 `json:"contributionScore"`
	ShareAmount       int64   `json:"shareAmount"`
}

// scaledScore is 10 × (10·approvedLines + voteSum + 0.1·lorePoints), kept integral.
func scaledScore(s repository.ContributorStat) int64 {
	return 100*s.ApprovedLines + 10*s.VoteSum + s.LorePoints
}

// CalculateShares splits TotalShares between contributors by contribution
// score, flooring each share. Zero shares are dropped, so the sum may fall
// short of TotalShares but never exceeds it. Ordered by share desc, then user id.
func CalculateShares(stats []repository.ContributorStat) []ContributorShare {
	total := new(big.Int)
	for _, s := range stats {
		total.Add(total, big.NewInt(scaledScore(s)))
	}
	if total.Sign() <= 0 {
		return []ContributorShare{}
	}

	shares := make([]ContributorShare, 0, len(stats))
	basis := big.NewInt(TotalShares)
	for _, s := range stats {
		score := scaledScore(s)
		amount := new(big.Int).Mul(big.NewInt(score), basis)
		amount.Quo(amount, total)
		if amount.Sign() <= 0 {
			continue
		}
		shares = append(shares, ContributorShare{
			UserID:            s.UserID,
			FID:               s.FID,
			ContributionScore: float64(score) / 10,
			ShareAmount:       amount.Int64(),
		})
	}

	sort.Slice(shares, func(i, j int) bool {
		if shares[i].ShareAmount != shares[j].ShareAmount {
			return shares[i].ShareAmount > shares[j].ShareAmount
		}
		return shares[i].UserID < shares[j].UserID
	})
	return shares
}
