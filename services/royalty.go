// services/royalty.go
package services

import (
	"context"
	"errors"

	"lore-machine/config"
	"lore-machine/models"
	"lore-machine/repository"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type RoyaltyService struct {
	store     repository.Store
	addresses *AddressResolver
	cfg       *config.Config
	log       *zap.SugaredLogger
}

func NewRoyaltyService(store repository.Store, addresses *AddressResolver, cfg *config.Config, log *zap.SugaredLogger) *RoyaltyService {
	return &RoyaltyService{store: store, addresses: addresses, cfg: cfg, log: log}
}

type RoyaltyReport struct {
	StoryID           string                     `json:"storyId"`
	SaleAmount        float64                    `json:"saleAmount"`
	RoyaltyAmount     float64                    `json:"royaltyAmount"`
	RoyaltyPercentage float64                    `json:"royaltyPercentage"`
	Distribution      []models.RoyaltyAllocation `json:"distribution"`
}

// DistributeRoyalty splits royaltyAmount pro rata over the holders' share amounts.
// Addresses are left for the caller to fill in.
func DistributeRoyalty(shares []models.StoryShare, royaltyAmount float64) []models.RoyaltyAllocation {
	var total int64
	for _, sh := range shares {
		total += sh.ShareAmount
	}
	out := make([]models.RoyaltyAllocation, 0, len(shares))
	if total == 0 {
		return out
	}
	for _, sh := range shares {
		ratio := float64(sh.ShareAmount) / float64(total)
		out = append(out, models.RoyaltyAllocation{
			UserID:        sh.UserID,
			ShareAmount:   sh.ShareAmount,
			RoyaltyAmount: ratio * royaltyAmount,
			Percentage:    ratio * 100,
		})
	}
	return out
}

// Distribute computes and records the payout of a secondary sale. Nothing is transferred.
func (s *RoyaltyService) Distribute(ctx context.Context, storyID string, saleAmount float64, pct *float64) (*RoyaltyReport, error) {
	if saleAmount <= 0 {
		return nil, Invalid("invalid_sale_amount", "saleAmount must be positive")
	}
	percentage := s.cfg.RoyaltyDefaultPercentage
	if pct != nil {
		percentage = *pct
	}
	if percentage < 0 || percentage > 100 {
		return nil, Invalid("invalid_percentage", "royaltyPercentage must be between 0 and 100")
	}
	if !validID(storyID) {
		return nil, NotFound("story_not_found", "story not found")
	}
	if _, err := s.store.GetStory(ctx, storyID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("story_not_found", "story not found")
		}
		return nil, err
	}

	shares, err := s.store.ListStoryShares(ctx, storyID)
	if err != nil {
		return nil, err
	}
	royaltyAmount := saleAmount * percentage / 100
	dist := DistributeRoyalty(shares, royaltyAmount)

	if len(dist) > 0 {
		ids := make([]string, 0, len(dist))
		for _, d := range dist {
			ids = append(ids, d.UserID)
		}
		users, err := s.store.GetUsers(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range dist {
			u, ok := users[dist[i].UserID]
			if !ok {
				continue
			}
			dist[i].FID = u.FID
			dist[i].Address = s.addresses.BestEffort(ctx, u.FID)
			if dist[i].Address == "" {
				s.log.Warnf("⚠️ [ROYALTY] no custody address for fid %d, allocation kept unaddressed", u.FID)
			}
		}
	}

	payment := &models.RoyaltyPayment{
		StoryID:           storyID,
		SaleAmount:        saleAmount,
		RoyaltyPercentage: percentage,
		RoyaltyAmount:     royaltyAmount,
		Distribution:      dist,
	}
	if err := s.store.CreateRoyaltyPayment(ctx, payment); err != nil {
		return nil, err
	}
	s.log.Infow("💸 [ROYALTY] royalty recorded",
		"story", storyID, "sale", saleAmount, "royalty", royaltyAmount, "holders", len(dist))

	return &RoyaltyReport{
		StoryID:           storyID,
		SaleAmount:        saleAmount,
		RoyaltyAmount:     royaltyAmount,
		RoyaltyPercentage: percentage,
		Distribution:      dist,
	}, nil
}

type RoyaltyHistory struct {
	TotalEarned float64              `json:"totalEarned"`
	Payments    []RoyaltyHistoryItem `json:"payments"`
}

type RoyaltyHistoryItem struct {
	PaymentID     string  `json:"paymentId"`
	StoryID       string  `json:"storyId"`
	SaleAmount    float64 `json:"saleAmount"`
	RoyaltyAmount float64 `json:"royaltyAmount"`
	Percentage    float64 `json:"percentage"`
}

// History sums the user's allocations over every recorded payment.
func (s *RoyaltyService) History(ctx context.Context, userID string) (*RoyaltyHistory, error) {
	payments, err := s.store.ListRoyaltyPaymentsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &RoyaltyHistory{Payments: []RoyaltyHistoryItem{}}
	for _, p := range payments {
		for _, a := range p.Distribution {
			if a.UserID != userID {
				continue
			}
			out.TotalEarned += a.RoyaltyAmount
			out.Payments = append(out.Payments, RoyaltyHistoryItem{
				PaymentID:     p.ID,
				StoryID:       p.StoryID,
				SaleAmount:    p.SaleAmount,
				RoyaltyAmount: a.RoyaltyAmount,
				Percentage:    a.Percentage,
			})
		}
	}
	return out, nil
}

// DistributeRoyalties handles POST /royalties/distribute.
func (s *RoyaltyService) DistributeRoyalties(c *fiber.Ctx) error {
	var req struct {
		StoryID           string   `json:"storyId"`
		SaleAmount        float64  `json:"saleAmount"`
		RoyaltyPercentage *float64 `json:"royaltyPercentage"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if req.StoryID == "" {
		return writeError(c, s.log, Invalid("missing_story", "storyId is required"))
	}

	report, err := s.Distribute(c.UserContext(), req.StoryID, req.SaleAmount, req.RoyaltyPercentage)
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(fiber.Map{
		"success":           true,
		"storyId":           report.StoryID,
		"saleAmount":        report.SaleAmount,
		"royaltyAmount":     report.RoyaltyAmount,
		"royaltyPercentage": report.RoyaltyPercentage,
		"distribution":      report.Distribution,
	})
}

// GetRoyaltyHistory handles GET /royalties/history.
func (s *RoyaltyService) GetRoyaltyHistory(c *fiber.Ctx) error {
	history, err := s.History(c.UserContext(), callerID(c))
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(history)
}
