// services/claims.go
package services

import (
	"context"
	"errors"
	"strings"

	"lore-machine/config"
	"lore-machine/models"
	"lore-machine/repository"
	"lore-machine/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ClaimService turns lore points into token claims and settles them.
type ClaimService struct {
	store     repository.Store
	addresses *AddressResolver
	paymaster Paymaster
	cfg       *config.Config
	log       *zap.SugaredLogger
	now       Clock
}

func NewClaimService(store repository.Store, addresses *AddressResolver, paymaster Paymaster, cfg *config.Config, log *zap.SugaredLogger, now Clock) *ClaimService {
	return &ClaimService{store: store, addresses: addresses, paymaster: paymaster, cfg: cfg, log: log, now: now}
}

type SyncSummary struct {
	Synced      int `json:"synced"`
	TotalClaims int `json:"totalClaims"`
}

type MerkleSnapshot struct {
	Root   string `json:"root"`
	Leaves int    `json:"leaves"`
}

type ClaimBatch struct {
	ChainID            int64    `json:"chainId"`
	TotalAmount        int64    `json:"totalAmount"`
	ClaimIDs           []string `json:"claimIds"`
	PaymasterAvailable bool     `json:"paymasterAvailable"`
	MerkleRoot         string   `json:"merkleRoot,omitempty"`
}

// SyncUser creates a claim for the user's points not yet covered by open claims.
// It returns the new claim, or nil when there was nothing to do.
func (s *ClaimService) SyncUser(ctx context.Context, userID string) (*models.Claim, error) {
	if !s.cfg.Token.Configured() {
		s.log.Debugf("🪙 [CLAIMS] token not active, skipping sync for %s", userID)
		return nil, nil
	}
	if !validID(userID) {
		return nil, NotFound("user_not_found", "user not found")
	}

	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("user_not_found", "user not found")
	}
	if err != nil {
		return nil, err
	}

	address, err := s.addresses.Resolve(ctx, user.FID)
	if err != nil {
		return nil, Upstream("custody_lookup_failed", err)
	}
	if address == "" {
		s.log.Infof("🪙 [CLAIMS] fid %d has no custody address, skipping", user.FID)
		return nil, nil
	}
	return s.syncWithAddress(ctx, userID, address)
}

func (s *ClaimService) syncWithAddress(ctx context.Context, userID, address string) (*models.Claim, error) {
	var created *models.Claim
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		open, err := tx.SumUnclaimed(ctx, userID)
		if err != nil {
			return err
		}
		pending := user.LorePoints - open
		if pending <= 0 {
			return nil
		}
		created = &models.Claim{UserID: userID, Amount: pending, Address: address}
		return tx.CreateClaim(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	if created != nil {
		s.log.Infof("🪙 [CLAIMS] claim %s for %d LORE created for user %s", created.ID, created.Amount, userID)
	}
	return created, nil
}

// SyncAll runs SyncUser for every user holding points. Address lookups run
// concurrently; users without an address are skipped.
func (s *ClaimService) SyncAll(ctx context.Context) (SyncSummary, error) {
	var summary SyncSummary
	if !s.cfg.Token.Configured() {
		return summary, nil
	}

	users, err := s.store.ListUsersWithPoints(ctx)
	if err != nil {
		return summary, err
	}
	fids := make([]int64, 0, len(users))
	for _, u := range users {
		fids = append(fids, u.FID)
	}
	addresses := s.addresses.ResolveMany(ctx, fids)

	for _, u := range users {
		address, ok := addresses[u.FID]
		if !ok {
			continue
		}
		claim, err := s.syncWithAddress(ctx, u.ID, address)
		if err != nil {
			return summary, err
		}
		s.log.Debugf("🪙 [CLAIMS] synced user %s", u.ID)
		summary.Synced++
		if claim != nil {
			summary.TotalClaims++
		}
	}
	s.log.Infof("🪙 [CLAIMS] batch sync done: %d users, %d new claims", summary.Synced, summary.TotalClaims)
	return summary, nil
}

// BuildMerkleTree commits every open addressed claim into a fresh tree and
// stamps the root and proof on each of them.
func (s *ClaimService) BuildMerkleTree(ctx context.Context) (MerkleSnapshot, error) {
	claims, err := s.store.ListUnclaimedWithAddress(ctx)
	if err != nil {
		return MerkleSnapshot{}, err
	}

	included := make([]models.Claim, 0, len(claims))
	leaves := make([][]byte, 0, len(claims))
	for _, c := range claims {
		leaf, err := utils.ClaimLeaf(c.Address, c.Amount)
		if err != nil {
			s.log.Warnf("⚠️ [MERKLE] skipping claim %s: %v", c.ID, err)
			continue
		}
		included = append(included, c)
		leaves = append(leaves, leaf)
	}
	if len(leaves) == 0 {
		return MerkleSnapshot{}, nil
	}

	tree := utils.NewMerkleTree(leaves)
	root := utils.HexEncode(tree.Root())
	for i, c := range included {
		proof := tree.Proof(i)
		hexProof := make([]string, len(proof))
		for j, p := range proof {
			hexProof[j] = utils.HexEncode(p)
		}
		if err := s.store.SetClaimProof(ctx, c.ID, root, hexProof); err != nil {
			return MerkleSnapshot{}, err
		}
	}
	s.log.Infof("🌳 [MERKLE] root %s over %d claims", root, len(leaves))
	return MerkleSnapshot{Root: root, Leaves: len(leaves)}, nil
}

// PrepareBatch bundles the caller's open claims for a sponsored on-chain claim.
func (s *ClaimService) PrepareBatch(ctx context.Context, userID string, claimIDs []string, chainID int64) (*ClaimBatch, error) {
	ids := make([]string, 0, len(claimIDs))
	for _, id := range claimIDs {
		if validID(id) {
			ids = append(ids, id)
		}
	}
	claims, err := s.store.GetClaims(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		return nil, Invalid("no_valid_claims", "No valid unclaimed rewards found")
	}
	if chainID == 0 {
		chainID = s.cfg.Token.ChainID
	}

	batch := &ClaimBatch{ChainID: chainID, ClaimIDs: make([]string, 0, len(claims))}
	for _, c := range claims {
		batch.TotalAmount += c.Amount
		batch.ClaimIDs = append(batch.ClaimIDs, c.ID)
		if batch.MerkleRoot == "" {
			batch.MerkleRoot = c.MerkleRoot
		}
	}
	batch.PaymasterAvailable = s.paymaster.IsAvailable(ctx, chainID)
	return batch, nil
}

// Settle records the on-chain payout of a claim and debits the user's points.
func (s *ClaimService) Settle(ctx context.Context, claimID, txHash string) (*models.Claim, error) {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return nil, Invalid("missing_tx_hash", "txHash is required")
	}
	if !validID(claimID) {
		return nil, NotFound("claim_not_found", "claim not found")
	}

	var settled *models.Claim
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		claim, err := tx.SettleClaim(ctx, claimID, txHash, s.now())
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NotFound("claim_not_found", "claim not found")
		case errors.Is(err, repository.ErrAlreadyApplied):
			return Conflict("already_claimed", "claim already settled")
		case err != nil:
			return err
		}
		if err := tx.AddLorePoints(ctx, claim.UserID, -claim.Amount); err != nil {
			return err
		}
		settled = claim
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("✅ [CLAIMS] claim %s settled in %s", claimID, txHash)
	return settled, nil
}

// ListClaims handles GET /claims.
func (s *ClaimService) ListClaims(c *fiber.Ctx) error {
	unclaimedOnly := c.QueryBool("unclaimed", false)
	claims, err := s.store.ListClaims(c.UserContext(), callerID(c), unclaimedOnly)
	if err != nil {
		return writeError(c, s.log, err)
	}
	var pending int64
	for _, cl := range claims {
		if !cl.IsClaimed {
			pending += cl.Amount
		}
	}
	return c.JSON(fiber.Map{"claims": claims, "pendingAmount": pending})
}

// SyncMyClaims handles POST /claims/sync.
func (s *ClaimService) SyncMyClaims(c *fiber.Ctx) error {
	claim, err := s.SyncUser(c.UserContext(), callerID(c))
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"claim": claim})
}

// BatchClaim handles POST /claim/batch.
func (s *ClaimService) BatchClaim(c *fiber.Ctx) error {
	var req struct {
		Claims []struct {
			ID string `json:"id"`
		} `json:"claims"`
		ChainID int64 `json:"chainId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if len(req.Claims) == 0 {
		return writeError(c, s.log, Invalid("missing_claims", "Claims array required"))
	}
	ids := make([]string, 0, len(req.Claims))
	for _, cl := range req.Claims {
		ids = append(ids, cl.ID)
	}

	batch, err := s.PrepareBatch(c.UserContext(), callerID(c), ids, req.ChainID)
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(fiber.Map{
		"batch":   batch,
		"message": "Batch claim prepared. Execute it with paymaster sponsorship.",
	})
}

// SettleClaim handles POST /admin/claims/:id/settle.
func (s *ClaimService) SettleClaim(c *fiber.Ctx) error {
	var req struct {
		TxHash string `json:"txHash"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	claim, err := s.Settle(c.UserContext(), c.Params("id"), req.TxHash)
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"claim": claim})
}

// SyncAllClaims handles POST /admin/claims/sync-all.
func (s *ClaimService) SyncAllClaims(c *fiber.Ctx) error {
	summary, err := s.SyncAll(c.UserContext())
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(summary)
}

// RebuildMerkle handles POST /admin/claims/merkle.
func (s *ClaimService) RebuildMerkle(c *fiber.Ctx) error {
	snap, err := s.BuildMerkleTree(c.UserContext())
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(snap)
}
