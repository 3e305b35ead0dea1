// services/mint.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lore-machine/clients"
	"lore-machine/config"
	"lore-machine/models"
	"lore-machine/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// MintService mints a completed story as a master NFT and fractionalizes it
// between its contributors.
type MintService struct {
	store     repository.Store
	addresses *AddressResolver
	minter    NFTMinter
	objects   ObjectStore
	cfg       *config.Config
	log       *zap.SugaredLogger
}

// NewMintService wires the service. minter and objects may be nil: token ids
// then come from a local sequence and metadata is served by URL only.
func NewMintService(store repository.Store, addresses *AddressResolver, minter NFTMinter, objects ObjectStore, cfg *config.Config, log *zap.SugaredLogger) *MintService {
	return &MintService{store: store, addresses: addresses, minter: minter, objects: objects, cfg: cfg, log: log}
}

type Fractionalization struct {
	Recipients  int   `json:"recipients"`
	TotalShares int64 `json:"totalShares"`
}

type MintResult struct {
	StoryID           string            `json:"storyId"`
	MasterTokenID     int64             `json:"masterTokenId"`
	MetadataURI       string            `json:"metadataUri"`
	TxHash            string            `json:"txHash,omitempty"`
	Fractionalization Fractionalization `json:"fractionalization"`
}

// StoryMetadata is the ERC-721 metadata document of a minted story.
type StoryMetadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ExternalURL string          `json:"external_url"`
	Attributes  []MetadataTrait `json:"attributes"`
	Lines       []MetadataLine  `json:"lines"`
	Shares      []MetadataShare `json:"shares"`
}

type MetadataTrait struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

type MetadataLine struct {
	Number    int    `json:"number"`
	Content   string `json:"content"`
	AuthorFID int64  `json:"authorFid"`
	Votes     int64  `json:"votes"`
}

type MetadataShare struct {
	FID         int64 `json:"fid"`
	ShareAmount int64 `json:"shareAmount"`
}

func storyName(story *models.Story) string {
	if story.Title != "" {
		return story.Title
	}
	return "Lore #" + story.ID[:8]
}

// BuildStoryMetadata assembles the metadata document from the approved lines.
func BuildStoryMetadata(story *models.Story, lines []models.StoryLine, fids map[string]int64, shares []ContributorShare, publicURL string) StoryMetadata {
	meta := StoryMetadata{
		Name:        storyName(story),
		Description: fmt.Sprintf("A story written one line at a time by %d contributors.", len(shares)),
		ExternalURL: fmt.Sprintf("%s/story/%s", publicURL, story.ID),
		Lines:       []MetadataLine{},
		Shares:      make([]MetadataShare, 0, len(shares)),
	}
	for _, l := range lines {
		if !l.IsApproved {
			continue
		}
		meta.Lines = append(meta.Lines, MetadataLine{
			Number:    l.LineNumber,
			Content:   l.Content,
			AuthorFID: fids[l.AuthorID],
			Votes:     l.VoteCount,
		})
	}
	for _, sh := range shares {
		meta.Shares = append(meta.Shares, MetadataShare{FID: sh.FID, ShareAmount: sh.ShareAmount})
	}
	meta.Attributes = []MetadataTrait{
		{TraitType: "Lines", Value: story.LineCount},
		{TraitType: "Canon Lines", Value: len(meta.Lines)},
		{TraitType: "Total Votes", Value: story.TotalVotes},
		{TraitType: "Contributors", Value: len(shares)},
	}
	return meta
}

// Mint runs the whole mint of a completed story. The story is reserved with a
// CAS first, so concurrent calls mint at most once.
func (s *MintService) Mint(ctx context.Context, storyID string) (result *MintResult, err error) {
	if !validID(storyID) {
		return nil, NotFound("story_not_found", "Story not found")
	}
	story, err := s.store.GetStory(ctx, storyID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NotFound("story_not_found", "Story not found")
	}
	if err != nil {
		return nil, err
	}
	if !story.IsComplete {
		return nil, Conflict("story_not_complete", "Story is not complete yet")
	}
	if story.MintStatus == models.MintStatusMinted || story.MintStatus == models.MintStatusPending {
		return nil, Conflict("already_minted", "Story already minted")
	}

	reserved, err := s.store.ReserveMint(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if !reserved {
		return nil, Conflict("already_minted", "Story already minted")
	}
	defer func() {
		if err == nil {
			return
		}
		if relErr := s.store.ReleaseMint(context.WithoutCancel(ctx), storyID); relErr != nil {
			s.log.Errorf("❌ [MINT] failed to release story %s after error: %v", storyID, relErr)
		}
	}()

	stats, err := s.store.ContributorStats(ctx, storyID)
	if err != nil {
		return nil, err
	}
	shares := CalculateShares(stats)
	fids := make([]int64, 0, len(shares))
	for _, sh := range shares {
		fids = append(fids, sh.FID)
	}
	resolved := s.addresses.ResolveMany(ctx, fids)
	for i := range shares {
		shares[i].Address = resolved[shares[i].FID]
	}

	// re-read under the reservation: a previous attempt may have minted the master
	story, err = s.store.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	var (
		tokenID     int64
		metadataURI string
	)
	if story.NFTTokenID != nil {
		tokenID, metadataURI = *story.NFTTokenID, story.MetadataURI
		s.log.Infof("🔁 [MINT] story %s resumes at share minting for master token %d", storyID, tokenID)
	} else {
		lines, err := s.store.ListLines(ctx, storyID)
		if err != nil {
			return nil, err
		}
		authorFIDs := make(map[string]int64, len(stats))
		for _, st := range stats {
			authorFIDs[st.UserID] = st.FID
		}
		metadataURI, err = s.publishMetadata(ctx, story, BuildStoryMetadata(story, lines, authorFIDs, shares, s.cfg.PublicURL))
		if err != nil {
			return nil, err
		}
		tokenID, err = s.mintMaster(ctx, story, metadataURI)
		if err != nil {
			return nil, err
		}
		if err := s.store.RecordMasterMint(ctx, storyID, tokenID, metadataURI); err != nil {
			return nil, fmt.Errorf("record master token %d: %w", tokenID, err)
		}
	}

	rows := make([]models.StoryShare, 0, len(shares))
	req := clients.ShareMintRequest{MasterTokenID: tokenID}
	var total int64
	for i, sh := range shares {
		if sh.Address == "" {
			s.log.Warnf("⚠️ [MINT] fid %d has no custody address, share of %d left unminted", sh.FID, sh.ShareAmount)
			continue
		}
		rows = append(rows, models.StoryShare{
			StoryID:     storyID,
			UserID:      sh.UserID,
			ShareAmount: sh.ShareAmount,
			TokenID:     int64(i + 1),
			Address:     sh.Address,
		})
		req.Recipients = append(req.Recipients, sh.Address)
		req.Amounts = append(req.Amounts, sh.ShareAmount)
		total += sh.ShareAmount
	}
	if err := s.store.ReplaceStoryShares(ctx, storyID, rows); err != nil {
		return nil, err
	}

	var txHash string
	if s.minter != nil && len(rows) > 0 {
		txHash, err = s.minter.BatchMintShares(ctx, req)
		if err != nil {
			return nil, Upstream("share_mint_failed", err)
		}
	}

	if err := s.store.CompleteMint(ctx, storyID, tokenID, metadataURI); err != nil {
		return nil, err
	}
	s.log.Infof("🪙 [MINT] story %s minted as token %d, %d share holders, %d shares", storyID, tokenID, len(rows), total)

	return &MintResult{
		StoryID:       storyID,
		MasterTokenID: tokenID,
		MetadataURI:   metadataURI,
		TxHash:        txHash,
		Fractionalization: Fractionalization{
			Recipients:  len(rows),
			TotalShares: total,
		},
	}, nil
}

func (s *MintService) publishMetadata(ctx context.Context, story *models.Story, meta StoryMetadata) (string, error) {
	if s.objects == nil {
		return fmt.Sprintf("%s/api/stories/%s/metadata", s.cfg.PublicURL, story.ID), nil
	}
	body, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	key := fmt.Sprintf("stories/%s-%s.json", slug.Make(storyName(story)), story.ID)
	uri, err := s.objects.PutObject(ctx, key, "application/json", body)
	if err != nil {
		return "", Upstream("metadata_upload_failed", err)
	}
	return uri, nil
}

func (s *MintService) mintMaster(ctx context.Context, story *models.Story, metadataURI string) (int64, error) {
	if s.minter == nil {
		return s.store.NextMasterTokenID(ctx)
	}
	tokenID, err := s.minter.MintStory(ctx, clients.MintStoryRequest{
		StoryID:     story.ID,
		Title:       storyName(story),
		MetadataURI: metadataURI,
	})
	if err != nil {
		return 0, Upstream("master_mint_failed", err)
	}
	return tokenID, nil
}

// MintNFT handles POST /nft/mint.
func (s *MintService) MintNFT(c *fiber.Ctx) error {
	var req struct {
		StoryID string `json:"storyId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if req.StoryID == "" {
		return writeError(c, s.log, Invalid("missing_story", "storyId is required"))
	}

	res, err := s.Mint(c.UserContext(), req.StoryID)
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(fiber.Map{
		"success":           true,
		"masterTokenId":     res.MasterTokenID,
		"metadataUri":       res.MetadataURI,
		"txHash":            res.TxHash,
		"fractionalization": res.Fractionalization,
	})
}
