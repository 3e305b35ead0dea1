// services/stories.go
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

const (
	DefaultStoryPage = 10
	MaxStoryPage     = 100
)

type StoryService struct {
	store repository.Store
	cfg   *config.Config
	log   *zap.SugaredLogger
}

func NewStoryService(store repository.Store, cfg *config.Config, log *zap.SugaredLogger) *StoryService {
	return &StoryService{store: store, cfg: cfg, log: log}
}

type Contributor struct {
	FID      int64  `json:"fid"`
	Username string `json:"username"`
}

type StoryView struct {
	models.Story
	ContributorCount int           `json:"contributorCount"`
	Contributors     []Contributor `json:"contributors"`
}

// NewStoryView derives the contributor list from the story's loaded lines, in first-appearance order.
func NewStoryView(story models.Story) StoryView {
	view := StoryView{Story: story, Contributors: []Contributor{}}
	seen := make(map[int64]bool)
	for _, l := range story.Lines {
		if l.Author == nil || seen[l.Author.FID] {
			continue
		}
		seen[l.Author.FID] = true
		view.Contributors = append(view.Contributors, Contributor{FID: l.Author.FID, Username: l.Author.Username})
	}
	view.ContributorCount = len(view.Contributors)
	return view
}

func (s *StoryService) List(ctx context.Context, q repository.StoryQuery) ([]StoryView, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultStoryPage
	}
	if q.Limit > MaxStoryPage {
		q.Limit = MaxStoryPage
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	stories, err := s.store.ListStories(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]StoryView, 0, len(stories))
	for _, st := range stories {
		out = append(out, NewStoryView(st))
	}
	return out, nil
}

// Metadata rebuilds the metadata document of a minted story from its persisted shares.
func (s *StoryService) Metadata(ctx context.Context, storyID string) (*StoryMetadata, error) {
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
	if story.MintStatus != models.MintStatusMinted {
		return nil, NotFound("story_not_minted", "Story is not minted")
	}

	lines, err := s.store.ListLines(ctx, storyID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.ContributorStats(ctx, storyID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListStoryShares(ctx, storyID)
	if err != nil {
		return nil, err
	}

	fids := make(map[string]int64, len(stats))
	for _, st := range stats {
		fids[st.UserID] = st.FID
	}
	shares := make([]ContributorShare, 0, len(rows))
	for _, r := range rows {
		shares = append(shares, ContributorShare{UserID: r.UserID, FID: fids[r.UserID], Address: r.Address, ShareAmount: r.ShareAmount})
	}
	meta := BuildStoryMetadata(story, lines, fids, shares, s.cfg.PublicURL)
	return &meta, nil
}

// ListStories handles GET /stories.
func (s *StoryService) ListStories(c *fiber.Ctx) error {
	stories, err := s.List(c.UserContext(), repository.StoryQuery{
		Limit:           c.QueryInt("limit", DefaultStoryPage),
		Offset:          c.QueryInt("offset", 0),
		IncludeComplete: c.QueryBool("includeComplete", false),
	})
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"stories": stories})
}

// GetStoryMetadata handles GET /stories/:id/metadata.
func (s *StoryService) GetStoryMetadata(c *fiber.Ctx) error {
	meta, err := s.Metadata(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(meta)
}
