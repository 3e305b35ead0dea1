package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lore-machine/config"
	"lore-machine/models"
	"lore-machine/repository"

	"go.uber.org/zap"
)

type ClaimSyncPayload struct {
	UserID string `json:"userId"`
	LineID string `json:"lineId,omitempty"`
}

type StoryPayload struct {
	StoryID string `json:"storyId"`
}

type NotifyPayload struct {
	FIDs      []int64 `json:"fids"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	TargetURL string  `json:"targetUrl"`
}

// MaxAttemptsFor is the retry budget per effect kind.
func MaxAttemptsFor(kind models.EffectKind) int {
	if kind == models.EffectClaimSync {
		return 3
	}
	return 5
}

// enqueueEffect writes an outbox row inside the caller's transaction.
// A key that was already enqueued is silently ignored.
func enqueueEffect(ctx context.Context, tx repository.Store, kind models.EffectKind, key string, payload any, now time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	_, err = tx.EnqueueEffect(ctx, &models.OutboxEffect{
		Kind:           kind,
		IdempotencyKey: key,
		Payload:        raw,
		MaxAttempts:    MaxAttemptsFor(kind),
		NextAttemptAt:  now,
	})
	return err
}

// EffectRunner executes drained outbox effects by kind.
type EffectRunner struct {
	claims *ClaimService
	mint   *MintService
	social SocialProvider
	cfg    *config.Config
	log    *zap.SugaredLogger
}

func NewEffectRunner(claims *ClaimService, mint *MintService, social SocialProvider, cfg *config.Config, log *zap.SugaredLogger) *EffectRunner {
	return &EffectRunner{claims: claims, mint: mint, social: social, cfg: cfg, log: log}
}

func (r *EffectRunner) Run(ctx context.Context, effect models.OutboxEffect) error {
	switch effect.Kind {
	case models.EffectClaimSync:
		var p ClaimSyncPayload
		if err := json.Unmarshal(effect.Payload, &p); err != nil {
			return fmt.Errorf("decode claim_sync payload: %w", err)
		}
		_, err := r.claims.SyncUser(ctx, p.UserID)
		return err

	case models.EffectNFTMint:
		var p StoryPayload
		if err := json.Unmarshal(effect.Payload, &p); err != nil {
			return fmt.Errorf("decode nft_mint payload: %w", err)
		}
		_, err := r.mint.Mint(ctx, p.StoryID)
		if KindOf(err) == KindConflict {
			// already minted by hand or by a previous attempt
			r.log.Infow("🪙 [OUTBOX] mint already handled", "story", p.StoryID, "code", CodeOf(err))
			return nil
		}
		return err

	case models.EffectStoryAnnounce:
		var p StoryPayload
		if err := json.Unmarshal(effect.Payload, &p); err != nil {
			return fmt.Errorf("decode story_announce payload: %w", err)
		}
		storyURL := fmt.Sprintf("%s/story/%s", r.cfg.PublicURL, p.StoryID)
		text := fmt.Sprintf("📜 A story just reached %d lines and joined the Lore. Read it: %s", r.cfg.StoryLineCap, storyURL)
		cast, err := r.social.PublishCast(ctx, text, []string{storyURL})
		if err != nil {
			return err
		}
		r.log.Infow("📣 [OUTBOX] story announced", "story", p.StoryID, "cast", cast.Hash)
		return nil

	case models.EffectNotify:
		var p NotifyPayload
		if err := json.Unmarshal(effect.Payload, &p); err != nil {
			return fmt.Errorf("decode notify payload: %w", err)
		}
		return r.social.SendNotification(ctx, p.FIDs, p.Title, p.Body, p.TargetURL)

	default:
		return fmt.Errorf("unknown effect kind %q", effect.Kind)
	}
}
