package services

import (
	"context"
	"time"

	"lore-machine/clients"

	"github.com/google/uuid"
)

// Clock returns the current instant. Tests pin it.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }

// SocialProvider is the Farcaster side: identities, casts and notifications.
type SocialProvider interface {
	CustodyAddress(ctx context.Context, fid int64) (string, error)
	PublishCast(ctx context.Context, text string, embeds []string) (*clients.Cast, error)
	SendNotification(ctx context.Context, fids []int64, title, body, targetURL string) error
}

type Paymaster interface {
	IsAvailable(ctx context.Context, chainID int64) bool
}

type NFTMinter interface {
	MintStory(ctx context.Context, req clients.MintStoryRequest) (int64, error)
	BatchMintShares(ctx context.Context, req clients.ShareMintRequest) (string, error)
}

type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) (string, error)
}

type PromptWriter interface {
	WritePrompt(ctx context.Context, example string) (string, error)
}

// validID rejects ids that could never match a row, before they reach a uuid column.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}
