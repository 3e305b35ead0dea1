package clients

import (
	"context"
	"net/http"

	"lore-machine/config"
	"lore-machine/utils"
)

// MintRelay forwards mint calls to the signing relay that owns the story
// master (ERC-721) and shares (ERC-1155) contracts.
type MintRelay struct {
	URL    string
	Token  string
	Client *http.Client
}

type MintStoryRequest struct {
	StoryID     string `json:"storyId"`
	Title       string `json:"title"`
	MetadataURI string `json:"metadataUri"`
}

type ShareMintRequest struct {
	MasterTokenID int64    `json:"masterTokenId"`
	Recipients    []string `json:"recipients"`
	Amounts       []int64  `json:"amounts"`
}

// NewMintRelay returns nil when no relay is configured.
func NewMintRelay(cfg config.MintRelayConfig) *MintRelay {
	if cfg.URL == "" {
		return nil
	}
	return &MintRelay{URL: cfg.URL, Token: cfg.Token, Client: utils.HTTPClient}
}

func (m *MintRelay) headers() map[string]string {
	if m.Token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + m.Token}
}

// MintStory mints the master token and returns its id.
func (m *MintRelay) MintStory(ctx context.Context, req MintStoryRequest) (int64, error) {
	var out struct {
		TokenID int64 `json:"tokenId"`
	}
	if err := doJSON(ctx, m.Client, "mint-relay", http.MethodPost, m.URL+"/v1/stories/mint", m.headers(), req, &out); err != nil {
		return 0, err
	}
	return out.TokenID, nil
}

// BatchMintShares fractionalizes a master token and returns the transaction hash.
func (m *MintRelay) BatchMintShares(ctx context.Context, req ShareMintRequest) (string, error) {
	var out struct {
		TxHash string `json:"txHash"`
	}
	if err := doJSON(ctx, m.Client, "mint-relay", http.MethodPost, m.URL+"/v1/shares/batch-mint", m.headers(), req, &out); err != nil {
		return "", err
	}
	return out.TxHash, nil
}
