// clients/neynar.go
package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"lore-machine/config"
	"lore-machine/utils"
)

var ErrNoSigner = errors.New("neynar signer not configured")

// NeynarClient talks to the Neynar Farcaster API.
type NeynarClient struct {
	BaseURL    string
	APIKey     string
	SignerUUID string
	Client     *http.Client
}

type FarcasterUser struct {
	FID            int64    `json:"fid"`
	Username       string   `json:"username"`
	DisplayName    string   `json:"display_name"`
	PfpURL         string   `json:"pfp_url"`
	CustodyAddress string   `json:"custody_address"`
	Verifications  []string `json:"verifications"`
}

type Cast struct {
	Hash string `json:"hash"`
	Text string `json:"text"`
}

func NewNeynarClient(cfg config.NeynarConfig) *NeynarClient {
	return &NeynarClient{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		SignerUUID: cfg.SignerUUID,
		Client:     utils.HTTPClient,
	}
}

func (c *NeynarClient) headers() map[string]string {
	return map[string]string{"x-api-key": c.APIKey}
}

// FetchUser looks up a single fid. A fid Neynar does not know returns (nil, nil).
func (c *NeynarClient) FetchUser(ctx context.Context, fid int64) (*FarcasterUser, error) {
	u := fmt.Sprintf("%s/v2/farcaster/user/bulk?fids=%s", c.BaseURL, url.QueryEscape(strconv.FormatInt(fid, 10)))
	var out struct {
		Users []FarcasterUser `json:"users"`
	}
	if err := doJSON(ctx, c.Client, "neynar", http.MethodGet, u, c.headers(), nil, &out); err != nil {
		return nil, err
	}
	if len(out.Users) == 0 {
		return nil, nil
	}
	return &out.Users[0], nil
}

// CustodyAddress returns the fid's custody address, "" when it has none.
func (c *NeynarClient) CustodyAddress(ctx context.Context, fid int64) (string, error) {
	user, err := c.FetchUser(ctx, fid)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return user.CustodyAddress, nil
}

// PublishCast posts text (and optional embed urls) as the service signer.
func (c *NeynarClient) PublishCast(ctx context.Context, text string, embeds []string) (*Cast, error) {
	if c.SignerUUID == "" {
		return nil, ErrNoSigner
	}
	payload := map[string]any{
		"signer_uuid": c.SignerUUID,
		"text":        text,
	}
	if len(embeds) > 0 {
		list := make([]map[string]string, 0, len(embeds))
		for _, e := range embeds {
			list = append(list, map[string]string{"url": e})
		}
		payload["embeds"] = list
	}

	var out struct {
		Cast Cast `json:"cast"`
	}
	if err := doJSON(ctx, c.Client, "neynar", http.MethodPost, c.BaseURL+"/v2/farcaster/cast", c.headers(), payload, &out); err != nil {
		return nil, err
	}
	return &out.Cast, nil
}

// SendNotification pushes a mini-app notification to the given fids.
func (c *NeynarClient) SendNotification(ctx context.Context, fids []int64, title, body, targetURL string) error {
	payload := map[string]any{
		"target_fids": fids,
		"notification": map[string]string{
			"title":      title,
			"body":       body,
			"target_url": targetURL,
		},
	}
	return doJSON(ctx, c.Client, "neynar", http.MethodPost, c.BaseURL+"/v2/farcaster/frame/notifications", c.headers(), payload, nil)
}
