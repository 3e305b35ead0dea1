package clients

import (
	"context"
	"fmt"
	"net/http"

	"lore-machine/utils"
)

// PaymasterClient checks whether gas sponsorship is available on a chain.
type PaymasterClient struct {
	URL    string
	Client *http.Client
}

func NewPaymasterClient(url string) *PaymasterClient {
	return &PaymasterClient{URL: url, Client: utils.HTTPClient}
}

// IsAvailable is false on any error; sponsorship is an optimisation, never a requirement.
func (p *PaymasterClient) IsAvailable(ctx context.Context, chainID int64) bool {
	if p.URL == "" {
		return false
	}
	err := doJSON(ctx, p.Client, "paymaster", http.MethodGet, fmt.Sprintf("%s/v1/status?chainId=%d", p.URL, chainID), nil, nil, nil)
	return err == nil
}
