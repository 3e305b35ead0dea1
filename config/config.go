// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Reward modes for an approved line.
const (
	RewardTriggerAmount = "trigger_amount"
	RewardVoteCount     = "vote_count"
)

type Config struct {
	Port           string
	DatabaseURL    string
	GatewayToken   string
	AllowedOrigins []string
	LogLevel       string
	PublicURL      string

	Location *time.Location

	MaxLinesPerDay           int
	StoryLineCap             int
	VoteThreshold            int64
	RoyaltyDefaultPercentage float64
	ApprovalRewardMode       string

	Token     TokenConfig
	Neynar    NeynarConfig
	Paymaster PaymasterConfig
	MintRelay MintRelayConfig
	R2        R2Config
	Gemini    GeminiConfig
	Telegram  TelegramConfig

	OutboxInterval  time.Duration
	OutboxBatchSize int
	RitualsFile     string
}

// TokenConfig describes the LORE ERC-20 the claims are paid in.
type TokenConfig struct {
	Address  string
	ChainID  int64
	Name     string
	Symbol   string
	IsActive bool
}

// Configured reports whether claims can be generated at all.
func (t TokenConfig) Configured() bool {
	return t.IsActive && t.Address != ""
}

type NeynarConfig struct {
	APIKey     string
	BaseURL    string
	SignerUUID string
}

type PaymasterConfig struct {
	URL string
}

type MintRelayConfig struct {
	URL   string
	Token string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled is true when every credential needed for uploads is present.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:                     getEnv("PORT", "5200"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		GatewayToken:             os.Getenv("LORE_SERVICE_TOKEN"),
		AllowedOrigins:           splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		PublicURL:                strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:3000"), "/"),
		ApprovalRewardMode:       getEnv("APPROVAL_REWARD_MODE", RewardTriggerAmount),
		RitualsFile:              os.Getenv("RITUALS_FILE"),
		OutboxInterval:           10 * time.Second,
		OutboxBatchSize:          20,
		MaxLinesPerDay:           5,
		StoryLineCap:             100,
		VoteThreshold:            100,
		RoyaltyDefaultPercentage: 10,
	}

	var err error
	if cfg.MaxLinesPerDay, err = intEnv("MAX_LINES_PER_DAY_PER_FID", cfg.MaxLinesPerDay); err != nil {
		return nil, err
	}
	if cfg.StoryLineCap, err = intEnv("STORY_LINE_CAP", cfg.StoryLineCap); err != nil {
		return nil, err
	}
	threshold, err := intEnv("VOTE_THRESHOLD", int(cfg.VoteThreshold))
	if err != nil {
		return nil, err
	}
	cfg.VoteThreshold = int64(threshold)
	if cfg.OutboxBatchSize, err = intEnv("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize); err != nil {
		return nil, err
	}

	if v := os.Getenv("ROYALTY_DEFAULT_PERCENTAGE"); v != "" {
		pct, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("ROYALTY_DEFAULT_PERCENTAGE: %w", err)
		}
		cfg.RoyaltyDefaultPercentage = pct
	}
	if v := os.Getenv("OUTBOX_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("OUTBOX_INTERVAL: %w", err)
		}
		cfg.OutboxInterval = d
	}

	cfg.Location, err = time.LoadLocation(getEnv("LORE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("LORE_TIMEZONE: %w", err)
	}

	chainID, err := intEnv("LORE_TOKEN_CHAIN_ID", 84532)
	if err != nil {
		return nil, err
	}
	cfg.Token = TokenConfig{
		Address:  os.Getenv("LORE_TOKEN_ADDRESS"),
		ChainID:  int64(chainID),
		Name:     getEnv("LORE_TOKEN_NAME", "LORE"),
		Symbol:   getEnv("LORE_TOKEN_SYMBOL", "LORE"),
		IsActive: strings.EqualFold(os.Getenv("LORE_TOKEN_IS_ACTIVE"), "true"),
	}

	cfg.Neynar = NeynarConfig{
		APIKey:     os.Getenv("NEYNAR_API_KEY"),
		BaseURL:    strings.TrimRight(getEnv("NEYNAR_BASE_URL", "https://api.neynar.com"), "/"),
		SignerUUID: os.Getenv("NEYNAR_SIGNER_UUID"),
	}
	cfg.Paymaster = PaymasterConfig{URL: strings.TrimRight(os.Getenv("PAYMASTER_URL"), "/")}
	cfg.MintRelay = MintRelayConfig{
		URL:   strings.TrimRight(os.Getenv("MINT_RELAY_URL"), "/"),
		Token: os.Getenv("MINT_RELAY_TOKEN"),
	}

	cfg.R2 = R2Config{
		AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
		Bucket:          os.Getenv("R2_BUCKET_NAME"),
		CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
	}
	if cfg.R2.CDNBaseURL == "" && cfg.R2.AccountID != "" {
		cfg.R2.CDNBaseURL = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2.AccountID)
	}

	cfg.Gemini = GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
	}

	cfg.Telegram = TelegramConfig{BotToken: os.Getenv("TELEGRAM_BOT_TOKEN")}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxLinesPerDay < 1 {
		return fmt.Errorf("MAX_LINES_PER_DAY_PER_FID must be positive, got %d", c.MaxLinesPerDay)
	}
	if c.StoryLineCap < 1 {
		return fmt.Errorf("STORY_LINE_CAP must be positive, got %d", c.StoryLineCap)
	}
	if c.VoteThreshold < 1 {
		return fmt.Errorf("VOTE_THRESHOLD must be positive, got %d", c.VoteThreshold)
	}
	if c.RoyaltyDefaultPercentage < 0 || c.RoyaltyDefaultPercentage > 100 {
		return fmt.Errorf("ROYALTY_DEFAULT_PERCENTAGE must be within 0..100, got %v", c.RoyaltyDefaultPercentage)
	}
	switch c.ApprovalRewardMode {
	case RewardTriggerAmount, RewardVoteCount:
	default:
		return fmt.Errorf("APPROVAL_REWARD_MODE must be %q or %q, got %q", RewardTriggerAmount, RewardVoteCount, c.ApprovalRewardMode)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
