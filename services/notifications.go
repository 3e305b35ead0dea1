package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"lore-machine/clients"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MaxCastLength is Farcaster's cast text limit.
const MaxCastLength = 320

type NotificationService struct {
	social SocialProvider
	log    *zap.SugaredLogger
}

func NewNotificationService(social SocialProvider, log *zap.SugaredLogger) *NotificationService {
	return &NotificationService{social: social, log: log}
}

// Cast publishes text as the service signer.
func (s *NotificationService) Cast(ctx context.Context, text string, embeds []string) (*clients.Cast, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, Invalid("missing_text", "Text required")
	}
	if utf8.RuneCountInString(text) > MaxCastLength {
		return nil, Invalid("text_too_long", "cast text exceeds 320 characters")
	}
	cast, err := s.social.PublishCast(ctx, text, embeds)
	if errors.Is(err, clients.ErrNoSigner) {
		return nil, Unauthorized("missing signer configuration")
	}
	if err != nil {
		return nil, Upstream("cast_failed", err)
	}
	s.log.Infof("📣 [CAST] published %s", cast.Hash)
	return cast, nil
}

// PublishCast handles POST /notifications/cast.
func (s *NotificationService) PublishCast(c *fiber.Ctx) error {
	var req struct {
		Text   string   `json:"text"`
		Embeds []string `json:"embeds"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	cast, err := s.Cast(c.UserContext(), req.Text, req.Embeds)
	if err != nil {
		return writeError(c, s.log, err)
	}
	return c.JSON(fiber.Map{"success": true, "cast": cast})
}
