package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"lore-machine/repository"

	"github.com/gofiber/fiber/v2"
)

// ClaimStreamInterval is how often the stream polls for new claims.
var ClaimStreamInterval = 2 * time.Second

// StreamClaimsSSE streams the caller's new claims as they are created by sync.
func (s *ClaimService) StreamClaimsSSE(c *fiber.Ctx) error {
	userID := callerID(c)
	ctx := c.UserContext()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	cursor := repository.ClaimCursor{CreatedAt: s.now()}
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(ClaimStreamInterval)
		defer ticker.Stop()

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				claims, err := s.store.ListClaimsSince(ctx, userID, cursor)
				if err != nil {
					s.log.Warnf("⚠️ [SSE] claim query failed for %s: %v", userID, err)
					continue
				}
				if len(claims) == 0 {
					w.WriteString(": ping\n\n")
					if err := w.Flush(); err != nil {
						return
					}
					continue
				}

				last := claims[len(claims)-1]
				cursor = repository.ClaimCursor{CreatedAt: last.CreatedAt, ID: last.ID}
				for _, cl := range claims {
					payload, _ := json.Marshal(cl)
					fmt.Fprintf(w, "event: claim\ndata: %s\n\n", payload)
				}
				if err := w.Flush(); err != nil {
					// client went away
					return
				}

			case <-done:
				return
			}
		}
	})

	return nil
}
