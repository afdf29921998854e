package dispatch

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"mailerbot/internal/platform"
	"mailerbot/internal/store"
	logx "mailerbot/pkg/logx"
)

// Platform content limits: captions attached to media are shorter than
// plain messages.
const (
	MaxCaptionLen = 1024
	MaxTextLen    = 4096
)

// RetryPolicy bounds delivery retries for a single group.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Delay <= 0 {
		p.Delay = 5 * time.Second
	}
	return p
}

// Sender delivers one campaign message to one group, applying the content
// chunking rules and the retry policy. The sleep function is injectable so
// tests run without real delays.
type Sender struct {
	policy  RetryPolicy
	limiter *rate.Limiter
	log     logx.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewSender(policy RetryPolicy, limiter *rate.Limiter, log logx.Logger) *Sender {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sender{
		policy:  policy.withDefaults(),
		limiter: limiter,
		log:     log,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SplitText cuts text into consecutive rune chunks of at most limit runes.
// Chunks are not trimmed or reflowed: joining them back reproduces the
// original text exactly.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxTextLen
	}
	rs := []rune(text)
	if len(rs) <= limit {
		return []string{text}
	}
	out := make([]string, 0, (len(rs)+limit-1)/limit)
	for start := 0; start < len(rs); start += limit {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}
		out = append(out, string(rs[start:end]))
	}
	return out
}

// Send delivers text (and optional media) to a single group, retrying up to
// the policy's attempt budget with a fixed delay between attempts. It
// reports success; a false return never aborts the rest of the campaign.
func (s *Sender) Send(ctx context.Context, client platform.Client, group platform.Group, text string, media *store.MediaRef) bool {
	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return false
			}
		}

		err := s.deliver(ctx, client, group.ID, text, media)
		if err == nil {
			s.log.Info("message delivered",
				logx.Int64("group", group.ID), logx.String("title", group.Title))
			return true
		}
		lastErr = err
		s.log.Warn("delivery attempt failed",
			logx.Int64("group", group.ID), logx.Int("attempt", attempt), logx.Err(err))

		if attempt < s.policy.MaxAttempts {
			if err := s.sleep(ctx, s.policy.Delay); err != nil {
				return false
			}
		}
	}
	s.log.Error("delivery failed, giving up",
		logx.Int64("group", group.ID), logx.Int("attempts", s.policy.MaxAttempts), logx.Err(lastErr))
	return false
}

// deliver performs one delivery attempt: the first chunk rides as the media
// caption (or the first plain message), the rest follow in original order.
func (s *Sender) deliver(ctx context.Context, client platform.Client, groupID int64, text string, media *store.MediaRef) error {
	if media != nil {
		caption := text
		var rest string
		if runeLen(text) > MaxCaptionLen {
			rs := []rune(text)
			caption = string(rs[:MaxCaptionLen])
			rest = string(rs[MaxCaptionLen:])
		}
		streaming := media.Kind == store.MediaVideo
		if err := client.SendFile(ctx, groupID, media.Path, caption, streaming); err != nil {
			return err
		}
		if rest == "" {
			return nil
		}
		for _, chunk := range SplitText(rest, MaxTextLen) {
			if err := client.SendMessage(ctx, groupID, chunk); err != nil {
				return err
			}
		}
		return nil
	}

	for _, chunk := range SplitText(text, MaxTextLen) {
		if err := client.SendMessage(ctx, groupID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func runeLen(s string) int { return len([]rune(s)) }
