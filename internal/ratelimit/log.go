package ratelimit

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// SanitizeIdentifier masks an email or phone number for logging.
func SanitizeIdentifier(identifier string) string {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if local, domain, ok := strings.Cut(identifier, "@"); ok {
		if len(local) > 2 {
			return local[:2] + "***@" + domain
		}
		return "***@" + domain
	}
	if len(identifier) >= 4 {
		return "***" + identifier[len(identifier)-4:]
	}
	return "***"
}

// LogRateLimitExceeded logs a rejected request with a masked identifier.
func LogRateLimitExceeded(ctx context.Context, limitType, identifier, ip string, result LimitResult) {
	event := log.Ctx(ctx).Warn().
		Str("event", "rate_limit_exceeded").
		Str("type", limitType).
		Str("ip", ip).
		Str("reason", result.Reason).
		Dur("retry_after", result.RetryAfter)
	if identifier != "" {
		event = event.Str("identifier", SanitizeIdentifier(identifier))
	}
	event.Msg("Rate limit exceeded")
}
