package openmotics

import (
	"github.com/joshp123/omhome/internal/config"
	"github.com/joshp123/omhome/internal/oauth"
	"github.com/joshp123/omhome/internal/rate"
)

const (
	Provider = "openmotics"

	defaultScope = "control view"
)

// OAuthDeclaration describes the cloud token contract.
func OAuthDeclaration(cfg config.CloudConfig) oauth.Declaration {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = config.DefaultCloudTokenURL
	}
	return oauth.Declaration{
		Provider: Provider,
		Flow:     oauth.FlowClientCredentials,
		TokenURL: tokenURL,
		Scope:    defaultScope,
	}
}

// RatePolicy is the request budget for the cloud API. The cloud reports its
// remaining budget per window and a Retry-After when throttling.
func RatePolicy(cfg config.RateConfig) rate.Policy {
	return rate.Policy{
		Name:      Provider,
		PerMinute: cfg.PerMinute,
		PerDay:    cfg.PerDay,
		RemainingHeaders: map[rate.Window]string{
			rate.Minute: "X-RateLimit-Remaining-Minute",
			rate.Day:    "X-RateLimit-Remaining-Day",
		},
		RetryAfterHeader: "Retry-After",
	}
}
