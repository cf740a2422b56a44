// Package token manages the Fitbit OAuth credential: refreshing it with the
// refresh-token grant, keeping the current access token in memory, and
// persisting every new pair through a Store.
package token

import (
	"log/slog"
	"time"
)

// Credential is the OAuth token pair. The JSON form matches the token file
// written by earlier versions of the ingester.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	UserID       string    `json:"user_id,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// LogValue redacts both tokens.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("access_token", redact(c.AccessToken)),
		slog.String("refresh_token", redact(c.RefreshToken)),
		slog.String("user_id", c.UserID),
		slog.Time("expires_at", c.ExpiresAt),
	)
}

func redact(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}
