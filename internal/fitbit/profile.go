package fitbit

import (
	"context"
	"fmt"
	"time"

	"github.com/rafaeljc/fitbit-ingest/internal/config"
)

// Profile holds the user profile fields the ingester needs.
type Profile struct {
	Timezone    string `json:"timezone"`
	DisplayName string `json:"displayName"`
}

// Profile fetches the user profile.
func (e *Executor) Profile(ctx context.Context, ep Endpoints) (Profile, error) {
	req := ep.Profile()
	payload, err := e.Execute(ctx, req)
	if err != nil {
		return Profile{}, err
	}

	var body struct {
		User Profile `json:"user"`
	}
	if err := payload.DecodeJSON(&body); err != nil {
		return Profile{}, NewParseError(req.Name, req.URL, err)
	}
	return body.User, nil
}

// ResolveLocation returns the configured location, or the profile's timezone
// when cfg asks for automatic detection.
func (e *Executor) ResolveLocation(ctx context.Context, ep Endpoints, cfg *config.APIConfig) (*time.Location, error) {
	if !cfg.AutoTimezone() {
		return time.LoadLocation(cfg.Timezone)
	}

	p, err := e.Profile(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile timezone: %w", err)
	}
	if p.Timezone == "" {
		return nil, NewParseError("profile", ep.Profile().URL, fmt.Errorf("profile has no timezone"))
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("profile timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}
