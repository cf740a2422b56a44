package token

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Load when nothing was persisted yet.
var ErrNotFound = errors.New("token: no stored credential")

// Store persists the credential. Save must replace the previous pair atomically:
// a reader sees either the old pair or the new one, never a mix.
type Store interface {
	Load(ctx context.Context) (Credential, error)
	Save(ctx context.Context, cred Credential) error
}
