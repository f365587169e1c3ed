package sink

import (
	"context"
	"fmt"

	"github.com/iconidentify/dispatcher/pkg/crypto"
)

// Sealed encrypts archives with a password before handing them to the
// wrapped sink. Sealed archives get the ".enc" suffix.
type Sealed struct {
	next     Sink
	password string
	params   crypto.Params
}

// NewSealed wraps next so every archive is sealed with password.
func NewSealed(next Sink, password string, params crypto.Params) *Sealed {
	return &Sealed{next: next, password: password, params: params}
}

// Location returns the wrapped sink's location.
func (s *Sealed) Location() string {
	return s.next.Location()
}

// Save seals data and forwards it.
func (s *Sealed) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := checkPayload(name, data); err != nil {
		return "", err
	}
	sealed, err := crypto.Seal(data, s.password, s.params)
	if err != nil {
		return "", fmt.Errorf("seal archive: %w", err)
	}
	return s.next.Save(ctx, name+crypto.SealedExtension, sealed)
}
