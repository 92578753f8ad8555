package pagination

import (
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"

	svcErr "github.com/oggyb/pupmatch/internal/errors"
)

// ErrInvalidToken is returned for tokens that were not produced by Encode.
var ErrInvalidToken = fmt.Errorf("%w: invalid pagination token", svcErr.ErrValidation)

// Cursor is the opaque pagination state we encode/decode.
// UpdatedUnix (in millis) plus a tie-breaker establish a stable cursor:
// ID for user-keyed lists, Ref for string-keyed ones such as matches.
type Cursor struct {
	ID          uint64 `json:"id,omitempty"`
	Ref         string `json:"ref,omitempty"`
	UpdatedUnix int64  `json:"updated_unix,omitempty"`
}

// IsZero reports whether c is the first-page cursor.
func (c Cursor) IsZero() bool {
	return c.ID == 0 && c.Ref == "" && c.UpdatedUnix == 0
}

// Encode converts a Cursor into a Base64 string.
func Encode(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Decode parses a Base64 string into a Cursor.
// Empty token → empty cursor (first page).
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

// Token dereferences an optional request token.
func Token(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
