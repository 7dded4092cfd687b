package ledger

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adlane/settlement/internal/domain"
	"github.com/google/uuid"
)

// cursor marks the keyset position after the last entry of a page. Pages are
// ordered by (created_at, id) descending; the next page starts strictly
// before this position.
type cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        uuid.UUID `json:"id"`
}

func encodeCursor(c cursor) string {
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func decodeCursor(token string) (cursor, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, fmt.Errorf("%w: malformed cursor: %v", domain.ErrValidation, err)
	}
	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return cursor{}, fmt.Errorf("%w: malformed cursor: %v", domain.ErrValidation, err)
	}
	if c.ID == uuid.Nil || c.CreatedAt.IsZero() {
		return cursor{}, fmt.Errorf("%w: incomplete cursor", domain.ErrValidation)
	}
	return c, nil
}
