package ledger

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/adlane/settlement/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := cursor{CreatedAt: time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC), ID: uuid.New()}

	out, err := decodeCursor(encodeCursor(in))
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := decodeCursor("%%%not-base64%%%")
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Valid base64, not JSON.
	_, err = decodeCursor(base64.StdEncoding.EncodeToString([]byte("hello")))
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Valid JSON, missing fields.
	_, err = decodeCursor(base64.StdEncoding.EncodeToString([]byte("{}")))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
