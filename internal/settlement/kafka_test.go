package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/adlane/settlement/internal/domain"
	"github.com/adlane/settlement/internal/ledger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource hands out a fixed message sequence and records commits.
// Once drained, FetchMessage reports io.EOF.
type scriptedSource struct {
	messages  []kafka.Message
	committed []int64
}

func (s *scriptedSource) FetchMessage(context.Context) (kafka.Message, error) {
	if len(s.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := s.messages[0]
	s.messages = s.messages[1:]
	return msg, nil
}

func (s *scriptedSource) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		s.committed = append(s.committed, msg.Offset)
	}
	return nil
}

func (s *scriptedSource) Close() error { return nil }

// stubEscrow lets individual deposits fail with a configured error.
type stubEscrow struct {
	failWith error
	deposits int
}

func (s *stubEscrow) ConfirmDeposit(_ context.Context, _, _ int64, _ string, _ domain.Money, _ int, _ string) (ledger.TransferResult, error) {
	if s.failWith != nil {
		return ledger.TransferResult{}, s.failWith
	}
	s.deposits++
	return ledger.TransferResult{}, nil
}

type stubTransitioner struct {
	commands int
}

func (s *stubTransitioner) Transition(context.Context, TransitionCommand) error {
	s.commands++
	return nil
}

func message(t *testing.T, offset int64, env Envelope) kafka.Message {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: data}
}

func depositEnvelope(dealID int64) Envelope {
	return Envelope{
		Type:         TypeDepositConfirmed,
		DealID:       dealID,
		AdvertiserID: 1,
		DepositConfirmed: &DepositConfirmed{
			TxHash:     "tx",
			AmountNano: 100,
		},
	}
}

func TestRunCommitsHandledMessages(t *testing.T) {
	source := &scriptedSource{messages: []kafka.Message{
		message(t, 5, depositEnvelope(1)),
		message(t, 6, depositEnvelope(2)),
	}}
	escrow := &stubEscrow{}
	deals := &stubTransitioner{}
	consumer := &Consumer{reader: source, adapter: NewAdapter(escrow, deals, nil)}

	err := consumer.Run(context.Background())
	require.ErrorIs(t, err, io.EOF)

	assert.Equal(t, []int64{5, 6}, source.committed)
	assert.Equal(t, 2, escrow.deposits)
	assert.Equal(t, 2, deals.commands)
}

func TestRunStopsOnTransientFailureWithoutCommitting(t *testing.T) {
	source := &scriptedSource{messages: []kafka.Message{
		message(t, 5, depositEnvelope(1)),
		message(t, 6, depositEnvelope(2)),
	}}
	escrow := &stubEscrow{failWith: errors.New("database unreachable")}
	deals := &stubTransitioner{}
	consumer := &Consumer{reader: source, adapter: NewAdapter(escrow, deals, nil)}

	err := consumer.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 5")

	// Nothing committed and the later message untouched: a restart resumes
	// at offset 5 and redelivers the failed event.
	assert.Empty(t, source.committed)
	assert.Len(t, source.messages, 1)
	assert.Equal(t, 0, deals.commands)
}

func TestRunSkipsAndCommitsMalformedMessages(t *testing.T) {
	source := &scriptedSource{messages: []kafka.Message{
		{Offset: 5, Value: []byte("{not json")},
		message(t, 6, depositEnvelope(2)),
	}}
	escrow := &stubEscrow{}
	consumer := &Consumer{reader: source, adapter: NewAdapter(escrow, &stubTransitioner{}, nil)}

	err := consumer.Run(context.Background())
	require.ErrorIs(t, err, io.EOF)

	assert.Equal(t, []int64{5, 6}, source.committed)
	assert.Equal(t, 1, escrow.deposits)
}

func TestRunSkipsAndCommitsInvalidEnvelopes(t *testing.T) {
	// Well-formed JSON, invalid content: retrying can never fix it.
	source := &scriptedSource{messages: []kafka.Message{
		message(t, 5, Envelope{Type: "unknown", DealID: 1}),
		message(t, 6, depositEnvelope(2)),
	}}
	escrow := &stubEscrow{}
	consumer := &Consumer{reader: source, adapter: NewAdapter(escrow, &stubTransitioner{}, nil)}

	err := consumer.Run(context.Background())
	require.ErrorIs(t, err, io.EOF)

	assert.Equal(t, []int64{5, 6}, source.committed)
	assert.Equal(t, 1, escrow.deposits)
}
