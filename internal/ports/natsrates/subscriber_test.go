package natsrates

import (
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesa/internal/domain/escrow"
)

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Info(format string, v ...interface{}) {}

func (l *recordingLogger) Warn(format string, v ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, v...))
}

func newBook() *escrow.RateBook {
	return escrow.NewRateBook(escrow.RateTable{"USD": {"COP": 4000}})
}

func TestApplySinglePairMerges(t *testing.T) {
	book := newBook()
	s := NewSubscriber(book, &recordingLogger{})

	require.NoError(t, s.Apply([]byte(`{"from":"usd","to":"eur","rate":0.9}`)))

	table := book.Snapshot()
	assert.Equal(t, 4000.0, table["USD"]["COP"])
	assert.Equal(t, 0.9, table["USD"]["EUR"])
}

func TestApplyFullTableReplaces(t *testing.T) {
	book := newBook()
	s := NewSubscriber(book, &recordingLogger{})

	require.NoError(t, s.Apply([]byte(`{"rates":{"eur":{"usd":1.1}}}`)))

	assert.Equal(t, escrow.RateTable{"EUR": {"USD": 1.1}}, book.Snapshot())
}

func TestApplyRejectsBadUpdates(t *testing.T) {
	tests := []string{
		`not json`,
		`{"from":"USD","to":"USD","rate":1}`,
		`{"from":"USD","to":"COP","rate":0}`,
		`{"from":"","to":"COP","rate":2}`,
		`{"rates":{"USD":{"COP":-1}}}`,
	}
	for _, raw := range tests {
		book := newBook()
		err := NewSubscriber(book, &recordingLogger{}).Apply([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidUpdate, raw)
		assert.Equal(t, escrow.RateTable{"USD": {"COP": 4000}}, book.Snapshot(), raw)
	}
}

func TestHandleLogsDroppedMessages(t *testing.T) {
	logger := &recordingLogger{}
	s := NewSubscriber(newBook(), logger)

	s.handle(&nats.Msg{Subject: DefaultSubject, Data: []byte(`{}`)})
	s.handle(&nats.Msg{Subject: DefaultSubject, Data: []byte(`{"from":"USD","to":"MXN","rate":17}`)})

	require.Len(t, logger.warnings, 1)
	assert.Contains(t, logger.warnings[0], DefaultSubject)
}

func TestCloseWithoutSubscription(t *testing.T) {
	assert.NoError(t, NewSubscriber(newBook(), &recordingLogger{}).Close())
}
