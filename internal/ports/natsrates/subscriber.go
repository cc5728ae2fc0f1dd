// Package natsrates keeps a RateBook current from rate updates published on NATS.
package natsrates

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"mesa/internal/domain/escrow"
)

// DefaultSubject carries rate updates when none is configured.
const DefaultSubject = "fx.rates"

var ErrInvalidUpdate = errors.New("invalid rate update")

// Logger is the subset of runtime.Logger the subscriber writes to.
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
}

// update is either a single pair or a full table.
type update struct {
	From  string                        `json:"from"`
	To    string                        `json:"to"`
	Rate  float64                       `json:"rate"`
	Rates map[string]map[string]float64 `json:"rates"`
}

type Subscriber struct {
	book   *escrow.RateBook
	logger Logger
	sub    *nats.Subscription
}

func NewSubscriber(book *escrow.RateBook, logger Logger) *Subscriber {
	return &Subscriber{book: book, logger: logger}
}

// Connect dials NATS with reconnects enabled for the lifetime of the process.
func Connect(url string, logger Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("mesa-rates"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(10*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("Disconnected from NATS: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS at %s", nc.ConnectedUrl())
		}),
	)
}

func (s *Subscriber) Subscribe(nc *nats.Conn, subject string) error {
	if subject == "" {
		subject = DefaultSubject
	}
	sub, err := nc.Subscribe(subject, s.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	s.sub = sub
	return nil
}

func (s *Subscriber) handle(msg *nats.Msg) {
	if err := s.Apply(msg.Data); err != nil {
		s.logger.Warn("Dropping rate update on %s: %v", msg.Subject, err)
	}
}

// Apply decodes one message and writes it to the book. A full table replaces
// the current one; a single pair is merged.
func (s *Subscriber) Apply(data []byte) error {
	var u update
	if err := json.Unmarshal(data, &u); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}

	if u.Rates != nil {
		table := escrow.RateTable{}
		for from, row := range u.Rates {
			for to, rate := range row {
				if rate <= 0 {
					return fmt.Errorf("%w: rate %s:%s must be positive", ErrInvalidUpdate, from, to)
				}
				table.Set(strings.ToUpper(from), strings.ToUpper(to), rate)
			}
		}
		s.book.Replace(table)
		return nil
	}

	from, to := strings.ToUpper(strings.TrimSpace(u.From)), strings.ToUpper(strings.TrimSpace(u.To))
	if from == "" || to == "" || from == to || u.Rate <= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidUpdate, string(data))
	}
	s.book.Update(from, to, u.Rate)
	return nil
}

func (s *Subscriber) Close() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}
