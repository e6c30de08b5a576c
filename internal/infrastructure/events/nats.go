package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/nats-io/nats.go"

	"caseflow/internal/errs"
	"caseflow/internal/ports"
)

const DefaultSubject = "caseflow.case.changed"

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

var _ ports.Publisher = (*NATSPublisher)(nil)

func NewNATSPublisher(url string, subject string) (*NATSPublisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("nats url is required")
	}
	conn, err := nats.Connect(url, nats.Name("caseflow"))
	if err != nil {
		return nil, errs.Wrap(err, "connect nats")
	}
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Publish sends on <subject>.<to-status> so consumers can filter by status.
func (p *NATSPublisher) Publish(_ context.Context, change ports.CaseChanged) error {
	data, err := json.Marshal(change)
	if err != nil {
		return errs.Wrap(err, "marshal case change")
	}
	if err := p.conn.Publish(p.subject+"."+string(change.To), data); err != nil {
		return errs.Wrap(err, "publish nats")
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return errs.Wrap(err, "drain nats")
	}
	return nil
}
