package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"caseflow/internal/errs"
	"caseflow/internal/ports"
)

type PubSubOptions struct {
	ProjectID       string
	Topic           string
	CredentialsJSON string
}

type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

var _ ports.Publisher = (*PubSubPublisher)(nil)

func NewPubSubPublisher(ctx context.Context, opts PubSubOptions) (*PubSubPublisher, error) {
	if strings.TrimSpace(opts.ProjectID) == "" {
		return nil, errors.New("pubsub project is required")
	}
	if strings.TrimSpace(opts.Topic) == "" {
		return nil, errors.New("pubsub topic is required")
	}

	var clientOpts []option.ClientOption
	if creds := strings.TrimSpace(opts.CredentialsJSON); creds != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(creds)))
	}
	client, err := pubsub.NewClient(ctx, opts.ProjectID, clientOpts...)
	if err != nil {
		return nil, errs.Wrap(err, "create pubsub client")
	}

	topic := client.Topic(opts.Topic)
	// One ordering key per case: subscribers see a case's changes in commit order.
	topic.EnableMessageOrdering = true
	return &PubSubPublisher{client: client, topic: topic}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, change ports.CaseChanged) error {
	data, err := json.Marshal(change)
	if err != nil {
		return errs.Wrap(err, "marshal case change")
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: change.CaseID,
		Attributes: map[string]string{
			"event": string(change.Event),
			"to":    string(change.To),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		p.topic.ResumePublish(change.CaseID)
		return errs.Wrap(err, "publish pubsub")
	}
	return nil
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
