package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/domain/casework"
	"caseflow/internal/ports"
)

func TestBrokerDeliversToSubscribers(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	change := ports.CaseChanged{CaseID: "c1", Event: casework.EventAccept, From: casework.StatusAllocated, To: casework.StatusAccepted}
	require.NoError(t, b.Publish(context.Background(), change))

	select {
	case got := <-ch:
		assert.Equal(t, change, got)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.SubscriberCount())

	require.NoError(t, b.Publish(context.Background(), ports.CaseChanged{CaseID: "c1"}))
	select {
	case <-ch:
		t.Fatal("event delivered after unsubscribe")
	default:
	}

	b.Unsubscribe(make(chan ports.CaseChanged))
}

func TestBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < subscriberBuffer+10; i++ {
		require.NoError(t, b.Publish(context.Background(), ports.CaseChanged{CaseID: "c1"}))
	}
	assert.Len(t, ch, subscriberBuffer)
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, ports.CaseChanged) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	boom := errors.New("boom")
	err := Multi{failingPublisher{err: boom}, nil, b}.Publish(context.Background(), ports.CaseChanged{CaseID: "c1"})
	require.ErrorIs(t, err, boom)
	assert.Len(t, ch, 1)
}
