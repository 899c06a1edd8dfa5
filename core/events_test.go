package core

import (
	"testing"
	"time"
)

func TestPublishAsyncDeliversToMatchingSubscribersOnly(t *testing.T) {
	hub := NewEventHub(4)
	defer hub.Close()

	blockSub := hub.Subscribe(EventBlockInserted)
	defer blockSub.Unsubscribe()
	txSub := hub.Subscribe(EventTxExecuted)
	defer txSub.Unsubscribe()

	hub.PublishAsync(EventBlockInserted, "payload", "")

	select {
	case evt := <-blockSub.Chan():
		if evt.Kind != EventBlockInserted || evt.Data != "payload" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("expected blockSub to receive the event")
	}

	select {
	case evt := <-txSub.Chan():
		t.Fatalf("txSub should not have received a block event, got %+v", evt)
	default:
	}
}

func TestPublishAsyncNeverBlocksOnAFullSubscriber(t *testing.T) {
	hub := NewEventHub(1)
	defer hub.Close()
	sub := hub.Subscribe(EventChainHead)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.PublishAsync(EventChainHead, i, "")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishAsync blocked against a full subscriber buffer")
	}
}

func TestUnsubscribeClosesTheSubscriptionChannel(t *testing.T) {
	hub := NewEventHub(1)
	defer hub.Close()
	sub := hub.Subscribe(EventBlockInserted)
	sub.Unsubscribe()

	_, ok := <-sub.Chan()
	if ok {
		t.Fatal("expected the subscription channel to be closed after Unsubscribe")
	}

	hub.PublishAsync(EventBlockInserted, "ignored", "")
}

func TestSubscribeOnAClosedHubReturnsAnAlreadyClosedSubscription(t *testing.T) {
	hub := NewEventHub(1)
	hub.Close()

	sub := hub.Subscribe(EventBlockInserted)
	_, ok := <-sub.Chan()
	if ok {
		t.Fatal("expected a subscription from a closed hub to be pre-closed")
	}
}

func TestPublishAsyncFillsInACorrelationIDWhenNoneGiven(t *testing.T) {
	hub := NewEventHub(1)
	defer hub.Close()
	sub := hub.Subscribe(EventChainHead)
	defer sub.Unsubscribe()

	hub.PublishAsync(EventChainHead, nil, "")
	evt := <-sub.Chan()
	if evt.CorrelationID == "" {
		t.Fatal("expected a generated correlation id")
	}
}
