package listener

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/callbackd/callbackd/pkg/config"
	"github.com/callbackd/callbackd/pkg/kv"
	"github.com/callbackd/callbackd/pkg/router"
	"github.com/callbackd/callbackd/pkg/serde"
)

// subscriptionMailboxCap bounds the registration mailbox.
const subscriptionMailboxCap = 256

type subscriptionMessage struct {
	sub   IncomingSubscription
	reply chan<- error
}

// SubscriptionListener handles registrations for one operation: persist
// the record, perform the router check handshake and optionally emit the
// initial update.
type SubscriptionListener struct {
	routerClient router.Client
	store        *SubscriptionStore
	listenerCfg  config.Listener
	logger       *slog.Logger

	mailbox chan subscriptionMessage
	ctx     context.Context
	now     func() time.Time
}

// NewSubscriptionListener builds the listener for one operation.
func NewSubscriptionListener(
	ctx context.Context,
	routerClient router.Client,
	kvFactory kv.Factory,
	listenerCfg config.Listener,
	logger *slog.Logger,
) (*SubscriptionListener, error) {
	store, err := NewSubscriptionStore(ctx, kvFactory, logger)
	if err != nil {
		return nil, err
	}
	return &SubscriptionListener{
		routerClient: routerClient,
		store:        store,
		listenerCfg:  listenerCfg,
		logger:       logger.With("operation", listenerCfg.Operation),
		mailbox:      make(chan subscriptionMessage, subscriptionMailboxCap),
		now:          time.Now,
	}, nil
}

// Start spawns the supervised registration loop.
func (l *SubscriptionListener) Start(ctx context.Context, wg *sync.WaitGroup) {
	l.ctx = ctx
	wg.Add(1)
	go func() {
		defer wg.Done()
		supervise(ctx, l.logger, "subscription_listener", l.run)
	}()
	l.logger.Info("subscription listener started")
}

// Register submits a registration and waits for its outcome.
func (l *SubscriptionListener) Register(ctx context.Context, sub IncomingSubscription) error {
	reply := make(chan error, 1)
	select {
	case l.mailbox <- subscriptionMessage{sub: sub, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return l.ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *SubscriptionListener) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-l.mailbox:
			record, err := l.handle(ctx, msg.sub)
			msg.reply <- err
			if err == nil && l.listenerCfg.PublishInitialUpdate {
				l.dispatchInitialUpdate(ctx, record)
			}
		}
	}
}

// handle persists the subscription and performs the check handshake. A
// failed handshake fails the registration; the record stays in the store
// and expires via TTL.
func (l *SubscriptionListener) handle(ctx context.Context, sub IncomingSubscription) (*SubscriptionRecord, error) {
	l.logger.Debug("subscription received", "id", sub.ID, "callback_url", sub.CallbackURL)

	idValue, ok := sub.Arguments[l.listenerCfg.IDKey]
	if !ok {
		return nil, fmt.Errorf("%w: expected argument %q", ErrInvalidIdentifier, l.listenerCfg.IDKey)
	}

	record := &SubscriptionRecord{
		ID:                  sub.ID,
		CreatedAt:           l.now().Unix(),
		Verifier:            sub.Verifier,
		HeartbeatIntervalMS: sub.HeartbeatIntervalMS,
		CallbackURL:         sub.CallbackURL,
		Operation:           sub.Operation,
		OperationIDValue:    idValue,
	}
	if err := l.store.Insert(ctx, record, l.listenerCfg.TTL()); err != nil {
		return nil, err
	}

	check := router.NewSubscription(sub.CallbackURL, sub.ID, sub.Verifier).Check()
	if _, err := l.routerClient.Send(ctx, check); err != nil {
		l.logger.Error("check request failed", "id", sub.ID, "error", err)
		return nil, fmt.Errorf("check request: %w", err)
	}
	l.logger.Debug("check request sent", "id", sub.ID)

	return record, nil
}

// dispatchInitialUpdate emits a first next carrying just the identifier.
func (l *SubscriptionListener) dispatchInitialUpdate(ctx context.Context, record *SubscriptionRecord) {
	data := serde.ValueMap{l.listenerCfg.IDKey: record.OperationIDValue}
	next := router.NewSubscription(record.CallbackURL, record.ID, record.Verifier).
		Next(l.listenerCfg.Operation, l.listenerCfg.EntityName, data)

	if _, err := l.routerClient.Send(ctx, next); err != nil {
		l.logger.Warn("initial update failed", "id", record.ID, "error", err)
	}
}
