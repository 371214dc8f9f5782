package listener

import (
	"context"
	"log/slog"
	"time"

	"github.com/callbackd/callbackd/pkg/config"
	"github.com/callbackd/callbackd/pkg/consumer"
	"github.com/callbackd/callbackd/pkg/kv"
	"github.com/callbackd/callbackd/pkg/router"
	"github.com/callbackd/callbackd/pkg/serde"
)

// processorMailboxCap bounds a processor's mailbox. A full mailbox
// back-pressures the topic listener and, through it, the bus.
const processorMailboxCap = 128

// dispatchSubscription is one unit of fan-out work: one subscription, one
// decoded message.
type dispatchSubscription struct {
	record  SubscriptionRecord
	idValue string
	data    serde.ValueMap
}

type processorMessage struct {
	raw      *consumer.Record
	dispatch *dispatchSubscription
}

// MessageProcessor handles all messages of one (operation, topic) pair:
// decode, extract the identifier, look up subscriptions and drive the
// next/complete callbacks.
type MessageProcessor struct {
	routerClient router.Client
	decoder      serde.Decoder
	store        *SubscriptionStore
	listenerCfg  config.Listener
	topicCfg     config.Topic
	logger       *slog.Logger

	mailbox chan processorMessage
	ctx     context.Context
}

// NewMessageProcessor builds the processor for one topic of a listener.
func NewMessageProcessor(
	ctx context.Context,
	routerClient router.Client,
	kvFactory kv.Factory,
	listenerCfg config.Listener,
	topicCfg config.Topic,
	logger *slog.Logger,
) (*MessageProcessor, error) {
	decoder, err := newDecoder(&topicCfg)
	if err != nil {
		return nil, err
	}
	store, err := NewSubscriptionStore(ctx, kvFactory, logger)
	if err != nil {
		return nil, err
	}
	return &MessageProcessor{
		routerClient: routerClient,
		decoder:      decoder,
		store:        store,
		listenerCfg:  listenerCfg,
		topicCfg:     topicCfg,
		logger: logger.With(
			"operation", listenerCfg.Operation,
			"topic", topicCfg.Name,
		),
		mailbox: make(chan processorMessage, processorMailboxCap),
	}, nil
}

// Enqueue hands a raw bus record to the processor, blocking while the
// mailbox is full.
func (p *MessageProcessor) Enqueue(ctx context.Context, record consumer.Record) error {
	select {
	case p.mailbox <- processorMessage{raw: &record}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// run drains the mailbox until ctx is cancelled. It returns early only on
// storage errors; the supervisor restarts it.
func (p *MessageProcessor) run(ctx context.Context) error {
	p.logger.Info("message processor started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-p.mailbox:
			if msg.raw != nil {
				if err := p.handleRecord(ctx, *msg.raw); err != nil {
					return err
				}
			}
			if msg.dispatch != nil {
				p.handleDispatch(ctx, msg.dispatch)
			}
		}
	}
}

// handleRecord decodes one raw record and fans it out to every matching
// subscription. Decode and identifier problems drop the message; a bad
// message must not stop the stream.
func (p *MessageProcessor) handleRecord(ctx context.Context, record consumer.Record) error {
	var data []byte
	switch p.topicCfg.DataSource {
	case config.SourceKey:
		data = record.Key
	default:
		data = record.Value
	}

	values, err := p.decoder.Decode(data)
	if err != nil {
		p.logger.Warn("dropping undecodable message", "error", err)
		return nil
	}

	idValue, ok := values.String(p.listenerCfg.IDKey)
	if !ok {
		p.logger.Warn("dropping message without identifier", "id_key", p.listenerCfg.IDKey)
		return nil
	}

	records, err := p.store.List(ctx, p.listenerCfg.Operation, idValue)
	if err != nil {
		// Storage errors crash the processor; the supervisor restarts it.
		return err
	}
	if len(records) == 0 {
		return nil
	}

	for _, sub := range records {
		dispatch := &dispatchSubscription{
			record:  sub,
			idValue: idValue,
			data:    values.Clone(),
		}
		if delay := p.topicCfg.Delay(); delay > 0 {
			p.scheduleDispatch(dispatch, delay)
		} else {
			p.handleDispatch(ctx, dispatch)
		}
	}
	return nil
}

// scheduleDispatch re-enters the mailbox after the topic's delay. The
// timer is detached so it never blocks message handling.
func (p *MessageProcessor) scheduleDispatch(dispatch *dispatchSubscription, delay time.Duration) {
	time.AfterFunc(delay, func() {
		select {
		case p.mailbox <- processorMessage{dispatch: dispatch}:
		case <-p.ctx.Done():
		}
	})
}

// handleDispatch drives one subscription's callbacks for one message.
// Dispatches are independent: a failure removes its own subscription and
// nothing else.
func (p *MessageProcessor) handleDispatch(ctx context.Context, dispatch *dispatchSubscription) {
	sub := dispatch.record
	next := router.NewSubscription(sub.CallbackURL, sub.ID, sub.Verifier).
		Next(p.listenerCfg.Operation, p.listenerCfg.EntityName, dispatch.data)

	if _, err := p.routerClient.Send(ctx, next); err != nil {
		p.logger.Warn("next callback failed, removing subscription",
			"id", sub.ID, "callback_url", sub.CallbackURL, "error", err)
		p.deleteRecord(ctx, &sub, dispatch.idValue)
		return
	}

	if p.topicCfg.TerminatesSubscriptions {
		complete := router.NewSubscription(sub.CallbackURL, sub.ID, sub.Verifier).Complete(nil)
		if _, err := p.routerClient.Send(ctx, complete); err != nil {
			p.logger.Debug("complete callback failed", "id", sub.ID, "error", err)
		}
		p.deleteRecord(ctx, &sub, dispatch.idValue)
	}
}

func (p *MessageProcessor) deleteRecord(ctx context.Context, sub *SubscriptionRecord, idValue string) {
	if err := p.store.Delete(ctx, p.listenerCfg.Operation, idValue, sub.ID); err != nil {
		p.logger.Error("failed to delete subscription record", "id", sub.ID, "error", err)
	}
}
