package listener

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/callbackd/callbackd/pkg/config"
	"github.com/callbackd/callbackd/pkg/consumer"
	"github.com/callbackd/callbackd/pkg/kv"
	"github.com/callbackd/callbackd/pkg/router"
)

// topicMailboxCap bounds the topic listener's mailbox between the
// consumer loop and the per-topic processors.
const topicMailboxCap = 512

// recvBackoffCap bounds the exponential backoff applied after consumer
// receive errors.
const recvBackoffCap = 30 * time.Second

// TopicListener owns one operation's consumer and routes its raw records
// to the processor of the matching topic.
type TopicListener struct {
	listenerCfg     config.Listener
	consumerFactory consumer.Factory
	processors      map[string]*MessageProcessor
	logger          *slog.Logger

	mailbox chan consumer.Record
	cons    consumer.Consumer
}

// NewTopicListener builds the listener and one MessageProcessor per
// configured topic.
func NewTopicListener(
	ctx context.Context,
	routerClient router.Client,
	kvFactory kv.Factory,
	consumerFactory consumer.Factory,
	listenerCfg config.Listener,
	logger *slog.Logger,
) (*TopicListener, error) {
	processors := make(map[string]*MessageProcessor, len(listenerCfg.Topics))
	for _, topic := range listenerCfg.Topics {
		processor, err := NewMessageProcessor(ctx, routerClient, kvFactory, listenerCfg, topic, logger)
		if err != nil {
			return nil, err
		}
		processors[topic.Name] = processor
	}

	return &TopicListener{
		listenerCfg:     listenerCfg,
		consumerFactory: consumerFactory,
		processors:      processors,
		logger:          logger.With("operation", listenerCfg.Operation),
		mailbox:         make(chan consumer.Record, topicMailboxCap),
	}, nil
}

// Start subscribes the operation's consumer and spawns the processor,
// routing and consume loops under supervision.
func (t *TopicListener) Start(ctx context.Context, wg *sync.WaitGroup) error {
	cons, err := t.consumerFactory.New(ctx, t.listenerCfg.Operation)
	if err != nil {
		return err
	}

	topics := make([]string, 0, len(t.listenerCfg.Topics))
	for _, topic := range t.listenerCfg.Topics {
		topics = append(topics, topic.Name)
	}
	if err := cons.Subscribe(ctx, topics); err != nil {
		return err
	}
	t.cons = cons

	for _, processor := range t.processors {
		processor.ctx = ctx
		wg.Add(1)
		go func(p *MessageProcessor) {
			defer wg.Done()
			supervise(ctx, t.logger, "message_processor", p.run)
		}(processor)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		supervise(ctx, t.logger, "topic_router", t.route)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		supervise(ctx, t.logger, "consumer_loop", t.consume)
	}()

	t.logger.Info("topic listener started", "topics", topics)
	return nil
}

// Stop releases the consumer connection. Call after cancelling the start
// context.
func (t *TopicListener) Stop() {
	if t.cons != nil {
		t.cons.Close()
	}
}

// route forwards each buffered record to the processor of its topic. The
// blocking enqueue propagates processor back-pressure to the mailbox and
// from there to the consumer loop.
func (t *TopicListener) route(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case record := <-t.mailbox:
			processor, ok := t.processors[record.Topic]
			if !ok {
				t.logger.Debug("no processor for topic", "topic", record.Topic)
				continue
			}
			if err := processor.Enqueue(ctx, record); err != nil {
				return nil
			}
		}
	}
}

// consume loops on the consumer, feeding the mailbox. Receive errors are
// retried with bounded exponential backoff; a successful receive resets
// it.
func (t *TopicListener) consume(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = recvBackoffCap
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		record, err := t.cons.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := bo.NextBackOff()
			t.logger.Error("message recv failed", "error", err, "retry_in", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		bo.Reset()

		select {
		case t.mailbox <- record:
		case <-ctx.Done():
			return nil
		}
	}
}
