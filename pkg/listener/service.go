package listener

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/callbackd/callbackd/pkg/config"
	"github.com/callbackd/callbackd/pkg/consumer"
	"github.com/callbackd/callbackd/pkg/kv"
	"github.com/callbackd/callbackd/pkg/router"
)

// Service is the root supervisor: one SubscriptionListener and one
// TopicListener per configured operation, plus the single ingress for
// registrations.
type Service struct {
	cfg             *config.Config
	routerClient    router.Client
	kvFactory       kv.Factory
	consumerFactory consumer.Factory
	logger          *slog.Logger

	subscriptionListeners map[string]*SubscriptionListener
	topicListeners        []*TopicListener

	subCancel   context.CancelFunc
	topicCancel context.CancelFunc
	subWg       sync.WaitGroup
	topicWg     sync.WaitGroup
	running     atomic.Bool
}

// NewService wires the supervisor. Start must be called before Register.
func NewService(
	cfg *config.Config,
	routerClient router.Client,
	kvFactory kv.Factory,
	consumerFactory consumer.Factory,
	logger *slog.Logger,
) *Service {
	return &Service{
		cfg:                   cfg,
		routerClient:          routerClient,
		kvFactory:             kvFactory,
		consumerFactory:       consumerFactory,
		logger:                logger,
		subscriptionListeners: make(map[string]*SubscriptionListener, len(cfg.Listeners)),
	}
}

// Start spawns both children for every configured operation.
func (s *Service) Start(ctx context.Context) error {
	subCtx, subCancel := context.WithCancel(ctx)
	topicCtx, topicCancel := context.WithCancel(ctx)
	s.subCancel = subCancel
	s.topicCancel = topicCancel

	for i := range s.cfg.Listeners {
		listenerCfg := s.cfg.Listeners[i]

		subscriptionListener, err := NewSubscriptionListener(
			subCtx, s.routerClient, s.kvFactory, listenerCfg, s.logger)
		if err != nil {
			s.stop(0)
			return fmt.Errorf("listener %s: %w", listenerCfg.Operation, err)
		}
		subscriptionListener.Start(subCtx, &s.subWg)
		s.subscriptionListeners[listenerCfg.Operation] = subscriptionListener

		topicListener, err := NewTopicListener(
			topicCtx, s.routerClient, s.kvFactory, s.consumerFactory, listenerCfg, s.logger)
		if err != nil {
			s.stop(0)
			return fmt.Errorf("listener %s: %w", listenerCfg.Operation, err)
		}
		if err := topicListener.Start(topicCtx, &s.topicWg); err != nil {
			s.stop(0)
			return fmt.Errorf("listener %s: %w", listenerCfg.Operation, err)
		}
		s.topicListeners = append(s.topicListeners, topicListener)
	}

	s.running.Store(true)
	s.logger.Info("listener service started", "operations", len(s.cfg.Listeners))
	return nil
}

// Register routes a registration to the operation's subscription
// listener.
func (s *Service) Register(ctx context.Context, sub IncomingSubscription) error {
	listener, ok := s.subscriptionListeners[sub.Operation]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, sub.Operation)
	}
	return listener.Register(ctx, sub)
}

// Healthy reports whether the fabric is running.
func (s *Service) Healthy() bool {
	return s.running.Load()
}

// Shutdown stops the fabric: first the subscription listeners drain, then
// the topic listeners stop their consumers and processors. Each phase is
// bounded by the grace period.
func (s *Service) Shutdown(grace time.Duration) {
	s.running.Store(false)
	s.stop(grace)
	s.logger.Info("listener service stopped")
}

func (s *Service) stop(grace time.Duration) {
	if s.subCancel != nil {
		s.subCancel()
		waitTimeout(&s.subWg, grace)
	}
	if s.topicCancel != nil {
		s.topicCancel()
		for _, topicListener := range s.topicListeners {
			topicListener.Stop()
		}
		waitTimeout(&s.topicWg, grace)
	}
}

// waitTimeout waits for the group up to the grace period; exceeding it
// abandons the stragglers. A non-positive grace waits without bound.
func waitTimeout(wg *sync.WaitGroup, grace time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if grace <= 0 {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(grace):
	}
}
