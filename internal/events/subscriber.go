// Package events bridges producer-published notification events from
// the message bus into the connection registry. Producers (generation
// pipeline, build webhook processor) publish the serialized event to a
// per-user or broadcast subject and never wait for delivery.
package events

import (
	"context"
	"fmt"

	"github.com/skaisay/capycode-frontend-sub002/internal/logging"
	"github.com/skaisay/capycode-frontend-sub002/internal/messaging"
	"github.com/skaisay/capycode-frontend-sub002/internal/protocol"
	"github.com/skaisay/capycode-frontend-sub002/internal/registry"
)

// Subscriber forwards bus events to the registry's send contract.
type Subscriber struct {
	client   messaging.Subscriber
	registry *registry.Registry
	logger   *logging.Logger
	subs     []messaging.Subscription
}

// NewSubscriber creates a Subscriber over the given bus client.
func NewSubscriber(client messaging.Subscriber, reg *registry.Registry, logger *logging.Logger) *Subscriber {
	return &Subscriber{
		client:   client,
		registry: reg,
		logger:   logger,
	}
}

// Start subscribes to the per-user wildcard and the broadcast subject.
func (s *Subscriber) Start() error {
	userSub, err := s.client.Subscribe(messaging.SubjectUserWildcard, s.handleUserEvent)
	if err != nil {
		return fmt.Errorf("subscribe user events: %w", err)
	}
	s.subs = append(s.subs, userSub)

	broadcastSub, err := s.client.Subscribe(messaging.SubjectBroadcast, s.handleBroadcast)
	if err != nil {
		return fmt.Errorf("subscribe broadcast events: %w", err)
	}
	s.subs = append(s.subs, broadcastSub)

	s.logger.Info("subscribed to notification subjects",
		logging.Subject(messaging.SubjectUserWildcard))
	return nil
}

// Stop unsubscribes from all subjects.
func (s *Subscriber) Stop() error {
	var firstErr error
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.subs = nil
	return firstErr
}

func (s *Subscriber) handleUserEvent(ctx context.Context, msg *messaging.Message) error {
	userID := messaging.UserFromSubject(msg.Subject)
	if userID == "" {
		return fmt.Errorf("subject %q carries no user identity", msg.Subject)
	}

	event, err := protocol.ParseProducerEvent(msg.Data)
	if err != nil {
		s.logger.Warn("dropping malformed producer event",
			logging.Subject(msg.Subject), logging.Error(err))
		return err
	}

	s.registry.SendToUser(userID, event)
	return nil
}

func (s *Subscriber) handleBroadcast(ctx context.Context, msg *messaging.Message) error {
	event, err := protocol.ParseProducerEvent(msg.Data)
	if err != nil {
		s.logger.Warn("dropping malformed broadcast event", logging.Error(err))
		return err
	}

	s.registry.Broadcast(event)
	return nil
}
