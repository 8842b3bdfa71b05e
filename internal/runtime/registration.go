package runtime

import (
	"context"
	"sort"
	"strings"
	"time"

	deliverypkg "github.com/electsolve/outagewire/internal/runtime/delivery"
	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
	exchangepkg "github.com/electsolve/outagewire/internal/runtime/exchange"
	loggingpkg "github.com/electsolve/outagewire/internal/runtime/logging"
)

// bindTimeout bounds how long RegisterSubscriber waits for the transport to
// start delivering to a new queue.
const bindTimeout = 30 * time.Second

// SubscriberRegistration wires a batch handler to the configured channel.
type SubscriberRegistration struct {
	// ID names the subscriber. It is part of the private queue name and
	// must be unique within the Service.
	ID      string
	Handler deliverypkg.Handler
	// Hooks run after the service-wide hooks.
	Hooks deliverypkg.Hooks
}

// RegisterSubscriber binds a private queue for reg.ID right away, so the
// subscriber receives every batch published from now on, and schedules its
// delivery loop for Start.
func RegisterSubscriber(svc *Service, reg SubscriberRegistration) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	return svc.RegisterSubscriber(reg)
}

// RegisterSubscriber is the method form of the package-level RegisterSubscriber.
func (s *Service) RegisterSubscriber(reg SubscriberRegistration) error {
	if strings.TrimSpace(reg.ID) == "" {
		return errspkg.ErrSubscriberIDRequired
	}
	if reg.Handler == nil {
		return errspkg.ErrHandlerRequired
	}

	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()

	if s.started {
		return errspkg.ErrServiceStarted
	}
	if _, ok := s.subscribers[reg.ID]; ok {
		return errspkg.ErrDuplicateSubscriberID
	}

	ctx, cancel := context.WithTimeout(context.Background(), bindTimeout)
	defer cancel()
	sub, err := s.channel.Bind(ctx, reg.ID)
	if err != nil {
		return err
	}

	stats := newSubscriberStats()
	exchange := s.channel.Name()
	hooks := deliverypkg.Hooks{
		OnReceived: func(dc deliverypkg.DeliveryContext) {
			stats.onReceived(dc.StartedAt)
			s.metrics.RecordDelivered(exchange, dc.Subscriber)
		},
		OnHandled: func(dc deliverypkg.DeliveryContext) {
			stats.onHandled(dc.Records, dc.Duration)
			s.metrics.RecordHandled(exchange, dc.Subscriber, dc.Duration.Seconds())
		},
		OnFailed: func(dc deliverypkg.DeliveryContext, err error) {
			stats.onFailed(err)
			s.metrics.RecordFailure(exchange, dc.Subscriber, err)
		},
	}

	s.subscribers[reg.ID] = &subscriberEntry{
		info: SubscriberInfo{
			ID:       reg.ID,
			Exchange: exchange,
			Queue:    sub.Queue(),
			Stats:    stats,
		},
		loop: &deliverypkg.Loop{
			Name:     reg.ID,
			Source:   sub,
			Codecs:   s.codecs,
			Fallback: s.codec,
			Handler:  reg.Handler,
			Logger:   s.Logger.With(loggingpkg.LogFields{"subscriber": reg.ID}),
			Hooks:    hooks.Merge(s.hooks).Merge(reg.Hooks),
		},
	}
	return nil
}

// Bind returns a raw subscription on the configured channel. The caller
// receives and acknowledges messages itself and must close the subscription.
func (s *Service) Bind(ctx context.Context, subscriberID string) (*exchangepkg.Subscription, error) {
	return s.channel.Bind(ctx, subscriberID)
}

// Subscribers lists the registered subscribers ordered by id.
func (s *Service) Subscribers() []SubscriberInfo {
	s.subscribersMu.RLock()
	defer s.subscribersMu.RUnlock()

	infos := make([]SubscriberInfo, 0, len(s.subscribers))
	for _, entry := range s.subscribers {
		infos = append(infos, entry.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
