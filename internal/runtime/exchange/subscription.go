package exchange

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
	"github.com/electsolve/outagewire/internal/runtime/logging"
)

// Subscription is one binding of a subscriber to a channel.
type Subscription struct {
	channel      *Channel
	subscriberID string
	queue        string
	subscriber   message.Subscriber
	out          <-chan *message.Message
	cancel       context.CancelFunc

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// SubscriberID returns the id the subscription was bound with.
func (s *Subscription) SubscriberID() string { return s.subscriberID }

// Queue returns the private queue name of the binding.
func (s *Subscription) Queue() string { return s.queue }

// Channel returns the name of the channel the subscription is bound to.
func (s *Subscription) Channel() string { return s.channel.name }

// Receive blocks until a message arrives, ctx is done or the subscription is
// closed. A closed subscription yields ErrSubscriptionClosed. If the
// transport drops the subscription on its own the error also matches
// ErrTransportUnavailable.
func (s *Subscription) Receive(ctx context.Context) (Delivery, error) {
	select {
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	case <-s.done:
		return Delivery{}, errspkg.ErrSubscriptionClosed
	case wmsg, ok := <-s.out:
		if !ok {
			select {
			case <-s.done:
				return Delivery{}, errspkg.ErrSubscriptionClosed
			default:
			}
			return Delivery{}, errspkg.NewTransportUnavailable("receive", s.channel.name, errspkg.ErrSubscriptionClosed)
		}
		msg, err := fromWatermill(wmsg)
		if err != nil {
			s.channel.exchange.logger.Error("Unreadable metadata kinds, reading values as text", err, logging.LogFields{
				"exchange":     s.channel.name,
				"subscriber":   s.subscriberID,
				"message_uuid": wmsg.UUID,
			})
		}
		return Delivery{Message: msg, raw: wmsg}, nil
	}
}

// Close releases the private queue and unblocks pending Receive calls. It is
// safe to call more than once.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		s.closeErr = s.subscriber.Close()
		s.channel.exchange.untrack(s)
		s.channel.exchange.logger.Debug("Closed subscription", logging.LogFields{
			"exchange":   s.channel.name,
			"subscriber": s.subscriberID,
			"queue":      s.queue,
		})
	})
	return s.closeErr
}

// Delivery is a received message awaiting acknowledgment.
type Delivery struct {
	Message Message
	raw     *message.Message
}

// Ack acknowledges the delivery to the transport. Acking twice is harmless.
// It reports false for a delivery that did not come from a subscription.
func (d Delivery) Ack() bool {
	if d.raw == nil {
		return false
	}
	return d.raw.Ack()
}
