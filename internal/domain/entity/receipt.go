package entity

import (
	"context"
	"sync"
)

// Receipt is the pending result of a send. It resolves in two stages:
// accepted (Wait) and handed to the transport (Delivered). A direct send is
// accepted on hand-off; a buffered send is accepted when it enters the
// delivery queue and delivered once the queue drains.
//
// Delivered reports hand-off only. It is not a broker acknowledgment.
type Receipt struct {
	messageID string

	acceptOnce  sync.Once
	accepted    chan struct{}
	acceptErr   error
	deliverOnce sync.Once
	delivered   chan struct{}
	deliverErr  error
}

// NewReceipt creates an unresolved receipt for the given message.
func NewReceipt(messageID string) *Receipt {
	return &Receipt{
		messageID: messageID,
		accepted:  make(chan struct{}),
		delivered: make(chan struct{}),
	}
}

// RejectedReceipt returns a receipt that has already failed with err.
func RejectedReceipt(messageID string, err error) *Receipt {
	r := NewReceipt(messageID)
	r.Reject(err)
	return r
}

// MessageID returns the identifier the receipt is keyed by.
func (r *Receipt) MessageID() string {
	return r.messageID
}

// Accept resolves the first stage successfully.
func (r *Receipt) Accept() {
	r.acceptOnce.Do(func() { close(r.accepted) })
}

// Deliver marks the message as handed to the transport. It also accepts the
// receipt if that had not happened yet.
func (r *Receipt) Deliver() {
	r.Accept()
	r.deliverOnce.Do(func() { close(r.delivered) })
}

// Reject fails every stage that has not resolved yet.
func (r *Receipt) Reject(err error) {
	r.acceptOnce.Do(func() {
		r.acceptErr = err
		close(r.accepted)
	})
	r.deliverOnce.Do(func() {
		r.deliverErr = err
		close(r.delivered)
	})
}

// Wait blocks until the receipt is accepted or rejected and returns the
// message ID on success.
func (r *Receipt) Wait(ctx context.Context) (string, error) {
	select {
	case <-r.accepted:
		if r.acceptErr != nil {
			return "", r.acceptErr
		}
		return r.messageID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Delivered blocks until the message has been handed to the transport or
// terminally rejected.
func (r *Receipt) Delivered(ctx context.Context) error {
	select {
	case <-r.delivered:
		return r.deliverErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the receipt has been accepted or rejected.
func (r *Receipt) Done() <-chan struct{} {
	return r.accepted
}
