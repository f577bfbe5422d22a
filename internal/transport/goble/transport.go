// Package goble implements the button transport on top of go-ble.
package goble

import (
	"context"
	"errors"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/buttond/internal/transport"
)

// Transport drives the go-ble stack. One instance owns one ble.Device.
type Transport struct {
	dev    ble.Device
	logger *logrus.Logger
	radio  <-chan transport.RadioState
}

// Option configures a Transport.
type Option func(*Transport)

// WithRadioStates plugs an external radio state source, e.g. the BlueZ
// monitor on Linux. go-ble itself cannot observe adapter power transitions.
func WithRadioStates(states <-chan transport.RadioState) Option {
	return func(t *Transport) {
		t.radio = states
	}
}

// New creates the transport. Without an external radio source the state
// stream reports powered-on once, since device initialization only succeeds
// on a powered adapter.
func New(logger *logrus.Logger, opts ...Option) (*Transport, error) {
	if logger == nil {
		logger = logrus.New()
	}

	t := &Transport{logger: logger}
	for _, o := range opts {
		o(t)
	}

	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	t.dev = dev

	if t.radio == nil {
		ch := make(chan transport.RadioState, 1)
		ch <- transport.RadioPoweredOn
		t.radio = ch
	}
	return t, nil
}

// RadioStates implements transport.Transport.
func (t *Transport) RadioStates() <-chan transport.RadioState {
	return t.radio
}

// Scan implements transport.Transport. It blocks until ctx is cancelled.
func (t *Transport) Scan(ctx context.Context, handler func(transport.Advertisement)) error {
	err := t.dev.Scan(ctx, false, func(adv ble.Advertisement) {
		handler(transport.Advertisement{
			Addr: adv.Addr().String(),
			Name: adv.LocalName(),
			RSSI: adv.RSSI(),
		})
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return NormalizeError(err)
	}
	return err
}

// Connect implements transport.Transport.
func (t *Transport) Connect(ctx context.Context, addr string) (transport.Connection, error) {
	client, err := t.dev.Dial(ctx, ble.NewAddr(addr))
	if err != nil {
		return nil, NormalizeError(err)
	}
	t.logger.WithField("address", addr).Debug("Transport link established")
	return newConnection(client, t.logger), nil
}
