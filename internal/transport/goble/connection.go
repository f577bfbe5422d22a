package goble

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/buttond/internal/transport"
)

// Button GATT profile. One primary service with an authentication
// characteristic plus two readable metadata characteristics.
var (
	ButtonServiceUUID = ble.MustParse("F02ADFC0-26E7-11E4-9EDC-0002A5D5C51B")
	AuthCharUUID      = ble.MustParse("F02ADFC1-26E7-11E4-9EDC-0002A5D5C51B")
	NameCharUUID      = ble.MustParse("F02ADFC2-26E7-11E4-9EDC-0002A5D5C51B")
	FirmwareCharUUID  = ble.MustParse("F02ADFC3-26E7-11E4-9EDC-0002A5D5C51B")
)

type connection struct {
	client ble.Client
	logger *logrus.Logger

	mu      sync.Mutex
	onDrop  func()
	dropped bool
}

func newConnection(client ble.Client, logger *logrus.Logger) *connection {
	c := &connection{client: client, logger: logger}
	go func() {
		<-client.Disconnected()
		c.fireDrop()
	}()
	return c
}

// Handshake implements transport.Connection. It writes the application
// credentials to the authentication characteristic and reads back the
// descriptive metadata. A peripheral without the button service fails with
// ErrNotButton.
func (c *connection) Handshake(ctx context.Context, creds transport.Credentials) (*transport.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	profile, err := c.client.DiscoverProfile(true)
	if err != nil {
		return nil, fmt.Errorf("discover profile: %w", NormalizeError(err))
	}

	var svc *ble.Service
	for _, s := range profile.Services {
		if s.UUID.Equal(ButtonServiceUUID) {
			svc = s
			break
		}
	}
	if svc == nil {
		return nil, ErrNotButton
	}

	var authChar, nameChar, fwChar *ble.Characteristic
	for _, ch := range svc.Characteristics {
		switch {
		case ch.UUID.Equal(AuthCharUUID):
			authChar = ch
		case ch.UUID.Equal(NameCharUUID):
			nameChar = ch
		case ch.UUID.Equal(FirmwareCharUUID):
			fwChar = ch
		}
	}
	if authChar == nil {
		return nil, ErrNotButton
	}

	payload := make([]byte, 0, len(creds.AppID)+len(creds.AppSecret)+1)
	payload = append(payload, creds.AppID...)
	payload = append(payload, 0x00)
	payload = append(payload, creds.AppSecret...)
	if err := c.client.WriteCharacteristic(authChar, payload, false); err != nil {
		return nil, fmt.Errorf("handshake rejected: %w", NormalizeError(err))
	}

	md := &transport.Metadata{}
	if nameChar != nil {
		if v, err := c.client.ReadCharacteristic(nameChar); err == nil {
			md.Name = string(bytes.TrimRight(v, "\x00"))
		}
	}
	if fwChar != nil {
		if v, err := c.client.ReadCharacteristic(fwChar); err == nil {
			md.FirmwareVersion = string(bytes.TrimRight(v, "\x00"))
		}
	}

	c.logger.WithFields(logrus.Fields{
		"address":  c.client.Addr().String(),
		"name":     md.Name,
		"firmware": md.FirmwareVersion,
	}).Debug("Button handshake verified")
	return md, nil
}

// Disconnect implements transport.Connection.
func (c *connection) Disconnect() error {
	return c.client.CancelConnection()
}

// OnDisconnect implements transport.Connection. A link that already dropped
// fires the callback immediately, so registration racing the drop never
// loses the notification.
func (c *connection) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDrop = fn
	fireNow := c.dropped
	c.mu.Unlock()
	if fireNow {
		fn()
	}
}

// fireDrop delivers the drop exactly once: either here, or from OnDisconnect
// when the callback arrives after the link already went down.
func (c *connection) fireDrop() {
	c.mu.Lock()
	if c.dropped {
		c.mu.Unlock()
		return
	}
	c.dropped = true
	fn := c.onDrop
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
