// Package tinygoble implements the button transport on top of
// tinygo.org/x/bluetooth, giving a cross-platform alternative to the go-ble
// backend. On macOS device addresses are CoreBluetooth UUIDs rather than MAC
// addresses; the transport treats both as opaque strings.
package tinygoble

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/srg/buttond/internal/transport"
)

// Button GATT profile, same layout as the go-ble backend.
const (
	buttonServiceUUID = "f02adfc0-26e7-11e4-9edc-0002a5d5c51b"
	authCharUUID      = "f02adfc1-26e7-11e4-9edc-0002a5d5c51b"
	nameCharUUID      = "f02adfc2-26e7-11e4-9edc-0002a5d5c51b"
	firmwareCharUUID  = "f02adfc3-26e7-11e4-9edc-0002a5d5c51b"
)

// Transport drives the default tinygo bluetooth adapter.
type Transport struct {
	adapter *bluetooth.Adapter
	logger  *logrus.Logger
	radio   chan transport.RadioState

	// mu protects the connection and address maps.
	mu    sync.Mutex
	conns map[string]*connection
	addrs map[string]bluetooth.Address
}

// New enables the default adapter and registers the adapter-level
// connect handler used to surface disconnect callbacks.
func New(logger *logrus.Logger) (*Transport, error) {
	if logger == nil {
		logger = logrus.New()
	}

	t := &Transport{
		adapter: bluetooth.DefaultAdapter,
		logger:  logger,
		radio:   make(chan transport.RadioState, 1),
		conns:   make(map[string]*connection),
		addrs:   make(map[string]bluetooth.Address),
	}
	if err := t.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable BLE adapter: %w", err)
	}

	t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		addr := device.Address.String()
		t.mu.Lock()
		conn := t.conns[addr]
		delete(t.conns, addr)
		t.mu.Unlock()
		if conn != nil {
			conn.fireDrop()
		}
	})

	// Enable succeeding implies a powered adapter; tinygo bluetooth exposes
	// no power transition stream beyond that.
	t.radio <- transport.RadioPoweredOn
	return t, nil
}

// RadioStates implements transport.Transport.
func (t *Transport) RadioStates() <-chan transport.RadioState {
	return t.radio
}

// Scan implements transport.Transport. It blocks until ctx is cancelled.
func (t *Transport) Scan(ctx context.Context, handler func(transport.Advertisement)) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = t.adapter.StopScan()
		case <-done:
		}
	}()

	err := t.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		addr := result.Address.String()
		t.mu.Lock()
		t.addrs[addr] = result.Address
		t.mu.Unlock()

		handler(transport.Advertisement{
			Addr: addr,
			Name: result.LocalName(),
			RSSI: int(result.RSSI),
		})
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("scan: %w", err)
	}
	return ctx.Err()
}

// Connect implements transport.Transport. tinygo's Connect blocks with its
// own internal timeout, so it runs on a goroutine and the result is dropped
// if ctx wins the race.
func (t *Transport) Connect(ctx context.Context, addr string) (transport.Connection, error) {
	t.mu.Lock()
	address, seen := t.addrs[addr]
	t.mu.Unlock()
	if !seen {
		// Not observed in a scan this process; parse the textual form.
		address.Set(addr)
	}

	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := t.adapter.Connect(address, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("connect to %s: %w", addr, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("connect to %s: %w", addr, result.err)
		}
		conn := &connection{device: result.device, logger: t.logger}
		t.mu.Lock()
		t.conns[addr] = conn
		t.mu.Unlock()
		return conn, nil
	}
}

type connection struct {
	device bluetooth.Device
	logger *logrus.Logger

	mu      sync.Mutex
	onDrop  func()
	dropped bool
}

// Handshake implements transport.Connection.
func (c *connection) Handshake(ctx context.Context, creds transport.Credentials) (*transport.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	svc, err := c.discoverService(buttonServiceUUID)
	if err != nil {
		return nil, err
	}

	authChar, err := discoverChar(svc, authCharUUID)
	if err != nil {
		return nil, fmt.Errorf("peripheral is not a button: %w", err)
	}

	payload := make([]byte, 0, len(creds.AppID)+len(creds.AppSecret)+1)
	payload = append(payload, creds.AppID...)
	payload = append(payload, 0x00)
	payload = append(payload, creds.AppSecret...)
	if _, err := authChar.WriteWithoutResponse(payload); err != nil {
		return nil, fmt.Errorf("handshake rejected: %w", err)
	}

	md := &transport.Metadata{}
	md.Name = readString(svc, nameCharUUID)
	md.FirmwareVersion = readString(svc, firmwareCharUUID)
	return md, nil
}

// Disconnect implements transport.Connection.
func (c *connection) Disconnect() error {
	return c.device.Disconnect()
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

func (c *connection) discoverService(uuid string) (bluetooth.DeviceService, error) {
	parsed, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return bluetooth.DeviceService{}, fmt.Errorf("parse service UUID: %w", err)
	}
	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{parsed})
	if err != nil {
		return bluetooth.DeviceService{}, fmt.Errorf("peripheral is not a button: %w", err)
	}
	if len(svcs) == 0 {
		return bluetooth.DeviceService{}, fmt.Errorf("peripheral is not a button: service %s not found", uuid)
	}
	return svcs[0], nil
}

func discoverChar(svc bluetooth.DeviceService, uuid string) (bluetooth.DeviceCharacteristic, error) {
	parsed, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("parse characteristic UUID: %w", err)
	}
	chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{parsed})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("discover characteristic %s: %w", uuid, err)
	}
	if len(chars) == 0 {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("characteristic %s not found", uuid)
	}
	return chars[0], nil
}

// readString reads an optional metadata characteristic; a button without it
// simply reports an empty value.
func readString(svc bluetooth.DeviceService, uuid string) string {
	char, err := discoverChar(svc, uuid)
	if err != nil {
		return ""
	}
	buf := make([]byte, 64)
	n, err := char.Read(buf)
	if err != nil {
		return ""
	}
	return string(bytes.TrimRight(buf[:n], "\x00"))
}
