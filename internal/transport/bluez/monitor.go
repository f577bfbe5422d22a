// Package bluez watches the BlueZ adapter power state over the system D-Bus
// and exposes it as a radio state stream. go-ble drives the HCI socket
// directly and cannot observe power transitions; BlueZ can.
package bluez

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/srg/buttond/internal/transport"
)

const (
	busName      = "org.bluez"
	adapterPath  = "/org/bluez/hci0"
	adapterIface = "org.bluez.Adapter1"
	propsIface   = "org.freedesktop.DBus.Properties"
)

// Monitor emits the current adapter state first, then every observed
// transition. Use its States stream as the radio source of a transport.
type Monitor struct {
	conn   *dbus.Conn
	logger *logrus.Logger
	states chan transport.RadioState

	done      chan struct{}
	closeOnce sync.Once
}

// NewMonitor connects to the system bus and starts watching
// org.bluez.Adapter1 property changes. A host without BlueZ on the bus
// reports RadioUnsupported and stays there.
func NewMonitor(logger *logrus.Logger) (*Monitor, error) {
	if logger == nil {
		logger = logrus.New()
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	m := &Monitor{
		conn:   conn,
		logger: logger,
		states: make(chan transport.RadioState, 16),
		done:   make(chan struct{}),
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	if !contains(names, busName) {
		m.logger.Warn("org.bluez not found on system bus, radio reported as unsupported")
		m.states <- transport.RadioUnsupported
		return m, nil
	}

	m.states <- m.currentState()

	call := conn.BusObject().Call(
		"org.freedesktop.DBus.AddMatch", 0,
		"type='signal',interface='"+propsIface+"',member='PropertiesChanged',path_namespace='/org/bluez'",
	)
	if call.Err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to property changes: %w", call.Err)
	}

	sig := make(chan *dbus.Signal, 16)
	conn.Signal(sig)
	go m.watch(sig)
	return m, nil
}

// States returns the radio state stream.
func (m *Monitor) States() <-chan transport.RadioState {
	return m.states
}

// Close stops watching and disconnects from the bus.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.conn.Close()
	})
}

func (m *Monitor) currentState() transport.RadioState {
	var v dbus.Variant
	obj := m.conn.Object(busName, adapterPath)
	if err := obj.Call(propsIface+".Get", 0, adapterIface, "Powered").Store(&v); err != nil {
		m.logger.WithError(err).Warn("Failed to read adapter Powered property")
		return transport.RadioUnknown
	}
	powered, ok := v.Value().(bool)
	if !ok {
		return transport.RadioUnknown
	}
	return powerState(powered)
}

func (m *Monitor) watch(sig chan *dbus.Signal) {
	for {
		select {
		case <-m.done:
			return
		case s, ok := <-sig:
			if !ok {
				return
			}
			powered, ok := parsePoweredChange(s.Body)
			if !ok {
				continue
			}
			st := powerState(powered)
			m.logger.WithField("state", st.String()).Debug("Adapter power changed")
			select {
			case m.states <- st:
			default:
				m.logger.Warn("Radio state consumer too slow, dropping transition")
			}
		}
	}
}

// powerState maps the BlueZ Powered flag onto the radio state model.
func powerState(powered bool) transport.RadioState {
	if powered {
		return transport.RadioPoweredOn
	}
	return transport.RadioPoweredOff
}

// parsePoweredChange extracts the Powered flag from a PropertiesChanged
// signal body: [interface, changed properties, invalidated properties].
// Returns ok=false for signals about other interfaces or properties.
func parsePoweredChange(body []interface{}) (powered, ok bool) {
	if len(body) < 2 {
		return false, false
	}
	iface, isStr := body[0].(string)
	if !isStr || iface != adapterIface {
		return false, false
	}
	changed, isMap := body[1].(map[string]dbus.Variant)
	if !isMap {
		return false, false
	}
	v, present := changed["Powered"]
	if !present {
		return false, false
	}
	powered, ok = v.Value().(bool)
	return powered, ok
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
