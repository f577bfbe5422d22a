package bluez

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"

	"github.com/srg/buttond/internal/transport"
)

func TestPowerState(t *testing.T) {
	assert.Equal(t, transport.RadioPoweredOn, powerState(true))
	assert.Equal(t, transport.RadioPoweredOff, powerState(false))
}

// TestParsePoweredChange verifies only Adapter1 Powered transitions are
// extracted from PropertiesChanged bodies.
func TestParsePoweredChange(t *testing.T) {
	tests := []struct {
		name        string
		body        []interface{}
		wantPowered bool
		wantOK      bool
	}{
		{
			name: "adapter powered on",
			body: []interface{}{
				"org.bluez.Adapter1",
				map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)},
				[]string{},
			},
			wantPowered: true,
			wantOK:      true,
		},
		{
			name: "adapter powered off",
			body: []interface{}{
				"org.bluez.Adapter1",
				map[string]dbus.Variant{"Powered": dbus.MakeVariant(false)},
				[]string{},
			},
			wantOK: true,
		},
		{
			name: "other interface ignored",
			body: []interface{}{
				"org.bluez.Device1",
				map[string]dbus.Variant{"Powered": dbus.MakeVariant(true)},
				[]string{},
			},
		},
		{
			name: "other property ignored",
			body: []interface{}{
				"org.bluez.Adapter1",
				map[string]dbus.Variant{"Discoverable": dbus.MakeVariant(true)},
				[]string{},
			},
		},
		{
			name: "powered with wrong type ignored",
			body: []interface{}{
				"org.bluez.Adapter1",
				map[string]dbus.Variant{"Powered": dbus.MakeVariant("yes")},
				[]string{},
			},
		},
		{
			name: "short body ignored",
			body: []interface{}{"org.bluez.Adapter1"},
		},
		{
			name: "empty body ignored",
			body: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			powered, ok := parsePoweredChange(tt.body)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPowered, powered)
		})
	}
}
