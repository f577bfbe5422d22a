package button

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIdentifierFromAddr verifies the derivation is deterministic and
// case-insensitive, so the same physical button always maps to the same
// identifier.
func TestIdentifierFromAddr(t *testing.T) {
	a := IdentifierFromAddr("AA:BB:CC:DD:EE:FF")
	b := IdentifierFromAddr("aa:bb:cc:dd:ee:ff")
	c := IdentifierFromAddr("11:22:33:44:55:66")

	assert.Equal(t, a, b, "address case MUST NOT change the identifier")
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, Identifier{}, a)
}

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "canonical form",
			input: "f02adfc0-26e7-11e4-9edc-0002a5d5c51b",
		},
		{
			name:  "uppercase",
			input: "F02ADFC0-26E7-11E4-9EDC-0002A5D5C51B",
		},
		{
			name:  "no dashes",
			input: "f02adfc026e711e49edc0002a5d5c51b",
		},
		{
			name:    "too short",
			input:   "f02adfc0-26e7",
			wantErr: true,
		},
		{
			name:    "not hex",
			input:   "zzzzzzzz-26e7-11e4-9edc-0002a5d5c51b",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseIdentifier(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "f02adfc0-26e7-11e4-9edc-0002a5d5c51b", id.String())
		})
	}
}

func TestIdentifierRoundTrip(t *testing.T) {
	id := IdentifierFromAddr("AA:BB:CC:DD:EE:FF")

	parsed, err := ParseIdentifier(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	// Identifiers serialize in canonical text form inside records.
	data, err := json.Marshal(Record{Identifier: id, Address: "AA:BB:CC:DD:EE:FF"})
	require.NoError(t, err)
	assert.Contains(t, string(data), id.String())

	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, id, rec.Identifier)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "disconnected", PhaseDisconnected.String())
	assert.Equal(t, "pendingConnect", PhasePendingConnect.String())
	assert.Equal(t, "connecting", PhaseConnecting.String())
	assert.Equal(t, "connected", PhaseConnected.String())
	assert.Equal(t, "forgotten", PhaseForgotten.String())
}

func TestConnectionIntentString(t *testing.T) {
	assert.Equal(t, "none", IntentNone.String())
	assert.Equal(t, "wantConnected", IntentWantConnected.String())
}
