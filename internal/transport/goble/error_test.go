package goble

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeError verifies known go-ble failure strings are mapped onto
// the sentinel errors callers match on.
func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name     string
		input    error
		expected error
	}{
		{
			name:     "nil stays nil",
			input:    nil,
			expected: nil,
		},
		{
			name:     "darwin powered-off state",
			input:    errors.New("central manager has invalid state: have=4, want=5"),
			expected: ErrBluetoothOff,
		},
		{
			name:     "plain bluetooth off message",
			input:    errors.New("Bluetooth is turned off"),
			expected: ErrBluetoothOff,
		},
		{
			name:     "unrelated invalid state passes through",
			input:    errors.New("central manager has invalid state: have=2, want=5"),
			expected: nil,
		},
		{
			name:     "unknown error passes through",
			input:    errors.New("connection refused"),
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeError(tt.input)
			if tt.input == nil {
				assert.NoError(t, result)
				return
			}
			if tt.expected != nil {
				assert.ErrorIs(t, result, tt.expected)
				// The original error text is preserved in the chain.
				assert.Contains(t, result.Error(), tt.input.Error())
			} else {
				assert.Equal(t, tt.input, result)
			}
		})
	}
}
