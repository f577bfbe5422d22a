package goble

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBluetoothOff indicates the host adapter is turned off.
	ErrBluetoothOff = errors.New("bluetooth is turned off")

	// ErrNotButton indicates the connected peripheral does not expose the
	// button service and therefore cannot be verified.
	ErrNotButton = errors.New("peripheral is not a button")
)

// NormalizeError maps known go-ble error strings to sentinel errors so
// callers handle them consistently even if the upstream library changes
// messages slightly. The original error is preserved in the chain.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "central manager has invalid state") && strings.Contains(msg, "have=4"):
		// darwin reports StatePoweredOff this way
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case strings.Contains(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	default:
		return err
	}
}
