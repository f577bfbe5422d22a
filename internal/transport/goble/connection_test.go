package goble

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestConnectionDropNotification verifies the drop callback is never lost,
// whichever side of the registration the drop lands on.
func TestConnectionDropNotification(t *testing.T) {
	t.Run("drop after registration fires once", func(t *testing.T) {
		c := &connection{}
		fired := 0
		c.OnDisconnect(func() { fired++ })

		c.fireDrop()
		c.fireDrop()
		assert.Equal(t, 1, fired)
	})

	t.Run("drop before registration fires on registration", func(t *testing.T) {
		c := &connection{}
		c.fireDrop()

		fired := 0
		c.OnDisconnect(func() { fired++ })
		assert.Equal(t, 1, fired, "a drop preceding registration MUST still be delivered")

		c.fireDrop()
		assert.Equal(t, 1, fired)
	})

	t.Run("drop with no callback is silent", func(t *testing.T) {
		c := &connection{}
		assert.NotPanics(t, c.fireDrop)
	})
}
