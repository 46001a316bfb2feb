package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffered(t *testing.T) {
	c := NewBuffered[int](2)
	c.Send(1)
	assert.True(t, c.TrySend(2))
	assert.False(t, c.TrySend(3))
	assert.Equal(t, 2, c.Len())

	assert.Equal(t, 1, <-c.Receive())
	assert.Equal(t, 2, <-c.Receive())

	c.Close()
	_, ok := <-c.Receive()
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	c := New[string](4)
	assert.True(t, c.TrySend("state"))
	assert.Equal(t, 1, c.Len())
	c.Close()
}
