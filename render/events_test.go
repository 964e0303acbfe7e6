package render

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventStates(t *testing.T) {
	e := NewEventStates(1280, 720)
	w, h := e.Size()
	assert.Equal(t, uint32(1280), w)
	assert.Equal(t, uint32(720), h)
	assert.False(t, e.Minimized())
	assert.False(t, e.Exiting())

	e.Resize(0, 720)
	assert.True(t, e.Minimized())
	e.Resize(640, 0)
	assert.True(t, e.Minimized())
	e.Resize(640, 480)
	assert.False(t, e.Minimized())

	e.RequestExit()
	assert.True(t, e.Exiting())
}

func TestEventStatesConcurrent(t *testing.T) {
	e := NewEventStates(1, 1)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := uint32(1); i <= 1000; i++ {
			e.Resize(i, i)
		}
		e.RequestExit()
	}()
	go func() {
		defer wg.Done()
		for !e.Exiting() {
			w, h := e.Size()
			// A reader may see a torn pair but never a value that was not written.
			assert.LessOrEqual(t, w, uint32(1000))
			assert.LessOrEqual(t, h, uint32(1000))
		}
	}()
	wg.Wait()
	w, h := e.Size()
	assert.Equal(t, uint32(1000), w)
	assert.Equal(t, uint32(1000), h)
}
