package render

import "sync/atomic"

// EventStates carries window events from the thread owning the window to the render loop.
//
// Every field is an independent atomic. A resize stores width and height separately, so a
// reader may observe a new width with an old height for one iteration; the render loop
// re-reads both every frame and converges on the next one.
type EventStates struct {
	exiting   atomic.Bool
	minimized atomic.Bool
	width     atomic.Uint32
	height    atomic.Uint32
}

func NewEventStates(width, height uint32) *EventStates {
	e := &EventStates{}
	e.Resize(width, height)
	return e
}

// Resize records the new window size. A zero width or height marks the window minimized.
func (e *EventStates) Resize(width, height uint32) {
	e.width.Store(width)
	e.height.Store(height)
	e.minimized.Store(width == 0 || height == 0)
}

// RequestExit asks the render loop to stop after the frame in flight.
func (e *EventStates) RequestExit() {
	e.exiting.Store(true)
}

func (e *EventStates) Exiting() bool {
	return e.exiting.Load()
}

func (e *EventStates) Minimized() bool {
	return e.minimized.Load()
}

func (e *EventStates) Size() (width, height uint32) {
	return e.width.Load(), e.height.Load()
}
