package render

import (
	"encoding/binary"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/vkframe/gpu/gputest"
)

var quiet = slog.New(slog.DiscardHandler)

func testShaders() Shaders {
	code := make([]byte, 20)
	binary.LittleEndian.PutUint32(code, spirvMagic)
	return Shaders{Vertex: code, Fragment: code}
}

func triangle() Mesh {
	return Mesh{
		Vertices: []Vertex{
			{Pos: [4]float32{-1, -1, 0, 1}, Color: [4]float32{1, 0, 0, 1}},
			{Pos: [4]float32{1, -1, 0, 1}, Color: [4]float32{0, 1, 0, 1}},
			{Pos: [4]float32{0, 1, 0, 1}, Color: [4]float32{0, 0, 1, 1}},
		},
		Indices: []uint32{0, 1, 2},
	}
}

// openDevice creates a device and surface on inst the way a window does.
func openDevice(t *testing.T, inst *gputest.Instance) (*Device, *Surface) {
	t.Helper()
	handle := inst.NewSurface()
	pd, family, err := SelectPhysicalDevice(inst, handle)
	require.NoError(t, err)
	dev, err := CreateDevice(inst, pd, family, nil)
	require.NoError(t, err)
	surface, err := NewSurface(inst, handle, pd, family)
	require.NoError(t, err)
	return dev, surface
}

type fixture struct {
	inst    *gputest.Instance
	mock    *gputest.Device
	dev     *Device
	surface *Surface
	events  *EventStates
	r       *Renderer
}

func newFixture(t *testing.T, width, height uint32) *fixture {
	t.Helper()
	f := &fixture{inst: gputest.NewInstance(width, height)}
	f.dev, f.surface = openDevice(t, f.inst)
	f.mock = f.inst.Device()
	f.events = NewEventStates(width, height)
	var err error
	f.r, err = NewRenderer(f.dev, f.surface, f.events, testShaders(), Options{Logger: quiet})
	require.NoError(t, err)
	t.Cleanup(func() { f.close(t) })
	return f
}

// resize changes the surface extent and reports the new window size, as the window system
// does on a resize.
func (f *fixture) resize(width, height uint32) {
	f.inst.SetExtent(width, height)
	f.events.Resize(width, height)
}

func (f *fixture) close(t *testing.T) {
	f.r.Destroy()
	f.surface.Destroy()
	f.dev.Destroy()
	f.inst.Destroy()
	assert.Empty(t, f.mock.Violations())
	assert.Empty(t, f.inst.Violations())
}

// indexOf returns the index of the first call to method at or after from, or -1.
func indexOf(calls []string, method string, from int) int {
	for i := from; i < len(calls); i++ {
		if calls[i] == method {
			return i
		}
	}
	return -1
}

func lastIndexOf(calls []string, method string) int {
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i] == method {
			return i
		}
	}
	return -1
}
