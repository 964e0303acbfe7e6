package render

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/vkframe/gpu/gputest"
)

func openWindow(t *testing.T, inst *gputest.Instance, ctx *Context) *Window {
	t.Helper()
	w, err := ctx.NewWindow(WindowParams{
		Surface: inst.NewSurface(),
		Width:   1280,
		Height:  720,
		Shaders: testShaders(),
		Options: Options{IdleInterval: time.Millisecond},
	})
	require.NoError(t, err)
	return w
}

func TestWindowShutdown(t *testing.T) {
	inst := gputest.NewInstance(1280, 720)
	ctx := NewContext(inst, quiet)
	w := openWindow(t, inst, ctx)
	mock := inst.Device()
	_, err := w.Renderer().RegisterMesh(triangle())
	require.NoError(t, err)
	assert.Equal(t, 1, ctx.Windows())

	require.NoError(t, w.Start())
	require.Eventually(t, func() bool { return w.Renderer().Frames() >= 3 }, 5*time.Second, time.Millisecond)

	require.NoError(t, w.Close())
	select {
	case <-w.Done():
	default:
		t.Fatal("render loop still running after Close")
	}
	calls := mock.Calls()
	assert.Equal(t, "Destroy", calls[len(calls)-1])
	assert.True(t, mock.Destroyed())
	assert.Equal(t, 0, ctx.Windows())

	// Nothing reaches the device after the join.
	time.Sleep(5 * time.Millisecond)
	assert.Len(t, mock.Calls(), len(calls))

	require.NoError(t, ctx.Destroy())
	assert.Empty(t, mock.Violations())
	assert.Empty(t, inst.Violations())
	assert.True(t, inst.Destroyed())
}

func TestWindowCloseWhileMinimized(t *testing.T) {
	inst := gputest.NewInstance(1280, 720)
	ctx := NewContext(inst, quiet)
	w := openWindow(t, inst, ctx)
	mock := inst.Device()

	inst.SetExtent(0, 0)
	w.Events().Resize(0, 0)
	require.NoError(t, w.Start())
	require.Eventually(t, func() bool { return w.Renderer().State() == Idle }, 5*time.Second, time.Millisecond)

	require.NoError(t, w.Close())
	require.NoError(t, ctx.Destroy())
	assert.Empty(t, mock.Violations())
}

func TestWindowFatalError(t *testing.T) {
	inst := gputest.NewInstance(1280, 720)
	ctx := NewContext(inst, quiet)
	w := openWindow(t, inst, ctx)
	mock := inst.Device()
	mock.ScriptPresent(errors.New("surface lost"))

	require.NoError(t, w.Start())
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("render loop did not stop on a fatal error")
	}
	err := w.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "surface lost")
	assert.Equal(t, Stopped, w.Renderer().State())
	require.NoError(t, ctx.Destroy())
	assert.Empty(t, mock.Violations())
}

func TestWindowStartTwice(t *testing.T) {
	inst := gputest.NewInstance(1280, 720)
	ctx := NewContext(inst, quiet)
	w := openWindow(t, inst, ctx)
	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Start(), ErrStarted)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Start(), ErrStarted)
	assert.NoError(t, w.Close())
	require.NoError(t, ctx.Destroy())
}

func TestWindowCloseWithoutStart(t *testing.T) {
	inst := gputest.NewInstance(1280, 720)
	ctx := NewContext(inst, quiet)
	w := openWindow(t, inst, ctx)
	require.NoError(t, w.Close())
	<-w.Done()
	require.NoError(t, ctx.Destroy())
	assert.Empty(t, inst.Violations())
}

func TestContextDestroyWithOpenWindow(t *testing.T) {
	inst := gputest.NewInstance(1280, 720)
	ctx := NewContext(inst, quiet)
	w := openWindow(t, inst, ctx)
	assert.ErrorIs(t, ctx.Destroy(), ErrWindowsAlive)
	assert.False(t, inst.Destroyed())
	require.NoError(t, w.Close())
	require.NoError(t, ctx.Destroy())
}

func TestNewWindowNoDevice(t *testing.T) {
	inst := gputest.NewInstance(1280, 720)
	inst.NoDevices = true
	ctx := NewContext(inst, quiet)
	_, err := ctx.NewWindow(WindowParams{Surface: inst.NewSurface(), Width: 1280, Height: 720, Shaders: testShaders()})
	assert.ErrorIs(t, err, ErrNoSuitableDevice)
	assert.Equal(t, 0, ctx.Windows())
	require.NoError(t, ctx.Destroy())
	assert.Empty(t, inst.Violations())
}

func TestNewWindowWithoutSwapchainSupport(t *testing.T) {
	inst := gputest.NewInstance(1280, 720)
	inst.Extensions = nil
	ctx := NewContext(inst, quiet)
	_, err := ctx.NewWindow(WindowParams{Surface: inst.NewSurface(), Width: 1280, Height: 720, Shaders: testShaders()})
	assert.ErrorIs(t, err, ErrNoSuitableDevice)
	assert.Equal(t, 0, ctx.Windows())
	require.NoError(t, ctx.Destroy())
	assert.Empty(t, inst.Violations())
}

func TestNewWindowMissingDeviceExtension(t *testing.T) {
	inst := gputest.NewInstance(1280, 720)
	ctx := NewContext(inst, quiet)
	_, err := ctx.NewWindow(WindowParams{
		Surface:    inst.NewSurface(),
		Width:      1280,
		Height:     720,
		Extensions: []string{"VK_EXT_memory_budget"},
		Shaders:    testShaders(),
	})
	assert.ErrorIs(t, err, ErrNoSuitableDevice)
	require.NoError(t, ctx.Destroy())
	assert.Empty(t, inst.Violations())
}
