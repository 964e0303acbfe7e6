package render

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/vkframe/gpu"
	"github.com/andewx/vkframe/gpu/gputest"
)

func TestEndToEndResize(t *testing.T) {
	f := newFixture(t, 1280, 720)
	for i := 0; i < 2; i++ {
		_, err := f.r.RegisterMesh(triangle())
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, Running, f.r.Step())
	}
	assert.Equal(t, uint64(3), f.r.Frames())
	assert.Equal(t, 6, f.mock.Draws())
	assert.Equal(t, uint64(0), f.r.Recreations())

	f.resize(640, 480)
	assert.Equal(t, Running, f.r.Step())
	assert.Equal(t, uint64(1), f.r.Recreations())
	assert.Equal(t, uint64(4), f.r.Frames())

	viewports := f.mock.Viewports()
	require.Len(t, viewports, 4)
	assert.Equal(t, gpu.Viewport{Width: 1280, Height: 720, MaxDepth: 1}, viewports[2])
	vp := viewports[3]
	assert.Equal(t, [4]float32{0, 0, 640, 480}, [4]float32{vp.X, vp.Y, vp.Width, vp.Height})
	assert.Equal(t, gpu.Rect2D{Extent: gpu.Extent2D{Width: 640, Height: 480}}, f.mock.Scissors()[3])
	assert.Len(t, f.mock.SwapchainInfos(), 2)
	assert.Equal(t, 8, f.mock.Draws())
}

func TestZeroSizeIdempotent(t *testing.T) {
	f := newFixture(t, 1280, 720)
	require.Equal(t, Running, f.r.Step())
	created, destroyed := f.mock.Count("CreateSwapchain"), f.mock.Count("DestroySwapchain")
	presents := f.mock.Presents()

	for i := 0; i < 4; i++ {
		f.resize(0, 720)
		assert.Equal(t, Idle, f.r.Step())
		f.resize(1280, 0)
		assert.Equal(t, Idle, f.r.Step())
	}
	assert.True(t, f.events.Minimized())
	assert.Equal(t, created, f.mock.Count("CreateSwapchain"))
	assert.Equal(t, destroyed, f.mock.Count("DestroySwapchain"))
	assert.Equal(t, presents, f.mock.Presents())

	f.resize(800, 600)
	assert.Equal(t, Running, f.r.Step())
	assert.Equal(t, created+1, f.mock.Count("CreateSwapchain"))
	assert.Equal(t, destroyed+1, f.mock.Count("DestroySwapchain"))
	assert.Equal(t, uint64(1), f.r.Recreations())
	assert.Equal(t, gpu.Extent2D{Width: 800, Height: 600}, f.r.Swapchain().Extent())
}

func TestRecreationOrder(t *testing.T) {
	f := newFixture(t, 1280, 720)
	require.Equal(t, Running, f.r.Step())
	mark := len(f.mock.Calls())

	f.resize(1024, 768)
	require.Equal(t, Running, f.r.Step())
	calls := f.mock.Calls()

	wait := indexOf(calls, "WaitIdle", mark)
	require.GreaterOrEqual(t, wait, 0)
	firstDestroy := indexOf(calls, "DestroyFramebuffer", mark)
	destroySwapchain := indexOf(calls, "DestroySwapchain", mark)
	destroyDepth := indexOf(calls, "DestroyImage", mark)
	create := indexOf(calls, "CreateSwapchain", mark)
	depth := indexOf(calls, "CreateImage", mark)
	framebuffer := indexOf(calls, "CreateFramebuffer", mark)
	barrier := indexOf(calls, "CmdImageBarrier", mark)
	acquire := indexOf(calls, "AcquireNextImage", mark)

	assert.Less(t, wait, firstDestroy)
	assert.Less(t, firstDestroy, destroySwapchain)
	assert.Less(t, destroySwapchain, create)
	assert.Less(t, destroyDepth, create)
	assert.Less(t, create, depth)
	assert.Less(t, depth, framebuffer)
	assert.Less(t, framebuffer, barrier)
	assert.Less(t, barrier, acquire)
	assert.Equal(t, 3, f.mock.Live("framebuffer"))
}

func TestAcquireOutOfDate(t *testing.T) {
	f := newFixture(t, 1280, 720)
	submits := f.mock.Submits()
	f.mock.ScriptAcquire(gpu.ErrOutOfDate)
	assert.Equal(t, Recreating, f.r.Step())
	assert.Equal(t, 0, f.mock.Presents())
	assert.Equal(t, submits, f.mock.Submits())

	assert.Equal(t, Running, f.r.Step())
	assert.Equal(t, uint64(1), f.r.Recreations())
	assert.Equal(t, 1, f.mock.Presents())
	assert.NoError(t, f.r.Err())
}

func TestPresentOutOfDate(t *testing.T) {
	f := newFixture(t, 1280, 720)
	require.Equal(t, Running, f.r.Step())
	f.mock.ScriptPresent(errors.Wrap(gpu.ErrOutOfDate, "vkQueuePresentKHR"))
	assert.Equal(t, Recreating, f.r.Step())
	assert.Equal(t, uint64(1), f.r.Frames())

	assert.Equal(t, Running, f.r.Step())
	assert.Equal(t, uint64(1), f.r.Recreations())
	assert.Equal(t, uint64(2), f.r.Frames())
}

func TestFatalAcquireError(t *testing.T) {
	f := newFixture(t, 1280, 720)
	f.mock.ScriptAcquire(gpu.ErrDeviceLost)
	assert.Equal(t, Stopped, f.r.Step())
	assert.True(t, errors.Is(f.r.Err(), gpu.ErrDeviceLost))

	err := f.r.Run()
	assert.True(t, errors.Is(err, gpu.ErrDeviceLost))
	assert.Equal(t, 0, f.mock.Presents())
}

func TestFatalPresentError(t *testing.T) {
	f := newFixture(t, 1280, 720)
	f.mock.ScriptPresent(gpu.ErrDeviceLost)
	assert.Equal(t, Stopped, f.r.Step())
	assert.True(t, errors.Is(f.r.Err(), gpu.ErrDeviceLost))
}

func TestExitStopsLoop(t *testing.T) {
	f := newFixture(t, 1280, 720)
	require.Equal(t, Running, f.r.Step())
	f.events.RequestExit()
	assert.Equal(t, Stopped, f.r.Step())
	n := len(f.mock.Calls())
	assert.Equal(t, Stopped, f.r.Step())
	assert.NoError(t, f.r.Run())
	assert.Len(t, f.mock.Calls(), n)
}

func TestRecreateRequest(t *testing.T) {
	f := newFixture(t, 1280, 720)
	require.Equal(t, Running, f.r.Step())
	f.r.Recreate()
	assert.Equal(t, Recreating, f.r.State())
	assert.Equal(t, Running, f.r.Step())
	assert.Equal(t, uint64(1), f.r.Recreations())
}

func TestStartMinimized(t *testing.T) {
	inst := gputest.NewInstance(0, 0)
	dev, surface := openDevice(t, inst)
	mock := inst.Device()
	events := NewEventStates(0, 0)
	r, err := NewRenderer(dev, surface, events, testShaders(), Options{Logger: quiet})
	require.NoError(t, err)
	assert.Equal(t, Idle, r.State())
	assert.Nil(t, r.Swapchain())
	assert.Equal(t, Idle, r.Step())
	assert.Equal(t, 0, mock.Count("CreateSwapchain"))

	inst.SetExtent(640, 480)
	events.Resize(640, 480)
	assert.Equal(t, Running, r.Step())
	assert.Equal(t, 1, mock.Count("CreateSwapchain"))
	assert.Equal(t, gpu.Viewport{Width: 640, Height: 480, MaxDepth: 1}, r.Viewport())

	r.Destroy()
	surface.Destroy()
	dev.Destroy()
	assert.Empty(t, mock.Violations())
}

func TestSurfaceZeroWhileWindowSized(t *testing.T) {
	f := newFixture(t, 1280, 720)
	require.Equal(t, Running, f.r.Step())

	// The window reports a size before the surface catches up.
	f.inst.SetExtent(0, 0)
	f.events.Resize(640, 480)
	assert.Equal(t, Idle, f.r.Step())
	assert.Nil(t, f.r.Swapchain())

	f.inst.SetExtent(640, 480)
	assert.Equal(t, Running, f.r.Step())
	assert.NotNil(t, f.r.Swapchain())
}

func TestRegisterMesh(t *testing.T) {
	f := newFixture(t, 1280, 720)
	h, err := f.r.RegisterMesh(triangle())
	require.NoError(t, err)
	m, ok := f.r.Mesh(h)
	require.True(t, ok)
	assert.Equal(t, identity(), m.Transform)
	assert.Len(t, m.Vertices, 3)

	_, err = f.r.RegisterMesh(Mesh{})
	assert.True(t, errors.Is(err, ErrInvalidMesh))
	bad := triangle()
	bad.Indices = []uint32{0, 1, 3}
	_, err = f.r.RegisterMesh(bad)
	assert.True(t, errors.Is(err, ErrInvalidMesh))
	bad = triangle()
	bad.Projection = Projection(7)
	_, err = f.r.RegisterMesh(bad)
	assert.True(t, errors.Is(err, ErrInvalidMesh))

	_, ok = f.r.Mesh(5)
	assert.False(t, ok)
}

func TestDestroyReleasesEverything(t *testing.T) {
	f := newFixture(t, 1280, 720)
	_, err := f.r.RegisterMesh(triangle())
	require.NoError(t, err)
	require.Equal(t, Running, f.r.Step())
	f.r.Destroy()
	assert.Equal(t, 0, f.mock.Live(""))
	assert.Equal(t, Stopped, f.r.State())
	_, err = f.r.RegisterMesh(triangle())
	assert.Error(t, err)
}

func TestRendererCreationFailure(t *testing.T) {
	inst := gputest.NewInstance(1280, 720)
	dev, surface := openDevice(t, inst)
	mock := inst.Device()
	mock.FailOn("CreateGraphicsPipeline", errors.New("bad shader"))

	_, err := NewRenderer(dev, surface, NewEventStates(1280, 720), testShaders(), Options{Logger: quiet})
	require.Error(t, err)
	assert.Equal(t, 0, mock.Live(""))
	surface.Destroy()
	dev.Destroy()
	assert.Empty(t, mock.Violations())
}
