package render

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/vkframe/gpu"
	"github.com/andewx/vkframe/gpu/gputest"
)

func TestChooseExtent(t *testing.T) {
	caps := gpu.SurfaceCapabilities{CurrentExtent: gpu.Extent2D{Width: gpu.UndefinedExtent, Height: gpu.UndefinedExtent}}
	assert.Equal(t, gpu.Extent2D{Width: 800, Height: 600}, ChooseExtent(caps, 800, 600))

	caps.CurrentExtent = gpu.Extent2D{Width: 1280, Height: 720}
	assert.Equal(t, gpu.Extent2D{Width: 1280, Height: 720}, ChooseExtent(caps, 800, 600))
}

func TestChooseImageCount(t *testing.T) {
	for lo := uint32(1); lo <= 8; lo++ {
		for hi := uint32(0); hi <= 8; hi++ {
			if hi != 0 && hi < lo {
				continue
			}
			n := ChooseImageCount(gpu.SurfaceCapabilities{MinImageCount: lo, MaxImageCount: hi})
			if hi > 0 {
				assert.LessOrEqual(t, n, hi, "min %d max %d", lo, hi)
			}
			if hi == 0 || hi > lo {
				assert.Equal(t, lo+1, n, "min %d max %d", lo, hi)
			} else {
				assert.Equal(t, hi, n, "min %d max %d", lo, hi)
			}
		}
	}
}

func TestChoosePresentMode(t *testing.T) {
	assert.Equal(t, gpu.PresentModeMailbox, ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeFifo, gpu.PresentModeMailbox}))
	assert.Equal(t, gpu.PresentModeFifo, ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeImmediate, gpu.PresentModeFifo}))
	assert.Equal(t, gpu.PresentModeFifo, ChoosePresentMode(nil))
}

func TestCreateSwapchain(t *testing.T) {
	inst := gputest.NewInstance(1280, 720)
	dev, surface := openDevice(t, inst)
	mock := inst.Device()

	sc, err := CreateSwapchain(dev, surface, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, gpu.Extent2D{Width: 1280, Height: 720}, sc.Extent())
	assert.Equal(t, uint32(3), sc.ImageCount())
	assert.Equal(t, gpu.PresentModeMailbox, sc.PresentMode())

	infos := mock.SwapchainInfos()
	require.Len(t, infos, 1)
	assert.Equal(t, gpu.SurfaceTransformIdentity, infos[0].PreTransform)
	assert.Equal(t, gpu.CompositeAlphaOpaque, infos[0].CompositeAlpha)
	assert.Equal(t, gpu.FormatB8G8R8A8Srgb, infos[0].Format.Format)

	sc.destroy(mock)
	surface.Destroy()
	dev.Destroy()
	inst.Destroy()
	assert.Empty(t, mock.Violations())
	assert.Empty(t, inst.Violations())
}

func TestCreateSwapchainUndefinedExtent(t *testing.T) {
	inst := gputest.NewInstance(gpu.UndefinedExtent, gpu.UndefinedExtent)
	dev, surface := openDevice(t, inst)

	sc, err := CreateSwapchain(dev, surface, 1024, 768)
	require.NoError(t, err)
	assert.Equal(t, gpu.Extent2D{Width: 1024, Height: 768}, sc.Extent())
	sc.destroy(dev.GPU())
	surface.Destroy()
	dev.Destroy()
}

func TestCreateSwapchainZeroExtent(t *testing.T) {
	inst := gputest.NewInstance(0, 720)
	dev, surface := openDevice(t, inst)
	mock := inst.Device()

	_, err := CreateSwapchain(dev, surface, 1280, 720)
	assert.True(t, errors.Is(err, ErrZeroExtent))
	assert.Equal(t, 0, mock.Count("CreateSwapchain"))
	surface.Destroy()
	dev.Destroy()
	assert.Empty(t, mock.Violations())
}

func TestSurfaceUndefinedFormat(t *testing.T) {
	inst := gputest.NewInstance(640, 480)
	inst.Formats = []gpu.SurfaceFormat{{Format: gpu.FormatUndefined}}
	dev, surface := openDevice(t, inst)
	assert.Equal(t, gpu.FormatB8G8R8A8Unorm, surface.Format().Format)
	assert.Equal(t, gpu.Extent2D{Width: 640, Height: 480}, surface.Resolution())
	surface.Destroy()
	dev.Destroy()
}
