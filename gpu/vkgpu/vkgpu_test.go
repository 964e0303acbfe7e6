package vkgpu

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkframe/gpu"
)

func TestHandles(t *testing.T) {
	h := newHandles()
	a := h.add("a")
	b := h.add(42)
	assert.NotZero(t, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, h.len())

	assert.Equal(t, "a", lookup[string](h, a))
	assert.Equal(t, 42, lookup[int](h, b))
	assert.Equal(t, 0, lookup[int](h, a), "wrong type resolves to zero")
	assert.Equal(t, "", lookup[string](h, 0), "null handle resolves to zero")

	assert.Equal(t, 42, take[int](h, b))
	assert.Equal(t, 0, take[int](h, b))
	assert.Equal(t, 1, h.len())
}

func TestCheckExisting(t *testing.T) {
	actual := []string{"VK_KHR_surface", "VK_KHR_xcb_surface"}
	got, missing := checkExisting(actual, safeStrings([]string{"VK_KHR_xcb_surface", "VK_EXT_debug_report", "VK_KHR_surface"}))
	assert.Equal(t, []string{"VK_KHR_xcb_surface\x00", "VK_KHR_surface\x00"}, got)
	assert.Equal(t, 1, missing)

	got, missing = checkExisting(actual, nil)
	assert.Empty(t, got)
	assert.Zero(t, missing)
}

func TestMissingNames(t *testing.T) {
	actual := []string{"VK_KHR_surface", "VK_KHR_xcb_surface"}
	assert.Empty(t, missingNames(actual, []string{"VK_KHR_surface"}))
	assert.Equal(t, []string{"VK_KHR_swapchain"}, missingNames(actual, []string{"VK_KHR_xcb_surface", "VK_KHR_swapchain"}))
	assert.Empty(t, missingNames(nil, nil))
}

func TestSliceUint32(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 1, 0}
	words := sliceUint32(code)
	require.Len(t, words, 2)
	assert.Equal(t, uint32(0x07230203), words[0])
	assert.Nil(t, sliceUint32(nil))
}

func TestNewError(t *testing.T) {
	assert.NoError(t, newError(vk.Success))
	assert.NoError(t, newError(vk.Suboptimal))
	assert.True(t, errors.Is(check(vk.ErrorOutOfDate, "vkQueuePresentKHR"), gpu.ErrOutOfDate))
	assert.True(t, errors.Is(newError(vk.ErrorDeviceLost), gpu.ErrDeviceLost))
	assert.True(t, errors.Is(check(vk.ErrorExtensionNotPresent, "vkCreateDevice"), gpu.ErrExtensionNotPresent))

	err := check(vk.ErrorOutOfDeviceMemory, "vkAllocateMemory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vkAllocateMemory")
	assert.False(t, errors.Is(err, gpu.ErrOutOfDate))
}

func TestAccessFor(t *testing.T) {
	assert.Zero(t, accessFor(gpu.LayoutUndefined))
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), accessFor(gpu.LayoutTransferDst))
	assert.Equal(t, vk.AccessFlags(vk.AccessShaderReadBit), accessFor(gpu.LayoutShaderReadOnly))
	assert.NotZero(t, accessFor(gpu.LayoutDepthStencilAttachment)&vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit))
}

type levelRecorder struct {
	mu     sync.Mutex
	levels []slog.Level
}

func (h *levelRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (h *levelRecorder) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.levels = append(h.levels, r.Level)
	return nil
}

func (h *levelRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *levelRecorder) WithGroup(string) slog.Handler      { return h }

func TestDebugCallbackLevels(t *testing.T) {
	rec := &levelRecorder{}
	prev := debugLog.Swap(slog.New(rec))
	defer debugLog.Store(prev)

	flags := []vk.DebugReportFlagBits{
		vk.DebugReportErrorBit,
		vk.DebugReportWarningBit,
		vk.DebugReportPerformanceWarningBit,
		vk.DebugReportInformationBit,
		vk.DebugReportDebugBit,
	}
	for _, f := range flags {
		ret := dbgCallbackFunc(vk.DebugReportFlags(f), vk.DebugReportObjectType(0), 0, 0, 0, "layer", "message", nil)
		assert.Equal(t, vk.Bool32(vk.False), ret)
	}
	assert.Equal(t, []slog.Level{
		slog.LevelError,
		slog.LevelWarn,
		slog.LevelWarn,
		slog.LevelDebug,
		slog.LevelDebug,
	}, rec.levels)
}

// TestInstance needs a Vulkan loader and at least one device.
func TestInstance(t *testing.T) {
	if os.Getenv("VKFRAME_GPU_TESTS") == "" {
		t.Skip("set VKFRAME_GPU_TESTS to run against a real Vulkan driver")
	}
	require.NoError(t, vk.SetDefaultGetInstanceProcAddr())
	require.NoError(t, vk.Init())

	inst, err := NewInstance(Config{AppName: "vkgpu-test", EngineName: "vkframe"})
	require.NoError(t, err)
	defer inst.Destroy()

	pds, err := inst.PhysicalDevices()
	require.NoError(t, err)
	require.NotEmpty(t, pds)

	info := inst.DeviceInfo(pds[0])
	assert.NotEmpty(t, info.Name)
	fams := inst.QueueFamilies(pds[0])
	require.NotEmpty(t, fams)

	family := -1
	for i, f := range fams {
		if f.Flags&gpu.QueueGraphics != 0 {
			family = i
			break
		}
	}
	require.GreaterOrEqual(t, family, 0)
	dev, err := inst.CreateDevice(pds[0], uint32(family), nil)
	require.NoError(t, err)
	defer dev.Destroy()

	assert.NotEmpty(t, dev.MemoryTypes())
	f, err := dev.CreateFence(true)
	require.NoError(t, err)
	assert.NoError(t, dev.WaitForFence(f))
	assert.NoError(t, dev.ResetFence(f))
	dev.DestroyFence(f)

	smp, err := dev.CreateSampler()
	require.NoError(t, err)
	dev.DestroySampler(smp)
	dev.DestroySampler(smp)
	dev.DestroySampler(0)

	buf, err := dev.CreateBuffer(64, gpu.BufferUsageUniform)
	require.NoError(t, err)
	req := dev.BufferMemoryRequirements(buf)
	assert.GreaterOrEqual(t, req.Size, uint64(64))
	dev.DestroyBuffer(buf)
	assert.NoError(t, dev.WaitIdle())
}
