package render

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/vkframe/gpu"
	"github.com/andewx/vkframe/gpu/gputest"
)

func TestFindMemoryType(t *testing.T) {
	types := []gpu.MemoryType{
		{Properties: gpu.MemoryDeviceLocal},
		{Properties: gpu.MemoryHostVisible},
		{Properties: gpu.MemoryHostVisible | gpu.MemoryHostCoherent},
	}
	idx, ok := FindMemoryType(types, 0x7, gpu.MemoryHostVisible|gpu.MemoryHostCoherent)
	assert.True(t, ok)
	assert.Equal(t, uint32(2), idx)

	idx, ok = FindMemoryType(types, 0x7, gpu.MemoryHostVisible)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), idx)

	_, ok = FindMemoryType(types, 0x1, gpu.MemoryHostVisible)
	assert.False(t, ok)
}

func TestSelectPhysicalDevice(t *testing.T) {
	inst := gputest.NewInstance(640, 480)
	inst.Families = []gpu.QueueFamily{
		{Flags: gpu.QueueTransfer, Count: 1},
		{Flags: gpu.QueueGraphics, Count: 1},
		{Flags: gpu.QueueGraphics | gpu.QueueCompute, Count: 1},
	}
	inst.PresentFamilies = []uint32{0, 2}
	s := inst.NewSurface()

	pd, family, err := SelectPhysicalDevice(inst, s)
	require.NoError(t, err)
	assert.Equal(t, gpu.PhysicalDevice(1), pd)
	assert.Equal(t, uint32(2), family)

	inst.PresentFamilies = []uint32{0}
	_, _, err = SelectPhysicalDevice(inst, s)
	assert.True(t, errors.Is(err, ErrNoSuitableDevice))
	inst.DestroySurface(s)
}

func TestSelectPhysicalDeviceWithoutSwapchain(t *testing.T) {
	inst := gputest.NewInstance(640, 480)
	inst.Extensions = []string{"VK_KHR_maintenance1"}
	s := inst.NewSurface()
	defer inst.DestroySurface(s)

	_, _, err := SelectPhysicalDevice(inst, s)
	assert.ErrorIs(t, err, ErrNoSuitableDevice)
}

func TestCreateDeviceMissingExtension(t *testing.T) {
	inst := gputest.NewInstance(640, 480)
	_, err := CreateDevice(inst, 1, 0, []string{"VK_KHR_maintenance1"})
	assert.ErrorIs(t, err, ErrNoSuitableDevice)
	assert.Nil(t, inst.Device())
}

func TestCreateDevice(t *testing.T) {
	inst := gputest.NewInstance(640, 480)
	inst.Extensions = append(inst.Extensions, "VK_KHR_maintenance1")
	dev, err := CreateDevice(inst, 1, 0, []string{"VK_KHR_maintenance1", SwapchainExtension})
	require.NoError(t, err)
	mock := inst.Device()
	assert.Equal(t, []string{SwapchainExtension, "VK_KHR_maintenance1"}, mock.Extensions())
	assert.Equal(t, mock.Queue(), dev.Queue())
	assert.Equal(t, uint32(0), dev.QueueFamily())
	dev.Destroy()

	_, err = CreateDevice(inst, 1, 4, nil)
	assert.True(t, errors.Is(err, ErrNoSuitableDevice))
}

func TestHostBuffer(t *testing.T) {
	inst := gputest.NewInstance(640, 480)
	dev, err := CreateDevice(inst, 1, 0, nil)
	require.NoError(t, err)
	mock := inst.Device()

	b, err := dev.createHostBuffer(make([]byte, 64), gpu.BufferUsageUniform)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), b.size)
	assert.NoError(t, b.write(mock, make([]byte, 32)))
	assert.Error(t, b.write(mock, make([]byte, 65)))
	b.destroy(mock)
	assert.Equal(t, 0, mock.Live(""))

	mock.FailOn("BindBufferMemory", errors.New("out of memory"))
	_, err = dev.createHostBuffer(make([]byte, 64), gpu.BufferUsageVertex)
	assert.Error(t, err)
	assert.Equal(t, 0, mock.Live(""))

	dev.Destroy()
	assert.Empty(t, mock.Violations())
}
