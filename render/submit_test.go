package render

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/vkframe/gpu"
	"github.com/andewx/vkframe/gpu/gputest"
)

type submitRig struct {
	mock  *gputest.Device
	pool  gpu.CommandPool
	cb    gpu.CommandBuffer
	fence gpu.Fence
	queue gpu.Queue
}

func newSubmitRig(t *testing.T) *submitRig {
	t.Helper()
	inst := gputest.NewInstance(640, 480)
	d, err := inst.CreateDevice(1, 0, []string{SwapchainExtension})
	require.NoError(t, err)
	rig := &submitRig{mock: d.(*gputest.Device), queue: d.Queue()}
	rig.pool, err = d.CreateCommandPool(0)
	require.NoError(t, err)
	cbs, err := d.AllocateCommandBuffers(rig.pool, 1)
	require.NoError(t, err)
	rig.cb = cbs[0]
	rig.fence, err = d.CreateFence(true)
	require.NoError(t, err)
	return rig
}

func (rig *submitRig) submission() Submission {
	return Submission{Command: rig.cb, Fence: rig.fence, Queue: rig.queue}
}

var protocol = map[string]bool{
	"WaitForFence":       true,
	"ResetFence":         true,
	"ResetCommandBuffer": true,
	"BeginCommandBuffer": true,
	"CmdSetScissor":      true,
	"EndCommandBuffer":   true,
	"QueueSubmit":        true,
}

func TestRecordAndSubmitWaitsBeforeReuse(t *testing.T) {
	rig := newSubmitRig(t)
	const n = 5
	recorded := 0
	rec := RecorderFunc(func(r *Recording) error {
		assert.Equal(t, rig.cb, r.Command)
		r.Device.CmdSetScissor(r.Command, gpu.Rect2D{Extent: gpu.Extent2D{Width: 1, Height: 1}})
		recorded++
		return nil
	})
	for i := 0; i < n; i++ {
		require.NoError(t, RecordAndSubmit(rig.mock, rig.submission(), rec))
	}
	assert.Equal(t, n, recorded)
	assert.Equal(t, n, rig.mock.Submits())

	var seq []string
	for _, c := range rig.mock.Calls() {
		if protocol[c] {
			seq = append(seq, c)
		}
	}
	want := []string{
		"WaitForFence", "ResetFence", "ResetCommandBuffer", "BeginCommandBuffer",
		"CmdSetScissor", "EndCommandBuffer", "QueueSubmit",
	}
	require.Len(t, seq, n*len(want))
	for i := 0; i < n; i++ {
		assert.Equal(t, want, seq[i*len(want):(i+1)*len(want)], "call %d", i)
	}
	assert.Empty(t, rig.mock.Violations())
}

func TestMockFlagsReuseWithoutWait(t *testing.T) {
	rig := newSubmitRig(t)
	require.NoError(t, RecordAndSubmit(rig.mock, rig.submission(), RecorderFunc(func(*Recording) error { return nil })))

	// Re-recording while the fence is still pending must be caught.
	require.NoError(t, rig.mock.ResetCommandBuffer(rig.cb))
	assert.NotEmpty(t, rig.mock.Violations())
}

func TestRecordAndSubmitSignalsFence(t *testing.T) {
	rig := newSubmitRig(t)
	require.NoError(t, RecordAndSubmit(rig.mock, rig.submission(), RecorderFunc(func(*Recording) error { return nil })))
	assert.False(t, rig.mock.FenceSignaled(rig.fence))
	require.NoError(t, rig.mock.WaitForFence(rig.fence))
	assert.True(t, rig.mock.FenceSignaled(rig.fence))
}

func TestRecordAndSubmitRecorderError(t *testing.T) {
	rig := newSubmitRig(t)
	boom := errors.New("boom")
	err := RecordAndSubmit(rig.mock, rig.submission(), RecorderFunc(func(*Recording) error { return boom }))
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 0, rig.mock.Count("QueueSubmit"))
	assert.False(t, rig.mock.FenceSignaled(rig.fence))
}

func TestRecordAndSubmitSubmitError(t *testing.T) {
	rig := newSubmitRig(t)
	rig.mock.FailOn("QueueSubmit", gpu.ErrDeviceLost)
	err := RecordAndSubmit(rig.mock, rig.submission(), RecorderFunc(func(*Recording) error { return nil }))
	assert.True(t, errors.Is(err, gpu.ErrDeviceLost))
}
