package render

import (
	"github.com/pkg/errors"

	"github.com/andewx/vkframe/gpu"
)

// Submission names the command buffer, its reuse fence and the queue-side synchronization
// of one RecordAndSubmit call.
type Submission struct {
	Command    gpu.CommandBuffer
	Fence      gpu.Fence
	Queue      gpu.Queue
	Wait       []gpu.Semaphore
	WaitStages []gpu.PipelineStage
	Signal     []gpu.Semaphore
}

// Recording is the context a Recorder fills: the device commands are recorded through and
// the command buffer in the recording state.
type Recording struct {
	Device  gpu.CommandRecorder
	Command gpu.CommandBuffer
}

// Recorder records commands into a command buffer.
type Recorder interface {
	Record(r *Recording) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(r *Recording) error

func (f RecorderFunc) Record(r *Recording) error { return f(r) }

// RecordAndSubmit re-records sub.Command and submits it.
//
// It first blocks until sub.Fence is signaled, so the previous submission of the command
// buffer has finished executing. The fence is then reset, the command buffer reset and
// recorded by rec, and the submission signals the fence again on completion. Create the
// fence signaled so that the first call does not block.
//
// A recorder error leaves the fence reset and nothing submitted.
func RecordAndSubmit(dev gpu.Device, sub Submission, rec Recorder) error {
	if err := dev.WaitForFence(sub.Fence); err != nil {
		return errors.Wrap(err, "wait for reuse fence")
	}
	if err := dev.ResetFence(sub.Fence); err != nil {
		return errors.Wrap(err, "reset reuse fence")
	}
	if err := dev.ResetCommandBuffer(sub.Command); err != nil {
		return errors.Wrap(err, "reset command buffer")
	}
	if err := dev.BeginCommandBuffer(sub.Command); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}
	if err := rec.Record(&Recording{Device: dev, Command: sub.Command}); err != nil {
		return errors.Wrap(err, "record")
	}
	if err := dev.EndCommandBuffer(sub.Command); err != nil {
		return errors.Wrap(err, "end command buffer")
	}
	err := dev.QueueSubmit(sub.Queue, gpu.SubmitInfo{
		Wait:       sub.Wait,
		WaitStages: sub.WaitStages,
		Commands:   []gpu.CommandBuffer{sub.Command},
		Signal:     sub.Signal,
	}, sub.Fence)
	return errors.Wrap(err, "queue submit")
}

// frameSync is the device-scoped command and synchronization state of a window: one pool
// with a setup and a draw command buffer, their reuse fences and the two semaphores that
// order acquire, render and present.
type frameSync struct {
	pool          gpu.CommandPool
	setup         gpu.CommandBuffer
	draw          gpu.CommandBuffer
	setupFence    gpu.Fence
	drawFence     gpu.Fence
	imageAcquired gpu.Semaphore
	renderDone    gpu.Semaphore
}

func newFrameSync(dev *Device) (*frameSync, error) {
	d := dev.gpu
	s := &frameSync{}
	var err error
	if s.pool, err = d.CreateCommandPool(dev.QueueFamily()); err != nil {
		return nil, errors.Wrap(err, "create command pool")
	}
	cbs, err := d.AllocateCommandBuffers(s.pool, 2)
	if err != nil {
		s.destroy(d)
		return nil, errors.Wrap(err, "allocate command buffers")
	}
	s.setup, s.draw = cbs[0], cbs[1]
	if s.setupFence, err = d.CreateFence(true); err != nil {
		s.destroy(d)
		return nil, errors.Wrap(err, "create setup fence")
	}
	if s.drawFence, err = d.CreateFence(true); err != nil {
		s.destroy(d)
		return nil, errors.Wrap(err, "create draw fence")
	}
	if s.imageAcquired, err = d.CreateSemaphore(); err != nil {
		s.destroy(d)
		return nil, errors.Wrap(err, "create image acquired semaphore")
	}
	if s.renderDone, err = d.CreateSemaphore(); err != nil {
		s.destroy(d)
		return nil, errors.Wrap(err, "create render complete semaphore")
	}
	return s, nil
}

// runSetup runs rec on the setup command buffer and waits for it to finish.
func (s *frameSync) runSetup(dev *Device, rec Recorder) error {
	d := dev.gpu
	err := RecordAndSubmit(d, Submission{
		Command: s.setup,
		Fence:   s.setupFence,
		Queue:   dev.Queue(),
	}, rec)
	if err != nil {
		return err
	}
	return errors.Wrap(d.WaitForFence(s.setupFence), "wait for setup")
}

func (s *frameSync) destroy(dev gpu.Device) {
	dev.DestroySemaphore(s.renderDone)
	dev.DestroySemaphore(s.imageAcquired)
	dev.DestroyFence(s.drawFence)
	dev.DestroyFence(s.setupFence)
	dev.DestroyCommandPool(s.pool)
	*s = frameSync{}
}
