package gputest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/andewx/vkframe/gpu"
)

type fenceState struct {
	signaled bool
	pending  bool
}

type commandState struct {
	pool      gpu.CommandPool
	recording bool
	inFlight  gpu.Fence
}

// Device is a mock gpu.Device. All methods are safe for concurrent use.
type Device struct {
	mu sync.Mutex

	inst       *Instance
	family     uint32
	extensions []string

	next      uint64
	live      map[uint64]string
	fences    map[gpu.Fence]*fenceState
	commands  map[gpu.CommandBuffer]*commandState
	images    map[gpu.Swapchain][]gpu.Image
	acquired  map[gpu.Swapchain]uint32
	setPools  map[gpu.DescriptorSet]gpu.DescriptorPool
	destroyed bool

	calls      []string
	violations []string
	viewports  []gpu.Viewport
	scissors   []gpu.Rect2D
	draws      int
	swapchains []gpu.SwapchainInfo
	submits    int
	presents   int

	acquireResults []error
	presentResults []error
	failures       map[string]error
}

var _ gpu.Device = (*Device)(nil)

func newDevice(inst *Instance, family uint32, extensions []string) *Device {
	return &Device{
		inst:       inst,
		family:     family,
		extensions: extensions,
		live:       make(map[uint64]string),
		fences:     make(map[gpu.Fence]*fenceState),
		commands:   make(map[gpu.CommandBuffer]*commandState),
		images:     make(map[gpu.Swapchain][]gpu.Image),
		acquired:   make(map[gpu.Swapchain]uint32),
		setPools:   make(map[gpu.DescriptorSet]gpu.DescriptorPool),
		failures:   make(map[string]error),
	}
}

// ScriptAcquire queues results for the next AcquireNextImage calls. A nil entry succeeds.
func (d *Device) ScriptAcquire(results ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquireResults = append(d.acquireResults, results...)
}

// ScriptPresent queues results for the next QueuePresent calls. A nil entry succeeds.
func (d *Device) ScriptPresent(results ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presentResults = append(d.presentResults, results...)
}

// FailOn makes every later call of the named method return err.
func (d *Device) FailOn(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[method] = err
}

// Calls returns the names of all calls made so far, in order.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Count returns how many times the named method was called.
func (d *Device) Count(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

func (d *Device) Viewports() []gpu.Viewport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.Viewport(nil), d.viewports...)
}

func (d *Device) Scissors() []gpu.Rect2D {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.Rect2D(nil), d.scissors...)
}

func (d *Device) Draws() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draws
}

func (d *Device) Submits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submits
}

func (d *Device) Presents() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presents
}

// SwapchainInfos returns the create info of every swapchain created so far.
func (d *Device) SwapchainInfos() []gpu.SwapchainInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.SwapchainInfo(nil), d.swapchains...)
}

func (d *Device) Extensions() []string {
	return d.extensions
}

func (d *Device) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// Live returns the number of live handles of the given kind, or of every kind when kind is empty.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.live {
		if kind == "" || k == kind {
			n++
		}
	}
	return n
}

func (d *Device) violate(format string, args ...any) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

// enter logs a call and reports whether the device may still be used. Callers hold d.mu.
func (d *Device) enter(method string) bool {
	d.calls = append(d.calls, method)
	if d.destroyed {
		d.violate("%s after device destroy", method)
		return false
	}
	return true
}

func (d *Device) fail(method string) error {
	if err, ok := d.failures[method]; ok {
		return errors.Wrap(err, method)
	}
	return nil
}

func (d *Device) alloc(kind string) uint64 {
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *Device) use(h uint64, kind, method string) bool {
	if h == 0 {
		d.violate("%s with null %s", method, kind)
		return false
	}
	k, ok := d.live[h]
	if !ok {
		d.violate("%s uses destroyed or unknown %s %d", method, kind, h)
		return false
	}
	if k != kind {
		d.violate("%s uses %s %d as %s", method, k, h, kind)
		return false
	}
	return true
}

func (d *Device) free(h uint64, kind, method string) {
	if !d.enter(method) {
		return
	}
	if h == 0 {
		return
	}
	if k, ok := d.live[h]; !ok || k != kind {
		d.violate("%s of destroyed or unknown %s %d", method, kind, h)
		return
	}
	delete(d.live, h)
}

func (d *Device) create(method, kind string) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter(method) {
		return 0, errors.Errorf("gputest: %s after device destroy", method)
	}
	if err := d.fail(method); err != nil {
		return 0, err
	}
	return d.alloc(kind), nil
}

func (d *Device) destroy(h uint64, kind, method string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free(h, kind, method)
}

func (d *Device) record(cb gpu.CommandBuffer, method string) bool {
	if !d.enter(method) || !d.use(uint64(cb), "command buffer", method) {
		return false
	}
	if st := d.commands[cb]; st == nil || !st.recording {
		d.violate("%s on command buffer %d that is not recording", method, cb)
		return false
	}
	return true
}

func (d *Device) Queue() gpu.Queue {
	return gpu.Queue(d.family + 1)
}

func (d *Device) MemoryTypes() []gpu.MemoryType {
	return []gpu.MemoryType{
		{Properties: gpu.MemoryDeviceLocal},
		{Properties: gpu.MemoryHostVisible | gpu.MemoryHostCoherent, HeapIndex: 1},
	}
}

// WaitIdle completes all pending work.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("WaitIdle") {
		return errors.New("gputest: WaitIdle after device destroy")
	}
	for f, st := range d.fences {
		if st.pending {
			d.complete(f, st)
		}
	}
	return d.fail("WaitIdle")
}

func (d *Device) complete(f gpu.Fence, st *fenceState) {
	st.pending = false
	st.signaled = true
	for _, cs := range d.commands {
		if cs.inFlight == f {
			cs.inFlight = 0
		}
	}
}

// Destroy destroys the device. Any handle still alive is reported as a leak.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("Destroy") {
		return
	}
	if len(d.live) > 0 {
		kinds := make(map[string]int)
		for _, k := range d.live {
			kinds[k]++
		}
		var parts []string
		for k, n := range kinds {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
		d.violate("device destroyed with live objects: %s", strings.Join(parts, ", "))
	}
	d.destroyed = true
}

func (d *Device) CreateSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("CreateSwapchain") {
		return 0, errors.New("gputest: CreateSwapchain after device destroy")
	}
	if info.Extent.IsZero() {
		d.violate("CreateSwapchain with zero extent %dx%d", info.Extent.Width, info.Extent.Height)
		return 0, errors.New("gputest: zero swapchain extent")
	}
	if err := d.fail("CreateSwapchain"); err != nil {
		return 0, err
	}
	d.swapchains = append(d.swapchains, info)
	sc := gpu.Swapchain(d.alloc("swapchain"))
	images := make([]gpu.Image, info.MinImageCount)
	for i := range images {
		d.next++
		images[i] = gpu.Image(d.next)
	}
	d.images[sc] = images
	return sc, nil
}

func (d *Device) DestroySwapchain(sc gpu.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free(uint64(sc), "swapchain", "DestroySwapchain")
	delete(d.images, sc)
}

func (d *Device) SwapchainImages(sc gpu.Swapchain) ([]gpu.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("SwapchainImages") || !d.use(uint64(sc), "swapchain", "SwapchainImages") {
		return nil, errors.New("gputest: invalid swapchain")
	}
	return append([]gpu.Image(nil), d.images[sc]...), nil
}

func (d *Device) AcquireNextImage(sc gpu.Swapchain, signal gpu.Semaphore) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("AcquireNextImage") || !d.use(uint64(sc), "swapchain", "AcquireNextImage") ||
		!d.use(uint64(signal), "semaphore", "AcquireNextImage") {
		return 0, errors.New("gputest: invalid acquire")
	}
	if len(d.acquireResults) > 0 {
		err := d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
		if err != nil {
			return 0, err
		}
	}
	n := uint32(len(d.images[sc]))
	idx := d.acquired[sc]
	d.acquired[sc] = (idx + 1) % n
	return idx, nil
}

func (d *Device) QueuePresent(q gpu.Queue, info gpu.PresentInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("QueuePresent") || !d.use(uint64(info.Swapchain), "swapchain", "QueuePresent") {
		return errors.New("gputest: invalid present")
	}
	for _, s := range info.Wait {
		d.use(uint64(s), "semaphore", "QueuePresent")
	}
	if info.ImageIndex >= uint32(len(d.images[info.Swapchain])) {
		d.violate("QueuePresent of image %d out of range", info.ImageIndex)
	}
	if len(d.presentResults) > 0 {
		err := d.presentResults[0]
		d.presentResults = d.presentResults[1:]
		if err != nil {
			return err
		}
	}
	d.presents++
	return nil
}

func (d *Device) CreateImage(info gpu.ImageInfo) (gpu.Image, error) {
	if info.Extent.IsZero() {
		d.mu.Lock()
		d.violate("CreateImage with zero extent")
		d.mu.Unlock()
	}
	h, err := d.create("CreateImage", "image")
	return gpu.Image(h), err
}

func (d *Device) DestroyImage(img gpu.Image) { d.destroy(uint64(img), "image", "DestroyImage") }

func (d *Device) ImageMemoryRequirements(img gpu.Image) gpu.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enter("ImageMemoryRequirements") {
		d.use(uint64(img), "image", "ImageMemoryRequirements")
	}
	return gpu.MemoryRequirements{Size: 4096, Alignment: 256, MemoryTypeBits: 0x3}
}

func (d *Device) CreateImageView(info gpu.ImageViewInfo) (gpu.ImageView, error) {
	d.mu.Lock()
	owned := false
	for _, imgs := range d.images {
		for _, img := range imgs {
			if img == info.Image {
				owned = true
			}
		}
	}
	if !owned {
		d.use(uint64(info.Image), "image", "CreateImageView")
	}
	d.mu.Unlock()
	h, err := d.create("CreateImageView", "image view")
	return gpu.ImageView(h), err
}

func (d *Device) DestroyImageView(v gpu.ImageView) {
	d.destroy(uint64(v), "image view", "DestroyImageView")
}

func (d *Device) CreateSampler() (gpu.Sampler, error) {
	h, err := d.create("CreateSampler", "sampler")
	return gpu.Sampler(h), err
}

func (d *Device) DestroySampler(s gpu.Sampler) { d.destroy(uint64(s), "sampler", "DestroySampler") }

func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	if size == 0 {
		d.mu.Lock()
		d.violate("CreateBuffer with zero size")
		d.mu.Unlock()
	}
	h, err := d.create("CreateBuffer", "buffer")
	return gpu.Buffer(h), err
}

func (d *Device) DestroyBuffer(b gpu.Buffer) { d.destroy(uint64(b), "buffer", "DestroyBuffer") }

func (d *Device) BufferMemoryRequirements(b gpu.Buffer) gpu.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enter("BufferMemoryRequirements") {
		d.use(uint64(b), "buffer", "BufferMemoryRequirements")
	}
	return gpu.MemoryRequirements{Size: 1024, Alignment: 16, MemoryTypeBits: 0x3}
}

func (d *Device) AllocateMemory(size uint64, typeIndex uint32) (gpu.Memory, error) {
	h, err := d.create("AllocateMemory", "memory")
	return gpu.Memory(h), err
}

func (d *Device) FreeMemory(m gpu.Memory) { d.destroy(uint64(m), "memory", "FreeMemory") }

func (d *Device) BindImageMemory(img gpu.Image, m gpu.Memory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("BindImageMemory") || !d.use(uint64(img), "image", "BindImageMemory") ||
		!d.use(uint64(m), "memory", "BindImageMemory") {
		return errors.New("gputest: invalid bind")
	}
	return d.fail("BindImageMemory")
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.Memory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("BindBufferMemory") || !d.use(uint64(b), "buffer", "BindBufferMemory") ||
		!d.use(uint64(m), "memory", "BindBufferMemory") {
		return errors.New("gputest: invalid bind")
	}
	return d.fail("BindBufferMemory")
}

func (d *Device) WriteMemory(m gpu.Memory, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("WriteMemory") || !d.use(uint64(m), "memory", "WriteMemory") {
		return errors.New("gputest: invalid memory write")
	}
	return d.fail("WriteMemory")
}

func (d *Device) CreateRenderPass(color, depth gpu.Format) (gpu.RenderPass, error) {
	h, err := d.create("CreateRenderPass", "render pass")
	return gpu.RenderPass(h), err
}

func (d *Device) DestroyRenderPass(rp gpu.RenderPass) {
	d.destroy(uint64(rp), "render pass", "DestroyRenderPass")
}

func (d *Device) CreateFramebuffer(rp gpu.RenderPass, attachments []gpu.ImageView, extent gpu.Extent2D) (gpu.Framebuffer, error) {
	d.mu.Lock()
	d.use(uint64(rp), "render pass", "CreateFramebuffer")
	for _, v := range attachments {
		d.use(uint64(v), "image view", "CreateFramebuffer")
	}
	d.mu.Unlock()
	h, err := d.create("CreateFramebuffer", "framebuffer")
	return gpu.Framebuffer(h), err
}

func (d *Device) DestroyFramebuffer(fb gpu.Framebuffer) {
	d.destroy(uint64(fb), "framebuffer", "DestroyFramebuffer")
}

func (d *Device) CreateCommandPool(family uint32) (gpu.CommandPool, error) {
	h, err := d.create("CreateCommandPool", "command pool")
	return gpu.CommandPool(h), err
}

// DestroyCommandPool also frees the command buffers allocated from the pool.
func (d *Device) DestroyCommandPool(p gpu.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free(uint64(p), "command pool", "DestroyCommandPool")
	for cb, st := range d.commands {
		if st.pool != p {
			continue
		}
		if st.inFlight != 0 {
			if fs := d.fences[st.inFlight]; fs != nil && fs.pending {
				d.violate("command pool destroyed while command buffer %d is executing", cb)
			}
		}
		delete(d.live, uint64(cb))
		delete(d.commands, cb)
	}
}

func (d *Device) AllocateCommandBuffers(p gpu.CommandPool, count int) ([]gpu.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("AllocateCommandBuffers") || !d.use(uint64(p), "command pool", "AllocateCommandBuffers") {
		return nil, errors.New("gputest: invalid command pool")
	}
	out := make([]gpu.CommandBuffer, count)
	for i := range out {
		cb := gpu.CommandBuffer(d.alloc("command buffer"))
		d.commands[cb] = &commandState{pool: p}
		out[i] = cb
	}
	return out, nil
}

func (d *Device) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("ResetCommandBuffer") || !d.use(uint64(cb), "command buffer", "ResetCommandBuffer") {
		return errors.New("gputest: invalid command buffer")
	}
	st := d.commands[cb]
	if st.inFlight != 0 {
		d.violate("command buffer %d reset while its submission is executing", cb)
	}
	st.recording = false
	return d.fail("ResetCommandBuffer")
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("BeginCommandBuffer") || !d.use(uint64(cb), "command buffer", "BeginCommandBuffer") {
		return errors.New("gputest: invalid command buffer")
	}
	st := d.commands[cb]
	if st.inFlight != 0 {
		d.violate("command buffer %d recorded while its submission is executing", cb)
	}
	if st.recording {
		d.violate("command buffer %d begun twice", cb)
	}
	st.recording = true
	return d.fail("BeginCommandBuffer")
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.record(cb, "EndCommandBuffer") {
		return errors.New("gputest: invalid command buffer")
	}
	d.commands[cb].recording = false
	return d.fail("EndCommandBuffer")
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	h, err := d.create("CreateFence", "fence")
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	d.fences[gpu.Fence(h)] = &fenceState{signaled: signaled}
	d.mu.Unlock()
	return gpu.Fence(h), nil
}

func (d *Device) DestroyFence(f gpu.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st := d.fences[f]; st != nil && st.pending {
		d.violate("fence %d destroyed while its submission is executing", f)
	}
	d.free(uint64(f), "fence", "DestroyFence")
	delete(d.fences, f)
}

// WaitForFence completes the work guarded by f. Waiting on a fence that is neither
// signaled nor pending would block forever and is reported instead.
func (d *Device) WaitForFence(f gpu.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("WaitForFence") || !d.use(uint64(f), "fence", "WaitForFence") {
		return errors.New("gputest: invalid fence")
	}
	st := d.fences[f]
	switch {
	case st.pending:
		d.complete(f, st)
	case !st.signaled:
		d.violate("wait on fence %d that can never signal", f)
		return errors.Errorf("gputest: fence %d would deadlock", f)
	}
	return d.fail("WaitForFence")
}

func (d *Device) ResetFence(f gpu.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("ResetFence") || !d.use(uint64(f), "fence", "ResetFence") {
		return errors.New("gputest: invalid fence")
	}
	st := d.fences[f]
	if st.pending {
		d.violate("fence %d reset while its submission is executing", f)
	}
	st.signaled = false
	return d.fail("ResetFence")
}

// FenceSignaled reports whether f is signaled.
func (d *Device) FenceSignaled(f gpu.Fence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.fences[f]
	return st != nil && st.signaled
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	h, err := d.create("CreateSemaphore", "semaphore")
	return gpu.Semaphore(h), err
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	d.destroy(uint64(s), "semaphore", "DestroySemaphore")
}

func (d *Device) QueueSubmit(q gpu.Queue, info gpu.SubmitInfo, signal gpu.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("QueueSubmit") {
		return errors.New("gputest: QueueSubmit after device destroy")
	}
	if err := d.fail("QueueSubmit"); err != nil {
		return err
	}
	if len(info.Wait) != len(info.WaitStages) {
		d.violate("QueueSubmit with %d wait semaphores and %d stages", len(info.Wait), len(info.WaitStages))
	}
	for _, s := range append(append([]gpu.Semaphore(nil), info.Wait...), info.Signal...) {
		d.use(uint64(s), "semaphore", "QueueSubmit")
	}
	for _, cb := range info.Commands {
		if !d.use(uint64(cb), "command buffer", "QueueSubmit") {
			continue
		}
		st := d.commands[cb]
		if st.recording {
			d.violate("QueueSubmit of command buffer %d still recording", cb)
		}
		st.inFlight = signal
	}
	if signal != 0 {
		if d.use(uint64(signal), "fence", "QueueSubmit") {
			st := d.fences[signal]
			if st.signaled || st.pending {
				d.violate("QueueSubmit with fence %d that was not reset", signal)
			}
			st.pending = true
		}
	}
	d.submits++
	return nil
}

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	h, err := d.create("CreateShaderModule", "shader module")
	return gpu.ShaderModule(h), err
}

func (d *Device) DestroyShaderModule(m gpu.ShaderModule) {
	d.destroy(uint64(m), "shader module", "DestroyShaderModule")
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	h, err := d.create("CreateDescriptorSetLayout", "descriptor set layout")
	return gpu.DescriptorSetLayout(h), err
}

func (d *Device) DestroyDescriptorSetLayout(l gpu.DescriptorSetLayout) {
	d.destroy(uint64(l), "descriptor set layout", "DestroyDescriptorSetLayout")
}

func (d *Device) CreateDescriptorPool(sizes []gpu.DescriptorPoolSize, maxSets uint32) (gpu.DescriptorPool, error) {
	h, err := d.create("CreateDescriptorPool", "descriptor pool")
	return gpu.DescriptorPool(h), err
}

// DestroyDescriptorPool also frees the sets allocated from it.
func (d *Device) DestroyDescriptorPool(p gpu.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free(uint64(p), "descriptor pool", "DestroyDescriptorPool")
	for set, pool := range d.setPools {
		if pool == p {
			delete(d.live, uint64(set))
			delete(d.setPools, set)
		}
	}
}

func (d *Device) AllocateDescriptorSet(p gpu.DescriptorPool, l gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	d.mu.Lock()
	d.use(uint64(p), "descriptor pool", "AllocateDescriptorSet")
	d.use(uint64(l), "descriptor set layout", "AllocateDescriptorSet")
	d.mu.Unlock()
	h, err := d.create("AllocateDescriptorSet", "descriptor set")
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	d.setPools[gpu.DescriptorSet(h)] = p
	d.mu.Unlock()
	return gpu.DescriptorSet(h), nil
}

func (d *Device) UpdateDescriptorSet(set gpu.DescriptorSet, writes []gpu.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.enter("UpdateDescriptorSet") {
		return
	}
	d.use(uint64(set), "descriptor set", "UpdateDescriptorSet")
	for _, w := range writes {
		switch w.Type {
		case gpu.DescriptorUniformBuffer:
			d.use(uint64(w.Buffer), "buffer", "UpdateDescriptorSet")
		case gpu.DescriptorCombinedImageSampler:
			d.use(uint64(w.View), "image view", "UpdateDescriptorSet")
			d.use(uint64(w.Sampler), "sampler", "UpdateDescriptorSet")
		}
	}
}

func (d *Device) CreatePipelineLayout(sets []gpu.DescriptorSetLayout, pushConstantSize uint32) (gpu.PipelineLayout, error) {
	h, err := d.create("CreatePipelineLayout", "pipeline layout")
	return gpu.PipelineLayout(h), err
}

func (d *Device) DestroyPipelineLayout(l gpu.PipelineLayout) {
	d.destroy(uint64(l), "pipeline layout", "DestroyPipelineLayout")
}

func (d *Device) CreateGraphicsPipeline(info gpu.PipelineInfo) (gpu.Pipeline, error) {
	d.mu.Lock()
	d.use(uint64(info.RenderPass), "render pass", "CreateGraphicsPipeline")
	d.use(uint64(info.Layout), "pipeline layout", "CreateGraphicsPipeline")
	d.use(uint64(info.Vertex), "shader module", "CreateGraphicsPipeline")
	d.use(uint64(info.Fragment), "shader module", "CreateGraphicsPipeline")
	d.mu.Unlock()
	h, err := d.create("CreateGraphicsPipeline", "pipeline")
	return gpu.Pipeline(h), err
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) { d.destroy(uint64(p), "pipeline", "DestroyPipeline") }

func (d *Device) CmdImageBarrier(cb gpu.CommandBuffer, b gpu.ImageBarrier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record(cb, "CmdImageBarrier") {
		d.use(uint64(b.Image), "image", "CmdImageBarrier")
	}
}

func (d *Device) CmdCopyBufferToImage(cb gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, extent gpu.Extent2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record(cb, "CmdCopyBufferToImage") {
		d.use(uint64(src), "buffer", "CmdCopyBufferToImage")
		d.use(uint64(dst), "image", "CmdCopyBufferToImage")
	}
}

func (d *Device) CmdBeginRenderPass(cb gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record(cb, "CmdBeginRenderPass") {
		d.use(uint64(begin.RenderPass), "render pass", "CmdBeginRenderPass")
		d.use(uint64(begin.Framebuffer), "framebuffer", "CmdBeginRenderPass")
	}
}

func (d *Device) CmdEndRenderPass(cb gpu.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cb, "CmdEndRenderPass")
}

func (d *Device) CmdBindPipeline(cb gpu.CommandBuffer, p gpu.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record(cb, "CmdBindPipeline") {
		d.use(uint64(p), "pipeline", "CmdBindPipeline")
	}
}

func (d *Device) CmdSetViewport(cb gpu.CommandBuffer, vp gpu.Viewport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record(cb, "CmdSetViewport") {
		d.viewports = append(d.viewports, vp)
	}
}

func (d *Device) CmdSetScissor(cb gpu.CommandBuffer, r gpu.Rect2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record(cb, "CmdSetScissor") {
		d.scissors = append(d.scissors, r)
	}
}

func (d *Device) CmdBindDescriptorSets(cb gpu.CommandBuffer, l gpu.PipelineLayout, sets []gpu.DescriptorSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record(cb, "CmdBindDescriptorSets") {
		d.use(uint64(l), "pipeline layout", "CmdBindDescriptorSets")
		for _, s := range sets {
			d.use(uint64(s), "descriptor set", "CmdBindDescriptorSets")
		}
	}
}

func (d *Device) CmdPushConstants(cb gpu.CommandBuffer, l gpu.PipelineLayout, stages gpu.ShaderStage, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record(cb, "CmdPushConstants") {
		d.use(uint64(l), "pipeline layout", "CmdPushConstants")
		if len(data) == 0 || len(data)%4 != 0 {
			d.violate("CmdPushConstants with %d bytes", len(data))
		}
	}
}

func (d *Device) CmdBindVertexBuffer(cb gpu.CommandBuffer, b gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record(cb, "CmdBindVertexBuffer") {
		d.use(uint64(b), "buffer", "CmdBindVertexBuffer")
	}
}

func (d *Device) CmdBindIndexBuffer(cb gpu.CommandBuffer, b gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record(cb, "CmdBindIndexBuffer") {
		d.use(uint64(b), "buffer", "CmdBindIndexBuffer")
	}
}

func (d *Device) CmdDrawIndexed(cb gpu.CommandBuffer, indexCount uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record(cb, "CmdDrawIndexed") {
		d.draws++
	}
}
