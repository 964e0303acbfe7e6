package render

import (
	lin "github.com/xlab/linmath"

	"github.com/andewx/vkframe/gpu"
)

// drawPass records one frame: clear, bind the pipeline and its descriptor set, set the
// dynamic viewport and scissor, then one indexed draw per mesh.
type drawPass struct {
	pipe        *pipelineSet
	framebuffer gpu.Framebuffer
	extent      gpu.Extent2D
	viewport    gpu.Viewport
	clear       gpu.ClearValues
	camera      *Camera
	meshes      []*registeredMesh
}

func (p *drawPass) Record(r *Recording) error {
	d, cb := r.Device, r.Command
	area := gpu.Rect2D{Extent: p.extent}
	d.CmdBeginRenderPass(cb, gpu.RenderPassBegin{
		RenderPass:  p.pipe.renderPass,
		Framebuffer: p.framebuffer,
		Area:        area,
		Clear:       p.clear,
	})
	d.CmdBindDescriptorSets(cb, p.pipe.layout, []gpu.DescriptorSet{p.pipe.descSet})
	d.CmdBindPipeline(cb, p.pipe.pipeline)
	d.CmdSetViewport(cb, p.viewport)
	d.CmdSetScissor(cb, area)

	var projView [2]lin.Mat4x4
	projView[Perspective] = p.camera.ProjectionView(Perspective)
	projView[Orthographic] = p.camera.ProjectionView(Orthographic)
	for _, m := range p.meshes {
		var mvp lin.Mat4x4
		mvp.Mult(&projView[m.mesh.Projection], &m.mesh.Transform)
		d.CmdPushConstants(cb, p.pipe.layout, gpu.ShaderStageVertex, mvp.Data())
		d.CmdBindVertexBuffer(cb, m.vertices.buffer)
		d.CmdBindIndexBuffer(cb, m.indices.buffer)
		d.CmdDrawIndexed(cb, uint32(len(m.mesh.Indices)))
	}
	d.CmdEndRenderPass(cb)
	return nil
}

// depthTransition moves a new depth image into the attachment layout once per generation.
type depthTransition struct {
	image gpu.Image
}

func (t depthTransition) Record(r *Recording) error {
	r.Device.CmdImageBarrier(r.Command, gpu.ImageBarrier{
		Image:     t.image,
		Aspect:    gpu.AspectDepth,
		OldLayout: gpu.LayoutUndefined,
		NewLayout: gpu.LayoutDepthStencilAttachment,
		SrcStage:  gpu.StageTopOfPipe,
		DstStage:  gpu.StageEarlyFragmentTests,
	})
	return nil
}

// textureUpload copies a staging buffer into a color image and leaves it shader readable.
type textureUpload struct {
	src    gpu.Buffer
	dst    gpu.Image
	extent gpu.Extent2D
}

func (t textureUpload) Record(r *Recording) error {
	r.Device.CmdImageBarrier(r.Command, gpu.ImageBarrier{
		Image:     t.dst,
		Aspect:    gpu.AspectColor,
		OldLayout: gpu.LayoutUndefined,
		NewLayout: gpu.LayoutTransferDst,
		SrcStage:  gpu.StageTopOfPipe,
		DstStage:  gpu.StageTransfer,
	})
	r.Device.CmdCopyBufferToImage(r.Command, t.src, t.dst, t.extent)
	r.Device.CmdImageBarrier(r.Command, gpu.ImageBarrier{
		Image:     t.dst,
		Aspect:    gpu.AspectColor,
		OldLayout: gpu.LayoutTransferDst,
		NewLayout: gpu.LayoutShaderReadOnly,
		SrcStage:  gpu.StageTransfer,
		DstStage:  gpu.StageFragmentShader,
	})
	return nil
}
