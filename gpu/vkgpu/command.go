package vkgpu

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkframe/gpu"
)

// accessFor returns the memory accesses an image in layout l takes part in.
func accessFor(l gpu.Layout) vk.AccessFlags {
	switch l {
	case gpu.LayoutTransferDst:
		return vk.AccessFlags(vk.AccessTransferWriteBit)
	case gpu.LayoutShaderReadOnly:
		return vk.AccessFlags(vk.AccessShaderReadBit)
	case gpu.LayoutColorAttachment:
		return vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	case gpu.LayoutDepthStencilAttachment:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
	case gpu.LayoutPresentSrc:
		return vk.AccessFlags(vk.AccessMemoryReadBit)
	}
	return 0
}

func (d *Device) CmdImageBarrier(cb gpu.CommandBuffer, b gpu.ImageBarrier) {
	vk.CmdPipelineBarrier(d.cmd(cb),
		vk.PipelineStageFlags(b.SrcStage),
		vk.PipelineStageFlags(b.DstStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       accessFor(b.OldLayout),
			DstAccessMask:       accessFor(b.NewLayout),
			OldLayout:           vk.ImageLayout(b.OldLayout),
			NewLayout:           vk.ImageLayout(b.NewLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               lookup[vk.Image](d.objs, uint64(b.Image)),
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(b.Aspect),
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
}

// CmdCopyBufferToImage copies tightly packed texels into the color aspect of dst, which
// must be in the transfer destination layout.
func (d *Device) CmdCopyBufferToImage(cb gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, e gpu.Extent2D) {
	vk.CmdCopyBufferToImage(d.cmd(cb),
		lookup[vk.Buffer](d.objs, uint64(src)),
		lookup[vk.Image](d.objs, uint64(dst)),
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: e.Width, Height: e.Height, Depth: 1},
		}})
}

func (d *Device) CmdBeginRenderPass(cb gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	clear := make([]vk.ClearValue, 2)
	clear[0].SetColor(begin.Clear.Color[:])
	clear[1].SetDepthStencil(begin.Clear.Depth, 0)
	vk.CmdBeginRenderPass(d.cmd(cb), &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  lookup[vk.RenderPass](d.objs, uint64(begin.RenderPass)),
		Framebuffer: lookup[vk.Framebuffer](d.objs, uint64(begin.Framebuffer)),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: begin.Area.Offset.X, Y: begin.Area.Offset.Y},
			Extent: vk.Extent2D{Width: begin.Area.Extent.Width, Height: begin.Area.Extent.Height},
		},
		ClearValueCount: uint32(len(clear)),
		PClearValues:    clear,
	}, vk.SubpassContentsInline)
}

func (d *Device) CmdEndRenderPass(cb gpu.CommandBuffer) {
	vk.CmdEndRenderPass(d.cmd(cb))
}

func (d *Device) CmdBindPipeline(cb gpu.CommandBuffer, p gpu.Pipeline) {
	vk.CmdBindPipeline(d.cmd(cb), vk.PipelineBindPointGraphics, lookup[vk.Pipeline](d.objs, uint64(p)))
}

func (d *Device) CmdSetViewport(cb gpu.CommandBuffer, vp gpu.Viewport) {
	vk.CmdSetViewport(d.cmd(cb), 0, 1, []vk.Viewport{{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}})
}

func (d *Device) CmdSetScissor(cb gpu.CommandBuffer, r gpu.Rect2D) {
	vk.CmdSetScissor(d.cmd(cb), 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: r.Offset.X, Y: r.Offset.Y},
		Extent: vk.Extent2D{Width: r.Extent.Width, Height: r.Extent.Height},
	}})
}

func (d *Device) CmdBindDescriptorSets(cb gpu.CommandBuffer, l gpu.PipelineLayout, sets []gpu.DescriptorSet) {
	list := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		list[i] = lookup[vk.DescriptorSet](d.objs, uint64(s))
	}
	vk.CmdBindDescriptorSets(d.cmd(cb), vk.PipelineBindPointGraphics,
		lookup[vk.PipelineLayout](d.objs, uint64(l)), 0, uint32(len(list)), list, 0, nil)
}

func (d *Device) CmdPushConstants(cb gpu.CommandBuffer, l gpu.PipelineLayout, stages gpu.ShaderStage, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(d.cmd(cb), lookup[vk.PipelineLayout](d.objs, uint64(l)),
		vk.ShaderStageFlags(stages), 0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (d *Device) CmdBindVertexBuffer(cb gpu.CommandBuffer, b gpu.Buffer) {
	vk.CmdBindVertexBuffers(d.cmd(cb), 0, 1, []vk.Buffer{lookup[vk.Buffer](d.objs, uint64(b))}, []vk.DeviceSize{0})
}

func (d *Device) CmdBindIndexBuffer(cb gpu.CommandBuffer, b gpu.Buffer) {
	vk.CmdBindIndexBuffer(d.cmd(cb), lookup[vk.Buffer](d.objs, uint64(b)), 0, vk.IndexTypeUint32)
}

func (d *Device) CmdDrawIndexed(cb gpu.CommandBuffer, indexCount uint32) {
	vk.CmdDrawIndexed(d.cmd(cb), indexCount, 1, 0, 0, 0)
}
