package vkgpu

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkframe/gpu"
)

// CreateRenderPass creates a single subpass pass with a cleared color attachment that ends
// ready for presentation and a cleared depth attachment.
func (d *Device) CreateRenderPass(color, depth gpu.Format) (gpu.RenderPass, error) {
	attachments := []vk.AttachmentDescription{
		{
			Format:         vk.Format(color),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		},
		{
			Format:         vk.Format(depth),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}
	colorRefs := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	depthRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	subpasses := []vk.SubpassDescription{{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: &depthRef,
	}}
	// Attachment writes wait for earlier work on the same attachments.
	dependencies := []vk.SubpassDependency{{
		SrcSubpass:    vk.MaxUint32,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}}
	var rp vk.RenderPass
	ret := vk.CreateRenderPass(d.device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}, nil, &rp)
	if err := check(ret, "vkCreateRenderPass"); err != nil {
		return 0, err
	}
	return gpu.RenderPass(d.objs.add(rp)), nil
}

func (d *Device) DestroyRenderPass(h gpu.RenderPass) {
	if rp := take[vk.RenderPass](d.objs, uint64(h)); rp != vk.NullRenderPass {
		vk.DestroyRenderPass(d.device, rp, nil)
	}
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	list := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		list[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	var l vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(d.device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(list)),
		PBindings:    list,
	}, nil, &l)
	if err := check(ret, "vkCreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	return gpu.DescriptorSetLayout(d.objs.add(l)), nil
}

func (d *Device) DestroyDescriptorSetLayout(h gpu.DescriptorSetLayout) {
	if l := take[vk.DescriptorSetLayout](d.objs, uint64(h)); l != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(d.device, l, nil)
	}
}

func (d *Device) CreateDescriptorPool(sizes []gpu.DescriptorPoolSize, maxSets uint32) (gpu.DescriptorPool, error) {
	list := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		list[i] = vk.DescriptorPoolSize{Type: vk.DescriptorType(s.Type), DescriptorCount: s.Count}
	}
	var p vk.DescriptorPool
	ret := vk.CreateDescriptorPool(d.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(list)),
		PPoolSizes:    list,
	}, nil, &p)
	if err := check(ret, "vkCreateDescriptorPool"); err != nil {
		return 0, err
	}
	return gpu.DescriptorPool(d.objs.add(&descriptorPool{handle: p})), nil
}

// DestroyDescriptorPool destroys the pool and every set allocated from it.
func (d *Device) DestroyDescriptorPool(h gpu.DescriptorPool) {
	p := take[*descriptorPool](d.objs, uint64(h))
	if p == nil {
		return
	}
	for _, s := range p.sets {
		d.objs.remove(s)
	}
	vk.DestroyDescriptorPool(d.device, p.handle, nil)
}

func (d *Device) AllocateDescriptorSet(h gpu.DescriptorPool, l gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	p := lookup[*descriptorPool](d.objs, uint64(h))
	if p == nil {
		return 0, errors.Errorf("vulkan: unknown descriptor pool %d", h)
	}
	var set vk.DescriptorSet
	ret := vk.AllocateDescriptorSets(d.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{lookup[vk.DescriptorSetLayout](d.objs, uint64(l))},
	}, &set)
	if err := check(ret, "vkAllocateDescriptorSets"); err != nil {
		return 0, err
	}
	id := d.objs.add(set)
	p.sets = append(p.sets, id)
	return gpu.DescriptorSet(id), nil
}

func (d *Device) UpdateDescriptorSet(h gpu.DescriptorSet, writes []gpu.DescriptorWrite) {
	set := lookup[vk.DescriptorSet](d.objs, uint64(h))
	list := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		wd := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      w.Binding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorType(w.Type),
		}
		switch w.Type {
		case gpu.DescriptorUniformBuffer:
			wd.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: lookup[vk.Buffer](d.objs, uint64(w.Buffer)),
				Range:  vk.DeviceSize(w.Range),
			}}
		case gpu.DescriptorCombinedImageSampler:
			wd.PImageInfo = []vk.DescriptorImageInfo{{
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
				ImageView:   lookup[vk.ImageView](d.objs, uint64(w.View)),
				Sampler:     lookup[vk.Sampler](d.objs, uint64(w.Sampler)),
			}}
		}
		list = append(list, wd)
	}
	if len(list) > 0 {
		vk.UpdateDescriptorSets(d.device, uint32(len(list)), list, 0, nil)
	}
}

// CreatePipelineLayout creates a layout over sets with one vertex stage push constant range
// of pushConstantSize bytes, or none when it is zero.
func (d *Device) CreatePipelineLayout(sets []gpu.DescriptorSetLayout, pushConstantSize uint32) (gpu.PipelineLayout, error) {
	layouts := make([]vk.DescriptorSetLayout, len(sets))
	for i, s := range sets {
		layouts[i] = lookup[vk.DescriptorSetLayout](d.objs, uint64(s))
	}
	var ranges []vk.PushConstantRange
	if pushConstantSize > 0 {
		ranges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Size:       pushConstantSize,
		}}
	}
	var l vk.PipelineLayout
	ret := vk.CreatePipelineLayout(d.device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(layouts)),
		PSetLayouts:            layouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}, nil, &l)
	if err := check(ret, "vkCreatePipelineLayout"); err != nil {
		return 0, err
	}
	return gpu.PipelineLayout(d.objs.add(l)), nil
}

func (d *Device) DestroyPipelineLayout(h gpu.PipelineLayout) {
	if l := take[vk.PipelineLayout](d.objs, uint64(h)); l != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(d.device, l, nil)
	}
}

// CreateGraphicsPipeline builds a triangle list pipeline with one interleaved vertex
// binding, depth testing and dynamic viewport and scissor.
func (d *Device) CreateGraphicsPipeline(info gpu.PipelineInfo) (gpu.Pipeline, error) {
	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: lookup[vk.ShaderModule](d.objs, uint64(info.Vertex)),
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: lookup[vk.ShaderModule](d.objs, uint64(info.Fragment)),
			PName:  safeString("main"),
		},
	}

	attrs := make([]vk.VertexInputAttributeDescription, len(info.Attributes))
	for i, a := range info.Attributes {
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    info.VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}
	assembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	viewport := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
	depth := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.True,
		DepthWriteEnable: vk.True,
		DepthCompareOp:   vk.CompareOpLessOrEqual,
		Back: vk.StencilOpState{
			FailOp:    vk.StencilOpKeep,
			PassOp:    vk.StencilOpKeep,
			CompareOp: vk.CompareOpAlways,
		},
		Front: vk.StencilOpState{
			FailOp:    vk.StencilOpKeep,
			PassOp:    vk.StencilOpKeep,
			CompareOp: vk.CompareOpAlways,
		},
	}
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments: []vk.PipelineColorBlendAttachmentState{{
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
				vk.ColorComponentBBit | vk.ColorComponentABit),
		}},
	}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: 2,
		PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(d.device, nil, 1, []vk.GraphicsPipelineCreateInfo{{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &assembly,
		PViewportState:      &viewport,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depth,
		PColorBlendState:    &blend,
		PDynamicState:       &dynamic,
		Layout:              lookup[vk.PipelineLayout](d.objs, uint64(info.Layout)),
		RenderPass:          lookup[vk.RenderPass](d.objs, uint64(info.RenderPass)),
	}}, nil, pipelines)
	if err := check(ret, "vkCreateGraphicsPipelines"); err != nil {
		return 0, err
	}
	return gpu.Pipeline(d.objs.add(pipelines[0])), nil
}

func (d *Device) DestroyPipeline(h gpu.Pipeline) {
	if p := take[vk.Pipeline](d.objs, uint64(h)); p != vk.NullPipeline {
		vk.DestroyPipeline(d.device, p, nil)
	}
}
