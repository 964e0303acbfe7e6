package render

import (
	"github.com/pkg/errors"
	lin "github.com/xlab/linmath"

	"github.com/andewx/vkframe/gpu"
)

// pushConstantSize is one column major Mat4, the per mesh projection-view-model matrix.
const pushConstantSize = 64

// Descriptor bindings of the only set.
const (
	uniformBinding = 0
	textureBinding = 1
)

// TextureFormat is the format of the default texture.
const TextureFormat = gpu.FormatR8G8B8A8Unorm

// pipelineSet holds the objects that survive swapchain recreation and are destroyed with
// the device: render pass, shaders, descriptors, uniform buffer, default texture and the
// graphics pipeline.
type pipelineSet struct {
	renderPass gpu.RenderPass
	vertex     gpu.ShaderModule
	fragment   gpu.ShaderModule
	setLayout  gpu.DescriptorSetLayout
	descPool   gpu.DescriptorPool
	descSet    gpu.DescriptorSet
	uniform    hostBuffer
	texture    deviceImage
	sampler    gpu.Sampler
	layout     gpu.PipelineLayout
	pipeline   gpu.Pipeline
}

func newPipelineSet(dev *Device, sync *frameSync, color gpu.Format, shaders Shaders) (*pipelineSet, error) {
	p := &pipelineSet{}
	if err := p.build(dev, sync, color, shaders); err != nil {
		p.destroy(dev.gpu)
		return nil, err
	}
	return p, nil
}

func (p *pipelineSet) build(dev *Device, sync *frameSync, color gpu.Format, shaders Shaders) error {
	d := dev.gpu
	var err error
	if p.renderPass, err = d.CreateRenderPass(color, DepthFormat); err != nil {
		return errors.Wrap(err, "create render pass")
	}
	if p.vertex, err = d.CreateShaderModule(shaders.Vertex); err != nil {
		return errors.Wrap(err, "create vertex shader module")
	}
	if p.fragment, err = d.CreateShaderModule(shaders.Fragment); err != nil {
		return errors.Wrap(err, "create fragment shader module")
	}
	p.setLayout, err = d.CreateDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: uniformBinding, Type: gpu.DescriptorUniformBuffer, Stages: gpu.ShaderStageVertex},
		{Binding: textureBinding, Type: gpu.DescriptorCombinedImageSampler, Stages: gpu.ShaderStageFragment},
	})
	if err != nil {
		return errors.Wrap(err, "create descriptor set layout")
	}
	p.descPool, err = d.CreateDescriptorPool([]gpu.DescriptorPoolSize{
		{Type: gpu.DescriptorUniformBuffer, Count: 1},
		{Type: gpu.DescriptorCombinedImageSampler, Count: 1},
	}, 1)
	if err != nil {
		return errors.Wrap(err, "create descriptor pool")
	}
	if p.descSet, err = d.AllocateDescriptorSet(p.descPool, p.setLayout); err != nil {
		return errors.Wrap(err, "allocate descriptor set")
	}
	id := identity()
	if p.uniform, err = dev.createHostBuffer(id.Data(), gpu.BufferUsageUniform); err != nil {
		return errors.Wrap(err, "uniform buffer")
	}
	if err := p.uploadTexture(dev, sync); err != nil {
		return err
	}
	if p.sampler, err = d.CreateSampler(); err != nil {
		return errors.Wrap(err, "create sampler")
	}
	d.UpdateDescriptorSet(p.descSet, []gpu.DescriptorWrite{
		{Binding: uniformBinding, Type: gpu.DescriptorUniformBuffer, Buffer: p.uniform.buffer, Range: p.uniform.size},
		{Binding: textureBinding, Type: gpu.DescriptorCombinedImageSampler, View: p.texture.view, Sampler: p.sampler},
	})
	if p.layout, err = d.CreatePipelineLayout([]gpu.DescriptorSetLayout{p.setLayout}, pushConstantSize); err != nil {
		return errors.Wrap(err, "create pipeline layout")
	}
	p.pipeline, err = d.CreateGraphicsPipeline(gpu.PipelineInfo{
		RenderPass:   p.renderPass,
		Layout:       p.layout,
		Vertex:       p.vertex,
		Fragment:     p.fragment,
		VertexStride: vertexStride,
		Attributes:   vertexAttributes,
	})
	return errors.Wrap(err, "create graphics pipeline")
}

// uploadTexture creates the 1x1 white default texture and copies it in through a staging
// buffer on the setup command buffer.
func (p *pipelineSet) uploadTexture(dev *Device, sync *frameSync) error {
	var err error
	extent := gpu.Extent2D{Width: 1, Height: 1}
	p.texture, err = dev.createImage(TextureFormat, extent, gpu.ImageUsageTransferDst|gpu.ImageUsageSampled, gpu.AspectColor)
	if err != nil {
		return errors.Wrap(err, "default texture")
	}
	staging, err := dev.createHostBuffer([]byte{0xff, 0xff, 0xff, 0xff}, gpu.BufferUsageTransferSrc)
	if err != nil {
		return errors.Wrap(err, "texture staging buffer")
	}
	defer staging.destroy(dev.gpu)
	err = sync.runSetup(dev, textureUpload{src: staging.buffer, dst: p.texture.image, extent: extent})
	return errors.Wrap(err, "upload default texture")
}

// setProjectionView writes the uniform matrix. The device must be idle.
func (p *pipelineSet) setProjectionView(dev gpu.Device, m lin.Mat4x4) error {
	return p.uniform.write(dev, m.Data())
}

func (p *pipelineSet) destroy(dev gpu.Device) {
	dev.DestroyPipeline(p.pipeline)
	dev.DestroyPipelineLayout(p.layout)
	dev.DestroySampler(p.sampler)
	p.texture.destroy(dev)
	p.uniform.destroy(dev)
	dev.DestroyDescriptorPool(p.descPool)
	dev.DestroyDescriptorSetLayout(p.setLayout)
	dev.DestroyShaderModule(p.fragment)
	dev.DestroyShaderModule(p.vertex)
	dev.DestroyRenderPass(p.renderPass)
	*p = pipelineSet{}
}
