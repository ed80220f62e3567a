// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/internal/ownership"
	"github.com/devblok/vksafe/native"
)

// PipelineLayout describes the resources a pipeline accesses. It depends
// on its device.
type PipelineLayout struct {
	resource
	dev *Device
}

// PipelineLayoutBuilder configures an empty PipelineLayout.
type PipelineLayoutBuilder struct {
	builder
	dev *Device
}

func NewPipelineLayoutBuilder(dev *Device) *PipelineLayoutBuilder {
	return &PipelineLayoutBuilder{dev: dev}
}

// Build creates the layout.
func (b *PipelineLayoutBuilder) Build() (*PipelineLayout, error) {
	if err := b.consume("PipelineLayout"); err != nil {
		return nil, err
	}
	if b.dev == nil {
		return nil, missing("PipelineLayoutBuilder.Build", "device")
	}
	if err := live("PipelineLayoutBuilder.Build", &b.dev.resource); err != nil {
		return nil, err
	}
	h, err := b.dev.env.api.CreatePipelineLayout(native.PipelineLayoutInfo{Device: b.dev.handle})
	if err != nil {
		return nil, creationError("PipelineLayout", err)
	}
	return &PipelineLayout{
		resource: newResource(b.dev.env, "PipelineLayout", h, b.dev.env.api.DestroyPipelineLayout, b.dev.node()),
		dev:      b.dev,
	}, nil
}

// Pipeline is a graphics pipeline usable inside its render pass. It
// depends on the device, the render pass and the layout.
type Pipeline struct {
	resource
	dev             *Device
	pass            *RenderPass
	dynamicViewport bool
	dynamicScissor  bool
}

// DynamicViewport reports whether the viewport must be set while
// recording.
func (p *Pipeline) DynamicViewport() bool {
	return p.dynamicViewport
}

// DynamicScissor reports whether the scissor must be set while recording.
func (p *Pipeline) DynamicScissor() bool {
	return p.dynamicScissor
}

const shaderEntry = "main"

type shaderStage struct {
	stage  gfx.ShaderStage
	module *ShaderModule
}

// GraphicsPipelineBuilder configures a graphics Pipeline. Shader modules
// added to it are destroyed by Build, whatever its outcome.
type GraphicsPipelineBuilder struct {
	builder
	dev    *Device
	pass   *RenderPass
	stages []shaderStage
	layout *PipelineLayout
	info   native.GraphicsPipelineInfo
}

// NewGraphicsPipelineBuilder starts configuring a triangle list pipeline
// for the first subpass of pass. Viewport and scissor are dynamic unless
// fixed.
func NewGraphicsPipelineBuilder(dev *Device, pass *RenderPass) *GraphicsPipelineBuilder {
	return &GraphicsPipelineBuilder{
		dev:  dev,
		pass: pass,
		info: native.GraphicsPipelineInfo{Topology: gfx.TopologyTriangleList},
	}
}

// AddShader adds a stage. The builder takes ownership of module.
func (b *GraphicsPipelineBuilder) AddShader(stage gfx.ShaderStage, module *ShaderModule) *GraphicsPipelineBuilder {
	b.stages = append(b.stages, shaderStage{stage: stage, module: module})
	return b
}

func (b *GraphicsPipelineBuilder) WithFixedViewport(width, height uint32) *GraphicsPipelineBuilder {
	b.info.WithViewport = true
	b.info.Viewport = gfx.Extent2D{Width: width, Height: height}
	return b
}

func (b *GraphicsPipelineBuilder) WithFixedScissor(width, height uint32) *GraphicsPipelineBuilder {
	b.info.WithScissor = true
	b.info.Scissor = gfx.Extent2D{Width: width, Height: height}
	return b
}

func (b *GraphicsPipelineBuilder) WithPipelineLayout(layout *PipelineLayout) *GraphicsPipelineBuilder {
	b.layout = layout
	return b
}

// AddColorAttachment adds a blended color output. Without any, the
// pipeline writes every color attachment of the first subpass.
func (b *GraphicsPipelineBuilder) AddColorAttachment() *GraphicsPipelineBuilder {
	b.info.ColorAttachments++
	return b
}

func (b *GraphicsPipelineBuilder) WithTopology(t gfx.PrimitiveTopology) *GraphicsPipelineBuilder {
	b.info.Topology = t
	return b
}

// Build creates the pipeline and destroys the added shader modules.
func (b *GraphicsPipelineBuilder) Build() (*Pipeline, error) {
	if err := b.consume("GraphicsPipeline"); err != nil {
		return nil, err
	}
	defer func() {
		for _, st := range b.stages {
			if st.module != nil {
				st.module.Destroy()
			}
		}
	}()

	const op = "GraphicsPipelineBuilder.Build"
	if b.dev == nil {
		return nil, missing(op, "device")
	}
	if b.pass == nil {
		return nil, missing(op, "render pass")
	}
	for _, st := range b.stages {
		if st.module == nil {
			return nil, missing(op, "shader module")
		}
	}
	deps := []*resource{&b.dev.resource, &b.pass.resource}
	devs := []*Device{b.pass.dev}
	if b.layout != nil {
		deps = append(deps, &b.layout.resource)
		devs = append(devs, b.layout.dev)
	}
	for _, st := range b.stages {
		deps = append(deps, &st.module.resource)
		devs = append(devs, st.module.dev)
	}
	if err := live(op, deps...); err != nil {
		return nil, err
	}
	if err := b.dev.sameDevice(op, devs...); err != nil {
		return nil, err
	}
	if len(b.stages) == 0 {
		return nil, creationError("GraphicsPipeline", errors.Wrap(ErrInvalidConfiguration, "no shader stages"))
	}
	seen := make(map[gfx.ShaderStage]bool)
	for _, st := range b.stages {
		if seen[st.stage] {
			return nil, creationError("GraphicsPipeline", errors.Wrapf(ErrInvalidConfiguration, "two %v shaders", st.stage))
		}
		seen[st.stage] = true
	}
	if !seen[gfx.ShaderStageVertex] {
		return nil, creationError("GraphicsPipeline", errors.Wrap(ErrInvalidConfiguration, "no vertex shader"))
	}

	info := b.info
	info.Device = b.dev.handle
	info.RenderPass = b.pass.handle
	if info.ColorAttachments == 0 {
		info.ColorAttachments = b.pass.colors[0]
	}
	if b.layout != nil {
		info.WithLayout = true
		info.Layout = b.layout.handle
	}
	for _, st := range b.stages {
		info.Stages = append(info.Stages, native.ShaderStageInfo{
			Stage:  st.stage,
			Module: st.module.handle,
			Entry:  shaderEntry,
		})
	}
	h, err := b.dev.env.api.CreateGraphicsPipeline(info)
	if err != nil {
		return nil, creationError("GraphicsPipeline", err)
	}

	parents := []*ownership.Node{b.dev.node(), b.pass.node()}
	if b.layout != nil {
		parents = append(parents, b.layout.node())
	}
	p := &Pipeline{
		resource:        newResource(b.dev.env, "Pipeline", h, b.dev.env.api.DestroyPipeline, parents...),
		dev:             b.dev,
		pass:            b.pass,
		dynamicViewport: !info.WithViewport,
		dynamicScissor:  !info.WithScissor,
	}
	p.env.log.WithFields(logrus.Fields{
		"stages":   len(info.Stages),
		"viewport": info.WithViewport,
		"scissor":  info.WithScissor,
	}).Debug("pipeline configured")
	return p, nil
}
