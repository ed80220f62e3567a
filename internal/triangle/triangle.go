// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package triangle draws a single triangle to a window surface, recreating
// the swapchain whenever the surface changes.
package triangle

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devblok/vksafe/config"
	"github.com/devblok/vksafe/core"
	"github.com/devblok/vksafe/gfx"
)

// Shader names looked up in the shader source.
const (
	VertexShader   = "triangle.vert.spv"
	FragmentShader = "triangle.frag.spv"
)

// ClearColor is the background color.
var ClearColor = mgl32.Vec4{0.05, 0.05, 0.05, 1}

// Sizer reports the drawable size of the presentation target.
type Sizer interface {
	Size() (width, height uint32)
}

// Renderer owns everything needed to draw frames.
type Renderer struct {
	dev     *core.Device
	surface *core.Surface
	window  Sizer
	cfg     config.RendererConfiguration
	log     logrus.FieldLogger

	pass     *core.RenderPass
	pipeline *core.Pipeline
	pool     *core.CommandPool
	acquired *core.Semaphore
	finished *core.Semaphore
	inFlight *core.Fence

	chain *chain
}

// chain holds the per swapchain image resources.
type chain struct {
	sc     *core.Swapchain
	images []*core.Image
	views  []*core.ImageView
	fbs    []*core.Framebuffer
	cbs    []*core.CommandBuffer
}

func (ch *chain) destroy() {
	for _, cb := range ch.cbs {
		cb.Destroy()
	}
	for _, fb := range ch.fbs {
		fb.Destroy()
	}
	for _, v := range ch.views {
		v.Destroy()
	}
	for _, img := range ch.images {
		img.Destroy()
	}
	ch.sc.Destroy()
}

// New creates the renderer for surface. The device must have a graphics
// queue able to present to it.
func New(dev *core.Device, surface *core.Surface, shaders core.ShaderSource, window Sizer, cfg config.RendererConfiguration, log logrus.FieldLogger) (*Renderer, error) {
	r := &Renderer{
		dev:     dev,
		surface: surface,
		window:  window,
		cfg:     cfg,
		log:     log,
	}
	if err := r.init(shaders); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) init(shaders core.ShaderSource) error {
	var err error
	color := core.NewAttachmentBuilder("color").
		WithClearColor(ClearColor).
		WithFinalLayout(gfx.LayoutPresentSrc).
		Build()
	r.pass, err = core.NewRenderPassBuilder(r.dev).
		AddSubpass(core.NewSubpassBuilder().AddColorAttachment(color, gfx.LayoutColorAttachmentOptimal).Build()).
		Build()
	if err != nil {
		return err
	}

	vert, err := core.LoadShaderModule(r.dev, shaders, VertexShader)
	if err != nil {
		return err
	}
	frag, err := core.LoadShaderModule(r.dev, shaders, FragmentShader)
	if err != nil {
		vert.Destroy()
		return err
	}
	r.pipeline, err = core.NewGraphicsPipelineBuilder(r.dev, r.pass).
		AddShader(gfx.ShaderStageVertex, vert).
		AddShader(gfx.ShaderStageFragment, frag).
		Build()
	if err != nil {
		return err
	}

	if r.pool, err = core.NewCommandPoolBuilder(r.dev).Build(); err != nil {
		return err
	}
	if r.acquired, err = core.NewSemaphoreBuilder(r.dev).Build(); err != nil {
		return err
	}
	if r.finished, err = core.NewSemaphoreBuilder(r.dev).Build(); err != nil {
		return err
	}
	if r.inFlight, err = core.NewFenceBuilder(r.dev).Build(); err != nil {
		return err
	}

	r.chain, err = r.newChain(nil)
	return err
}

func (r *Renderer) newChain(old *core.Swapchain) (*chain, error) {
	width, height := r.window.Size()
	b := core.NewSwapchainBuilder(r.dev, r.surface).
		WithExtent(width, height).
		WithImageCount(r.cfg.SwapchainSize)
	if old != nil {
		b = b.WithOldSwapchain(old)
	}
	sc, err := b.Build()
	if err != nil {
		return nil, err
	}

	ch := &chain{sc: sc}
	if err := r.fill(ch); err != nil {
		ch.destroy()
		return nil, err
	}
	r.log.WithFields(logrus.Fields{
		"width":  sc.Extent().Width,
		"height": sc.Extent().Height,
		"images": sc.ImageCount(),
	}).Info("swapchain ready")
	return ch, nil
}

func (r *Renderer) fill(ch *chain) error {
	var err error
	if ch.images, err = ch.sc.Images(); err != nil {
		return err
	}
	ext := ch.sc.Extent()
	for _, img := range ch.images {
		view, err := core.NewImageViewBuilder(r.dev, img).Build()
		if err != nil {
			return err
		}
		ch.views = append(ch.views, view)
		fb, err := core.NewFramebufferBuilder(r.dev, r.pass, ext.Width, ext.Height).WithAttachment(view).Build()
		if err != nil {
			return err
		}
		ch.fbs = append(ch.fbs, fb)
	}

	if ch.cbs, err = r.pool.Allocate(len(ch.images)); err != nil {
		return err
	}
	for i, cb := range ch.cbs {
		if err := r.record(cb, ch.fbs[i]); err != nil {
			return errors.Wrapf(err, "record image %d", i)
		}
	}
	return nil
}

func (r *Renderer) record(cb *core.CommandBuffer, fb *core.Framebuffer) error {
	return cb.Record(func(rec *core.Recorder) error {
		return rec.RenderPass(r.pass, fb, func(rp *core.RenderPassRecorder) error {
			bound, err := rp.BindGraphicsPipeline(r.pipeline)
			if err != nil {
				return err
			}
			if err := bound.SetViewport(gfx.FullViewport(rp.Extent())); err != nil {
				return err
			}
			if err := bound.SetScissor(gfx.FullRect(rp.Extent())); err != nil {
				return err
			}
			return bound.Draw(3, 1, 0, 0)
		})
	})
}

// Frame draws one frame. An out of date swapchain is recreated and the
// frame skipped.
func (r *Renderer) Frame() error {
	if err := r.inFlight.Wait(); err != nil {
		return err
	}
	index, err := r.chain.sc.AcquireNextImage(r.acquired)
	if core.IsOutOfDate(err) {
		return r.recreate()
	}
	if err != nil {
		return err
	}
	if err := r.inFlight.Reset(); err != nil {
		return err
	}

	if err := r.dev.GraphicsQueue().Submit(core.Submission{
		CommandBuffers:   []*core.CommandBuffer{r.chain.cbs[index]},
		WaitStages:       []gfx.PipelineStage{gfx.StageColorAttachmentOutput},
		WaitSemaphores:   []*core.Semaphore{r.acquired},
		SignalSemaphores: []*core.Semaphore{r.finished},
		Fence:            r.inFlight,
	}); err != nil {
		return err
	}

	err = r.dev.PresentQueue().Present(r.chain.sc, index, r.finished)
	if core.IsOutOfDate(err) {
		return r.recreate()
	}
	return err
}

// Extent returns the size of the current swapchain images.
func (r *Renderer) Extent() gfx.Extent2D {
	return r.chain.sc.Extent()
}

// recreate replaces the swapchain and everything built on its images. A
// window with no drawable area keeps the old chain until it has one again.
func (r *Renderer) recreate() error {
	if width, height := r.window.Size(); width == 0 || height == 0 {
		return nil
	}
	if err := r.dev.WaitIdle(); err != nil {
		return err
	}
	ch, err := r.newChain(r.chain.sc)
	if err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}
	r.chain.destroy()
	r.chain = ch
	return nil
}

// Destroy waits for the device to finish and releases everything the
// renderer created.
func (r *Renderer) Destroy() {
	if err := r.dev.WaitIdle(); err != nil {
		r.log.WithError(err).Warn("wait idle before teardown")
	}
	if r.chain != nil {
		r.chain.destroy()
		r.chain = nil
	}
	if r.inFlight != nil {
		r.inFlight.Destroy()
	}
	if r.finished != nil {
		r.finished.Destroy()
	}
	if r.acquired != nil {
		r.acquired.Destroy()
	}
	if r.pool != nil {
		r.pool.Destroy()
	}
	if r.pipeline != nil {
		r.pipeline.Destroy()
	}
	if r.pass != nil {
		r.pass.Destroy()
	}
}
