// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/internal/ownership"
	"github.com/devblok/vksafe/native"
)

// RecordingState is the position of a command buffer in its recording
// cycle.
type RecordingState int

// Recording states. A buffer moves forward through them once per pool
// reset.
const (
	Idle RecordingState = iota
	Recording
	InRenderPass
	PipelineBound
	// Executable buffers are finalized and may be submitted.
	Executable
)

func (s RecordingState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case InRenderPass:
		return "InRenderPass"
	case PipelineBound:
		return "PipelineBound"
	case Executable:
		return "Executable"
	}
	return "RecordingState(?)"
}

// CommandBuffer holds recorded commands. It depends on its pool and keeps
// every render pass, framebuffer and pipeline it recorded alive until it
// is destroyed or its pool is reset.
type CommandBuffer struct {
	resource
	pool *CommandPool
	dev  *Device

	begun    bool
	finished bool
	rec      *Recorder
	err      error
	recorded []*ownership.Ref
	// open keeps the native buffer alive while a recorder is open.
	open *ownership.Ref
}

// State returns the current recording state.
func (cb *CommandBuffer) State() RecordingState {
	switch {
	case cb.finished:
		return Executable
	case cb.rec == nil:
		return Idle
	case cb.rec.pass == nil:
		return Recording
	case cb.rec.pass.bound == nil:
		return InRenderPass
	}
	return PipelineBound
}

// Err returns the first protocol violation or native failure recorded,
// which makes the buffer unsubmittable.
func (cb *CommandBuffer) Err() error {
	return cb.err
}

// submittable returns why the buffer cannot be submitted, or nil.
func (cb *CommandBuffer) submittable(op string) error {
	if err := live(op, &cb.resource); err != nil {
		return err
	}
	if !cb.finished {
		return violation(op, "command buffer %v is %v, not finalized", cb.handle, cb.State())
	}
	if cb.err != nil {
		return &ProtocolViolation{Op: op, Reason: "command buffer recorded with errors", Err: cb.err}
	}
	return nil
}

func (cb *CommandBuffer) fail(err error) error {
	if cb.err == nil {
		cb.err = err
	}
	return err
}

func (cb *CommandBuffer) retain(rs ...*resource) {
	for _, r := range rs {
		cb.recorded = append(cb.recorded, r.ref.Clone())
	}
}

func (cb *CommandBuffer) releaseRecorded() {
	for i := len(cb.recorded) - 1; i >= 0; i-- {
		cb.recorded[i].Release()
	}
	cb.recorded = nil
}

// close drops the hold taken by Begin. The native buffer is freed here
// when Destroy was called during recording.
func (cb *CommandBuffer) close() {
	if cb.open != nil {
		open := cb.open
		cb.open = nil
		open.Release()
	}
}

func (cb *CommandBuffer) reset() {
	cb.close()
	cb.releaseRecorded()
	cb.begun, cb.finished = false, false
	cb.rec = nil
	cb.err = nil
}

// Begin starts the single recording cycle of the buffer.
func (cb *CommandBuffer) Begin() (*Recorder, error) {
	const op = "CommandBuffer.Begin"
	if err := live(op, &cb.resource); err != nil {
		return nil, err
	}
	if cb.finished {
		return nil, violation(op, "command buffer already %v; reset its pool to record again", cb.State())
	}
	if cb.begun {
		return nil, cb.fail(violation(op, "command buffer already %v", cb.State()))
	}
	if err := cb.env.api.BeginCommandBuffer(cb.handle); err != nil {
		return nil, &ExecutionError{Op: op, Err: err}
	}
	cb.begun = true
	cb.open = ownership.NewRef(cb.node().Retain())
	cb.rec = &Recorder{cb: cb}
	return cb.rec, nil
}

// Record begins recording, runs fn and ends recording on every exit path
// of fn, panics included. It returns the first error of fn or of the
// recording.
func (cb *CommandBuffer) Record(fn func(*Recorder) error) (err error) {
	rec, err := cb.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if endErr := rec.End(); err == nil {
			err = endErr
		}
	}()
	return fn(rec)
}

// Recorder records commands outside of a render pass.
type Recorder struct {
	cb   *CommandBuffer
	pass *RenderPassRecorder
}

func (r *Recorder) stale() bool {
	return r.cb.rec != r
}

// check returns the error that prevents recording op.
func (r *Recorder) check(op string) error {
	if r.stale() {
		return r.cb.fail(violation(op, "recorder used after End"))
	}
	if err := live(op, &r.cb.resource); err != nil {
		return err
	}
	return r.cb.err
}

// End finalizes the buffer, ending an open render pass first. Only the
// first call has an effect; every call returns the buffer's recording
// error. A buffer destroyed while recording is freed by End.
func (r *Recorder) End() error {
	if r.stale() {
		return r.cb.err
	}
	if r.pass != nil {
		r.pass.End()
	}
	if err := r.cb.env.api.EndCommandBuffer(r.cb.handle); err != nil {
		r.cb.fail(&ExecutionError{Op: "Recorder.End", Err: err})
	}
	r.cb.rec = nil
	r.cb.finished = true
	r.cb.close()
	return r.cb.err
}

// BeginRenderPass starts pass on fb. The render area covers fb.
func (r *Recorder) BeginRenderPass(pass *RenderPass, fb *Framebuffer) (*RenderPassRecorder, error) {
	const op = "Recorder.BeginRenderPass"
	if err := r.check(op); err != nil {
		return nil, err
	}
	if r.pass != nil {
		return nil, r.cb.fail(violation(op, "render pass already in progress"))
	}
	if pass == nil {
		return nil, r.cb.fail(missing(op, "render pass"))
	}
	if fb == nil {
		return nil, r.cb.fail(missing(op, "framebuffer"))
	}
	if err := live(op, &pass.resource, &fb.resource); err != nil {
		return nil, r.cb.fail(err)
	}
	if err := r.cb.dev.sameDevice(op, pass.dev, fb.dev); err != nil {
		return nil, r.cb.fail(err)
	}
	if fb.pass != pass {
		return nil, r.cb.fail(violation(op, "framebuffer was created for another render pass"))
	}

	r.cb.env.api.CmdBeginRenderPass(r.cb.handle, native.RenderPassBegin{
		RenderPass:  pass.handle,
		Framebuffer: fb.handle,
		Area:        gfx.FullRect(fb.extent),
		ClearValues: pass.clearValues(),
	})
	r.cb.retain(&pass.resource, &fb.resource)
	r.pass = &RenderPassRecorder{rec: r, pass: pass, fb: fb}
	return r.pass, nil
}

// RenderPass begins pass on fb, runs fn and ends the render pass on every
// exit path of fn, panics included.
func (r *Recorder) RenderPass(pass *RenderPass, fb *Framebuffer, fn func(*RenderPassRecorder) error) (err error) {
	rp, err := r.BeginRenderPass(pass, fb)
	if err != nil {
		return err
	}
	defer func() {
		if endErr := rp.End(); err == nil {
			err = endErr
		}
	}()
	return fn(rp)
}

// RenderPassRecorder records commands inside a render pass.
type RenderPassRecorder struct {
	rec   *Recorder
	pass  *RenderPass
	fb    *Framebuffer
	bound *PipelineBoundRecorder

	viewportSet bool
	scissorSet  bool
}

func (p *RenderPassRecorder) stale() bool {
	return p.rec.stale() || p.rec.pass != p
}

func (p *RenderPassRecorder) check(op string) error {
	if p.stale() {
		return p.rec.cb.fail(violation(op, "render pass recorder used after End"))
	}
	return p.rec.check(op)
}

// Extent returns the size of the framebuffer being rendered to.
func (p *RenderPassRecorder) Extent() gfx.Extent2D {
	return p.fb.extent
}

// End ends the render pass. Only the first call has an effect.
func (p *RenderPassRecorder) End() error {
	if p.stale() {
		return nil
	}
	p.rec.cb.env.api.CmdEndRenderPass(p.rec.cb.handle)
	p.rec.pass = nil
	p.bound = nil
	return nil
}

// BindGraphicsPipeline binds a pipeline created for this render pass.
func (p *RenderPassRecorder) BindGraphicsPipeline(pipeline *Pipeline) (*PipelineBoundRecorder, error) {
	const op = "RenderPassRecorder.BindGraphicsPipeline"
	cb := p.rec.cb
	if err := p.check(op); err != nil {
		return nil, err
	}
	if pipeline == nil {
		return nil, cb.fail(missing(op, "pipeline"))
	}
	if err := live(op, &pipeline.resource); err != nil {
		return nil, cb.fail(err)
	}
	if err := cb.dev.sameDevice(op, pipeline.dev); err != nil {
		return nil, cb.fail(err)
	}
	if pipeline.pass != p.pass {
		return nil, cb.fail(violation(op, "pipeline was created for another render pass"))
	}
	cb.env.api.CmdBindGraphicsPipeline(cb.handle, pipeline.handle)
	cb.retain(&pipeline.resource)
	p.bound = &PipelineBoundRecorder{pass: p, pipeline: pipeline}
	return p.bound, nil
}

// PipelineBoundRecorder records draws with a bound pipeline.
type PipelineBoundRecorder struct {
	pass     *RenderPassRecorder
	pipeline *Pipeline
}

func (b *PipelineBoundRecorder) check(op string) error {
	if b.pass.stale() || b.pass.bound != b {
		return b.pass.rec.cb.fail(violation(op, "pipeline recorder used after its pipeline was unbound"))
	}
	return b.pass.rec.check(op)
}

// BindGraphicsPipeline binds another pipeline. The receiver becomes
// unusable.
func (b *PipelineBoundRecorder) BindGraphicsPipeline(pipeline *Pipeline) (*PipelineBoundRecorder, error) {
	if err := b.check("PipelineBoundRecorder.BindGraphicsPipeline"); err != nil {
		return nil, err
	}
	return b.pass.BindGraphicsPipeline(pipeline)
}

// SetViewport sets the dynamic viewport.
func (b *PipelineBoundRecorder) SetViewport(viewport gfx.Viewport) error {
	if err := b.check("PipelineBoundRecorder.SetViewport"); err != nil {
		return err
	}
	cb := b.pass.rec.cb
	cb.env.api.CmdSetViewport(cb.handle, viewport)
	b.pass.viewportSet = true
	return nil
}

// SetScissor sets the dynamic scissor rectangle.
func (b *PipelineBoundRecorder) SetScissor(scissor gfx.Rect2D) error {
	if err := b.check("PipelineBoundRecorder.SetScissor"); err != nil {
		return err
	}
	cb := b.pass.rec.cb
	cb.env.api.CmdSetScissor(cb.handle, scissor)
	b.pass.scissorSet = true
	return nil
}

// Draw records a non-indexed draw. The parameters are passed through.
func (b *PipelineBoundRecorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	const op = "PipelineBoundRecorder.Draw"
	if err := b.check(op); err != nil {
		return err
	}
	cb := b.pass.rec.cb
	if b.pipeline.dynamicViewport && !b.pass.viewportSet {
		return cb.fail(violation(op, "pipeline has a dynamic viewport that was not set"))
	}
	if b.pipeline.dynamicScissor && !b.pass.scissorSet {
		return cb.fail(violation(op, "pipeline has a dynamic scissor that was not set"))
	}
	cb.env.api.CmdDraw(cb.handle, vertexCount, instanceCount, firstVertex, firstInstance)
	return nil
}
