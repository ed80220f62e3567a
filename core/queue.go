// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
)

// Queue is an execution channel of a device. Queues are owned by their
// device and refuse work once it was destroyed.
type Queue struct {
	dev     *Device
	handle  native.Handle
	family  int
	index   int
	flags   gfx.QueueFlags
	present bool
	pending []*CommandBuffer
}

// Handle returns the native queue handle.
func (q *Queue) Handle() native.Handle {
	return q.handle
}

// Family returns the queue family index.
func (q *Queue) Family() int {
	return q.family
}

// Flags returns the capabilities of the queue family.
func (q *Queue) Flags() gfx.QueueFlags {
	return q.flags
}

// CanPresent reports whether Present may be called on this queue.
func (q *Queue) CanPresent() bool {
	return q.present
}

// Submission is a batch of command buffers with its synchronization.
// WaitStages and WaitSemaphores are parallel: the batch waits on each
// semaphore at the matching stage.
type Submission struct {
	CommandBuffers   []*CommandBuffer
	WaitStages       []gfx.PipelineStage
	WaitSemaphores   []*Semaphore
	SignalSemaphores []*Semaphore
	// Fence is signaled when the batch completes. It is optional.
	Fence *Fence
}

// Enqueue stages finalized buffers that the next Submit sends ahead of
// its own.
func (q *Queue) Enqueue(buffers ...*CommandBuffer) error {
	const op = "Queue.Enqueue"
	for _, cb := range buffers {
		if err := q.accept(op, cb); err != nil {
			return err
		}
	}
	q.pending = append(q.pending, buffers...)
	return nil
}

func (q *Queue) accept(op string, cb *CommandBuffer) error {
	if cb == nil {
		return missing(op, "command buffer")
	}
	if err := cb.submittable(op); err != nil {
		return err
	}
	if err := q.dev.sameDevice(op, cb.dev); err != nil {
		return err
	}
	if cb.pool.family != q.family {
		return violation(op, "command buffer of queue family %d submitted to family %d", cb.pool.family, q.family)
	}
	return nil
}

// Submit sends a batch to the queue and returns without waiting for it.
func (q *Queue) Submit(s Submission) error {
	const op = "Queue.Submit"
	if err := live(op, &q.dev.resource); err != nil {
		return err
	}
	buffers := append(append([]*CommandBuffer(nil), q.pending...), s.CommandBuffers...)
	if len(buffers) == 0 {
		return violation(op, "no command buffers")
	}
	if len(s.WaitStages) != len(s.WaitSemaphores) {
		return violation(op, "%d wait stages for %d wait semaphores", len(s.WaitStages), len(s.WaitSemaphores))
	}

	submit := native.Submit{WaitStages: s.WaitStages}
	for _, cb := range buffers {
		if err := q.accept(op, cb); err != nil {
			return err
		}
		submit.CommandBuffers = append(submit.CommandBuffers, cb.handle)
	}
	sems := func(list []*Semaphore) ([]native.Handle, error) {
		var handles []native.Handle
		for _, sem := range list {
			if sem == nil {
				return nil, missing(op, "semaphore")
			}
			if err := live(op, &sem.resource); err != nil {
				return nil, err
			}
			if err := q.dev.sameDevice(op, sem.dev); err != nil {
				return nil, err
			}
			handles = append(handles, sem.handle)
		}
		return handles, nil
	}
	var err error
	if submit.WaitSemaphores, err = sems(s.WaitSemaphores); err != nil {
		return err
	}
	if submit.SignalSemaphores, err = sems(s.SignalSemaphores); err != nil {
		return err
	}
	if s.Fence != nil {
		if err := live(op, &s.Fence.resource); err != nil {
			return err
		}
		if err := q.dev.sameDevice(op, s.Fence.dev); err != nil {
			return err
		}
		submit.Fence = s.Fence.handle
	}

	if err := q.dev.env.api.QueueSubmit(q.handle, submit); err != nil {
		return &ExecutionError{Op: op, Err: err}
	}
	q.pending = nil
	return nil
}

// Present queues image index of swapchain for display once waitSemaphore
// is signaled. waitSemaphore may be nil. An out of date swapchain or an
// index outside its ring gives a PresentationError of kind OutOfDate.
func (q *Queue) Present(swapchain *Swapchain, index uint32, waitSemaphore *Semaphore) error {
	const op = "Queue.Present"
	if swapchain == nil {
		return missing(op, "swapchain")
	}
	deps := []*resource{&q.dev.resource, &swapchain.resource}
	devs := []*Device{swapchain.dev}
	if waitSemaphore != nil {
		deps = append(deps, &waitSemaphore.resource)
		devs = append(devs, waitSemaphore.dev)
	}
	if err := live(op, deps...); err != nil {
		return err
	}
	if err := q.dev.sameDevice(op, devs...); err != nil {
		return err
	}
	if !q.present {
		return violation(op, "queue cannot present")
	}
	if int(index) >= swapchain.count {
		return &PresentationError{
			Kind: OutOfDate,
			Err:  errors.Wrapf(native.ErrOutOfDate, "image index %d of %d", index, swapchain.count),
		}
	}

	present := native.Present{Swapchain: swapchain.handle, ImageIndex: index}
	if waitSemaphore != nil {
		present.WaitSemaphore = waitSemaphore.handle
	}
	if err := q.dev.env.api.QueuePresent(q.handle, present); err != nil {
		return presentationError(err)
	}
	return nil
}
