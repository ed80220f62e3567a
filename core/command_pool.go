// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devblok/vksafe/native"
)

// CommandPool allocates command buffers for one queue family. It depends
// on its device; its buffers depend on it.
type CommandPool struct {
	resource
	dev     *Device
	family  int
	buffers []*CommandBuffer
}

// QueueFamily returns the family whose queues accept buffers from this
// pool.
func (p *CommandPool) QueueFamily() int {
	return p.family
}

// CommandPoolBuilder configures a CommandPool.
type CommandPoolBuilder struct {
	builder
	dev        *Device
	family     int
	withFamily bool
	resettable bool
}

// NewCommandPoolBuilder starts configuring a pool for the family of the
// device's graphics queue.
func NewCommandPoolBuilder(dev *Device) *CommandPoolBuilder {
	return &CommandPoolBuilder{dev: dev}
}

func (b *CommandPoolBuilder) WithQueueFamily(family int) *CommandPoolBuilder {
	b.family = family
	b.withFamily = true
	return b
}

// Resettable allows individual buffers to be reset natively. Buffers are
// still only re-recorded after CommandPool.Reset.
func (b *CommandPoolBuilder) Resettable() *CommandPoolBuilder {
	b.resettable = true
	return b
}

// Build creates the pool.
func (b *CommandPoolBuilder) Build() (*CommandPool, error) {
	if err := b.consume("CommandPool"); err != nil {
		return nil, err
	}
	if b.dev == nil {
		return nil, missing("CommandPoolBuilder.Build", "device")
	}
	if err := live("CommandPoolBuilder.Build", &b.dev.resource); err != nil {
		return nil, err
	}
	family := b.family
	if !b.withFamily {
		q := b.dev.GraphicsQueue()
		if q == nil {
			return nil, creationError("CommandPool", errors.Wrap(ErrInvalidConfiguration, "device has no graphics queue"))
		}
		family = q.family
	}
	if family < 0 || family >= len(b.dev.gpu.QueueFamilies) {
		return nil, creationError("CommandPool", errors.Wrapf(ErrInvalidConfiguration, "queue family %d", family))
	}
	h, err := b.dev.env.api.CreateCommandPool(native.CommandPoolInfo{
		Device:      b.dev.handle,
		QueueFamily: family,
		Resettable:  b.resettable,
	})
	if err != nil {
		return nil, creationError("CommandPool", err)
	}
	return &CommandPool{
		resource: newResource(b.dev.env, "CommandPool", h, b.dev.env.api.DestroyCommandPool, b.dev.node()),
		dev:      b.dev,
		family:   family,
	}, nil
}

// Allocate returns n fresh command buffers.
func (p *CommandPool) Allocate(n int) ([]*CommandBuffer, error) {
	if err := live("CommandPool.Allocate", &p.resource); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, creationError("CommandBuffer", errors.Wrapf(ErrInvalidConfiguration, "allocate %d buffers", n))
	}
	api := p.env.api
	handles, err := api.AllocateCommandBuffers(p.handle, n)
	if err != nil {
		return nil, creationError("CommandBuffer", err)
	}

	kept := p.buffers[:0]
	for _, cb := range p.buffers {
		if cb.node().Alive() {
			kept = append(kept, cb)
		}
	}
	p.buffers = kept

	buffers := make([]*CommandBuffer, len(handles))
	for i, h := range handles {
		cb := &CommandBuffer{pool: p, dev: p.dev}
		cb.resource = newResource(p.env, "CommandBuffer", h, func(h native.Handle) {
			api.FreeCommandBuffers(p.handle, []native.Handle{h})
			cb.releaseRecorded()
		}, p.node())
		buffers[i] = cb
		p.buffers = append(p.buffers, cb)
	}
	return buffers, nil
}

// Reset returns every buffer of the pool to the idle state so it can be
// recorded again, and releases the resources they recorded. Buffers
// destroyed while recording are freed. None of the buffers may be pending
// execution.
func (p *CommandPool) Reset() error {
	if err := live("CommandPool.Reset", &p.resource); err != nil {
		return err
	}
	if err := p.env.api.ResetCommandPool(p.handle); err != nil {
		return &ExecutionError{Op: "CommandPool.Reset", Err: err}
	}
	n := 0
	for _, cb := range p.buffers {
		if cb.node().Alive() {
			cb.reset()
			n++
		}
	}
	p.env.log.WithFields(logrus.Fields{"kind": p.kind, "handle": p.handle, "buffers": n}).Debug("reset")
	return nil
}
