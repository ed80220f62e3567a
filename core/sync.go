// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

// Fence is a completion signal the CPU can wait on. It depends on its
// device.
type Fence struct {
	resource
	dev *Device
}

// FenceBuilder configures a Fence.
type FenceBuilder struct {
	builder
	dev      *Device
	signaled bool
}

// NewFenceBuilder starts configuring a fence. Fences start signaled so
// that a frame loop can wait before its first submission.
func NewFenceBuilder(dev *Device) *FenceBuilder {
	return &FenceBuilder{dev: dev, signaled: true}
}

// Unsignaled creates the fence in the unsignaled state.
func (b *FenceBuilder) Unsignaled() *FenceBuilder {
	b.signaled = false
	return b
}

// Build creates the fence.
func (b *FenceBuilder) Build() (*Fence, error) {
	if err := b.consume("Fence"); err != nil {
		return nil, err
	}
	if b.dev == nil {
		return nil, missing("FenceBuilder.Build", "device")
	}
	if err := live("FenceBuilder.Build", &b.dev.resource); err != nil {
		return nil, err
	}
	h, err := b.dev.env.api.CreateFence(b.dev.handle, b.signaled)
	if err != nil {
		return nil, creationError("Fence", err)
	}
	return &Fence{
		resource: newResource(b.dev.env, "Fence", h, b.dev.env.api.DestroyFence, b.dev.node()),
		dev:      b.dev,
	}, nil
}

// Wait blocks until the fence is signaled. There is no timeout.
func (f *Fence) Wait() error {
	if err := live("Fence.Wait", &f.resource); err != nil {
		return err
	}
	if err := f.env.api.WaitFence(f.handle); err != nil {
		return &ExecutionError{Op: "Fence.Wait", Err: err}
	}
	return nil
}

// Reset returns the fence to the unsignaled state.
func (f *Fence) Reset() error {
	if err := live("Fence.Reset", &f.resource); err != nil {
		return err
	}
	if err := f.env.api.ResetFence(f.handle); err != nil {
		return &ExecutionError{Op: "Fence.Reset", Err: err}
	}
	return nil
}

// Semaphore orders work between queue operations. It depends on its
// device.
type Semaphore struct {
	resource
	dev *Device
}

// SemaphoreBuilder configures a Semaphore.
type SemaphoreBuilder struct {
	builder
	dev *Device
}

func NewSemaphoreBuilder(dev *Device) *SemaphoreBuilder {
	return &SemaphoreBuilder{dev: dev}
}

// Build creates the semaphore.
func (b *SemaphoreBuilder) Build() (*Semaphore, error) {
	if err := b.consume("Semaphore"); err != nil {
		return nil, err
	}
	if b.dev == nil {
		return nil, missing("SemaphoreBuilder.Build", "device")
	}
	if err := live("SemaphoreBuilder.Build", &b.dev.resource); err != nil {
		return nil, err
	}
	h, err := b.dev.env.api.CreateSemaphore(b.dev.handle)
	if err != nil {
		return nil, creationError("Semaphore", err)
	}
	return &Semaphore{
		resource: newResource(b.dev.env, "Semaphore", h, b.dev.env.api.DestroySemaphore, b.dev.node()),
		dev:      b.dev,
	}, nil
}
