// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core wraps a native graphics API so that resources are destroyed
// in dependency order and commands are recorded in a legal sequence.
//
// Every wrapper owns one reference in an ownership graph. Destroy drops
// that reference; the native object goes away once nothing depends on it
// any more. A device destroyed while a swapchain still uses it stays alive
// until the swapchain is destroyed too.
//
// Resources are created through single-use builders. Command buffers are
// recorded through recorder types that only expose the calls legal in the
// current recording state.
package core

import (
	"github.com/sirupsen/logrus"

	"github.com/devblok/vksafe/internal/ownership"
	"github.com/devblok/vksafe/native"
)

// Window is the windowing collaborator: it tells which instance
// extensions are needed to present to it and creates surfaces for a native
// instance.
type Window interface {
	// RequiredExtensions lists the instance extensions needed to create
	// a surface for this window.
	RequiredExtensions() []string

	// NewSurface creates a platform surface for the implementation's
	// native instance value.
	NewSurface(instance interface{}) (uintptr, error)

	// CloseRequested reports whether the user asked to close the window.
	CloseRequested() bool

	// Update processes pending window events.
	Update()

	// Size returns the drawable size in pixels.
	Size() (width, height uint32)
}

// env is shared by every resource created from one instance.
type env struct {
	api   native.API
	log   logrus.FieldLogger
	debug bool
}

// resource is embedded in every wrapper owning a native handle.
type resource struct {
	env    *env
	kind   string
	handle native.Handle
	ref    *ownership.Ref
}

func newResource(e *env, kind string, h native.Handle, destroy func(native.Handle), parents ...*ownership.Node) resource {
	n := ownership.New(kind, func() {
		destroy(h)
		e.log.WithFields(logrus.Fields{"kind": kind, "handle": h}).Debug("destroyed")
	}, parents...)
	e.log.WithFields(logrus.Fields{"kind": kind, "handle": h}).Debug("created")
	return resource{env: e, kind: kind, handle: h, ref: ownership.NewRef(n)}
}

// Handle returns the native handle. It stays valid while the wrapper is
// alive.
func (r *resource) Handle() native.Handle {
	return r.handle
}

// Alive reports whether Destroy has not been called on this wrapper.
func (r *resource) Alive() bool {
	return !r.ref.Released() && r.ref.Node().Alive()
}

// Destroy releases this wrapper's reference. The native object is
// destroyed once no other resource depends on it. Calling Destroy more than
// once has no effect.
func (r *resource) Destroy() {
	if !r.ref.Release() {
		return
	}
	n := r.ref.Node()
	if n.Alive() && n.Dependents() > 0 && r.env.debug {
		r.env.log.WithFields(logrus.Fields{
			"kind":       r.kind,
			"handle":     r.handle,
			"dependents": n.Dependents(),
		}).Warn("destruction deferred until dependents are destroyed")
	}
}

func (r *resource) node() *ownership.Node {
	return r.ref.Node()
}

// missing returns a ProtocolViolation for a required wrapper that is nil.
func missing(op, what string) error {
	return violation(op, "missing %s", what)
}

// live returns a ProtocolViolation naming the first resource that was
// destroyed or never created.
func live(op string, rs ...*resource) error {
	for _, r := range rs {
		if r.ref == nil {
			return violation(op, "missing resource")
		}
		if !r.Alive() {
			return &ProtocolViolation{
				Op:     op,
				Reason: r.kind + " used after Destroy",
				Err:    ownership.ErrReleased,
			}
		}
	}
	return nil
}

// builder is embedded by every builder to make it single-use.
type builder struct {
	built bool
}

func (b *builder) consume(kind string) error {
	if b.built {
		return violation(kind+"Builder.Build", "builder already used")
	}
	b.built = true
	return nil
}
