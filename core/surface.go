// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/pkg/errors"

	"github.com/devblok/vksafe/native"
)

// Surface is a presentable window area. It depends on the instance.
type Surface struct {
	resource
	inst *Instance
}

// NewSurface creates a surface for src, usually a Window.
func NewSurface(inst *Instance, src native.SurfaceSource) (*Surface, error) {
	if inst == nil {
		return nil, missing("NewSurface", "instance")
	}
	if err := live("NewSurface", &inst.resource); err != nil {
		return nil, err
	}
	h, err := inst.env.api.CreateSurface(inst.handle, src)
	if err != nil {
		return nil, creationError("Surface", errors.Wrap(err, "window surface"))
	}
	return &Surface{
		resource: newResource(inst.env, "Surface", h, inst.env.api.DestroySurface, inst.node()),
		inst:     inst,
	}, nil
}
