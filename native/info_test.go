// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package native_test

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vksafe/native"
)

func TestHasExtension(t *testing.T) {
	c := qt.New(t)
	pd := native.PhysicalDevice{Extensions: []string{"VK_KHR_swapchain", "VK_KHR_synchronization2"}}
	c.Assert(pd.HasExtension("VK_KHR_swapchain"), qt.IsTrue)
	c.Assert(pd.HasExtension("VK_KHR_ray_query"), qt.IsFalse)
}

func TestSurfaceSourceFunc(t *testing.T) {
	c := qt.New(t)
	var got interface{}
	src := native.SurfaceSourceFunc(func(instance interface{}) (uintptr, error) {
		got = instance
		return 42, nil
	})
	ptr, err := src.NewSurface("instance")
	c.Assert(err, qt.IsNil)
	c.Assert(ptr, qt.Equals, uintptr(42))
	c.Assert(got, qt.Equals, "instance")

	failing := native.SurfaceSourceFunc(func(interface{}) (uintptr, error) {
		return 0, errors.New("no window")
	})
	_, err = failing.NewSurface(nil)
	c.Assert(err, qt.ErrorMatches, "no window")
}

func TestHandleString(t *testing.T) {
	c := qt.New(t)
	c.Assert(native.Handle(255).String(), qt.Equals, "0xff")
}
