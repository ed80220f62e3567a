// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package ownership_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vksafe/internal/ownership"
)

type journal []string

func (j *journal) destroy(name string) func() {
	return func() { *j = append(*j, name) }
}

func TestChainDestroyedInReverseOrder(t *testing.T) {
	c := qt.New(t)
	var log journal

	instance := ownership.New("Instance", log.destroy("instance"))
	device := ownership.New("Device", log.destroy("device"), instance)
	pool := ownership.New("CommandPool", log.destroy("pool"), device)

	c.Assert(instance.Dependents(), qt.Equals, 1)
	c.Assert(device.Dependents(), qt.Equals, 1)

	// Owners let go of the parents first; nothing may be destroyed yet.
	instance.Release()
	device.Release()
	c.Assert(log, qt.HasLen, 0)
	c.Assert(instance.Alive(), qt.IsTrue)
	c.Assert(device.Alive(), qt.IsTrue)

	pool.Release()
	c.Assert([]string(log), qt.DeepEquals, []string{"pool", "device", "instance"})
	c.Assert(instance.Alive(), qt.IsFalse)
}

func TestSharedNodeDestroyedOnceAfterLastRef(t *testing.T) {
	c := qt.New(t)
	var log journal

	image := ownership.New("Image", log.destroy("image"))
	owner := ownership.NewRef(image)

	const n = 5
	refs := make([]*ownership.Ref, n)
	for i := range refs {
		refs[i] = owner.Clone()
	}
	c.Assert(image.Refs(), qt.Equals, n+1)

	c.Assert(owner.Release(), qt.IsTrue)
	c.Assert(owner.Release(), qt.IsFalse)
	for i, ref := range refs {
		c.Assert(log, qt.HasLen, 0, qt.Commentf("released %d of %d", i, n))
		ref.Release()
		ref.Release()
	}
	c.Assert([]string(log), qt.DeepEquals, []string{"image"})
	c.Assert(image.Alive(), qt.IsFalse)
}

func TestDiamondReleasesSharedParentOnce(t *testing.T) {
	c := qt.New(t)
	var log journal

	device := ownership.New("Device", log.destroy("device"))
	image := ownership.New("Image", log.destroy("image"), device)
	viewA := ownership.New("ImageView", log.destroy("viewA"), device, image)
	viewB := ownership.New("ImageView", log.destroy("viewB"), device, image)
	fb := ownership.New("Framebuffer", log.destroy("fb"), device, viewA, viewB)

	for _, n := range []*ownership.Node{device, image, viewA, viewB} {
		n.Release()
	}
	c.Assert(log, qt.HasLen, 0)
	c.Assert(device.Dependents(), qt.Equals, 4)

	fb.Release()
	c.Assert([]string(log), qt.DeepEquals, []string{"fb", "viewB", "viewA", "image", "device"})
	c.Assert(device.Dependents(), qt.Equals, 0)
}

func TestCheck(t *testing.T) {
	c := qt.New(t)
	a := ownership.New("A", nil)
	b := ownership.New("B", nil)
	c.Assert(ownership.Check(a, nil, b), qt.IsNil)
	b.Release()
	c.Assert(ownership.Check(a, b), qt.Equals, ownership.ErrReleased)
}

func TestRetainDestroyedPanics(t *testing.T) {
	c := qt.New(t)
	n := ownership.New("Fence", nil)
	n.Release()
	c.Assert(func() { n.Retain() }, qt.PanicMatches, "ownership: retain of destroyed Fence")
	c.Assert(func() { ownership.New("Child", nil, n) }, qt.PanicMatches, ".*destroyed Fence")
}
