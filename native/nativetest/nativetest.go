// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package nativetest provides an in-memory native.API for tests.
//
// The fake keeps every object it hands out, logs every call, counts
// destructions per handle and checks the usage rules a real driver would
// silently rely on: parents destroyed before children, commands recorded
// outside a render pass, submission of unfinished command buffers, waits on
// semaphores nobody signals. Such misuse is not fatal; it is collected and
// reported by Violations so tests can assert the safety layer never causes
// any.
//
// GPU work completes instantly: a submission signals its fence and
// semaphores before QueueSubmit returns.
package nativetest

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/devblok/vksafe/gfx"
	"github.com/devblok/vksafe/native"
)

// ErrWouldBlock is returned by WaitFence for a fence that no submitted
// work will ever signal.
var ErrWouldBlock = errors.New("nativetest: wait on a fence that will never signal")

// Object kinds, as reported by Kind.
const (
	KindInstance       = "Instance"
	KindSurface        = "Surface"
	KindDevice         = "Device"
	KindQueue          = "Queue"
	KindSwapchain      = "Swapchain"
	KindImage          = "Image"
	KindImageView      = "ImageView"
	KindRenderPass     = "RenderPass"
	KindFramebuffer    = "Framebuffer"
	KindPipelineLayout = "PipelineLayout"
	KindShaderModule   = "ShaderModule"
	KindPipeline       = "Pipeline"
	KindCommandPool    = "CommandPool"
	KindCommandBuffer  = "CommandBuffer"
	KindFence          = "Fence"
	KindSemaphore      = "Semaphore"
)

// DefaultExtent is the size of a newly created surface.
var DefaultExtent = gfx.Extent2D{Width: 800, Height: 600}

// Call is one logged API call. Handle is the created object for creation
// calls and the first handle argument otherwise.
type Call struct {
	Op     string
	Handle native.Handle
	Args   []interface{}
}

type cmdState int

const (
	cmdInitial cmdState = iota
	cmdRecording
	cmdExecutable
)

type object struct {
	kind      string
	parents   []native.Handle
	destroyed bool

	// Swapchain and surface.
	extent    gfx.Extent2D
	format    gfx.Format
	surface   native.Handle
	images    []native.Handle
	next      uint32
	outOfDate bool

	// Swapchain images.
	borrowed  bool
	retrieved bool

	// Render pass.
	attachments int

	// Command buffers.
	state    cmdState
	inPass   bool
	pipeline bool

	// Fences and semaphores.
	signaled bool
}

// API is the fake implementation. The zero value is not usable; call New.
type API struct {
	// Devices are reported by PhysicalDevices.
	Devices []native.PhysicalDevice

	// PresentSupport decides SurfaceSupport. Nil means every family of
	// every device can present.
	PresentSupport func(device, family int) bool

	mu         sync.Mutex
	last       native.Handle
	objects    map[native.Handle]*object
	queues     map[[3]int]native.Handle
	calls      []Call
	destroys   map[native.Handle]int
	violations []string
	failures   map[string][]error
}

// New returns a fake with a single discrete GPU whose one queue family
// supports graphics, compute and transfer work and presentation.
func New() *API {
	return &API{
		Devices: []native.PhysicalDevice{{
			Index:    0,
			ID:       0x1234,
			VendorID: 0x10de,
			Name:     "nativetest GPU",
			Type:     gfx.DeviceTypeDiscreteGPU,
			Memory:   8 << 30,
			Extensions: []string{
				"VK_KHR_swapchain",
				"VK_KHR_synchronization2",
			},
			QueueFamilies: []native.QueueFamily{{
				Flags: gfx.QueueGraphics | gfx.QueueCompute | gfx.QueueTransfer,
				Count: 4,
			}},
		}},
		objects:  make(map[native.Handle]*object),
		queues:   make(map[[3]int]native.Handle),
		destroys: make(map[native.Handle]int),
		failures: make(map[string][]error),
	}
}

// Fail makes the next call to op return err. Calls queue up: failing the
// same op twice fails its next two calls.
func (a *API) Fail(op string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[op] = append(a.failures[op], err)
}

// Calls returns a copy of the call log.
func (a *API) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	calls := make([]Call, len(a.calls))
	copy(calls, a.calls)
	return calls
}

// CallsOf returns the logged calls to op.
func (a *API) CallsOf(op string) []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	var calls []Call
	for _, c := range a.calls {
		if c.Op == op {
			calls = append(calls, c)
		}
	}
	return calls
}

// Count returns how many times op was called.
func (a *API) Count(op string) int {
	return len(a.CallsOf(op))
}

// Ops returns the operation names of the call log, in order, keeping only
// the listed ops when any are given.
func (a *API) Ops(only ...string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	keep := make(map[string]bool, len(only))
	for _, op := range only {
		keep[op] = true
	}
	var ops []string
	for _, c := range a.calls {
		if len(only) == 0 || keep[c.Op] {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

// Destroys returns how many times h was destroyed or freed.
func (a *API) Destroys(h native.Handle) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroys[h]
}

// Alive reports whether h was created and not destroyed yet.
func (a *API) Alive(h native.Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	obj, ok := a.objects[h]
	return ok && !obj.destroyed
}

// Kind returns the kind of object h refers to.
func (a *API) Kind(h native.Handle) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if obj, ok := a.objects[h]; ok {
		return obj.kind
	}
	return ""
}

// Live returns the live handles of the given kind, or of every kind except
// queues and borrowed swapchain images when kind is empty.
func (a *API) Live(kind string) []native.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	var live []native.Handle
	for h, obj := range a.objects {
		if obj.destroyed {
			continue
		}
		if kind == "" && (obj.kind == KindQueue || obj.borrowed) {
			continue
		}
		if kind == "" || obj.kind == kind {
			live = append(live, h)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i] < live[j] })
	return live
}

// Signaled reports the state of a fence or semaphore.
func (a *API) Signaled(h native.Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if obj, ok := a.objects[h]; ok {
		return obj.signaled
	}
	return false
}

// Violations returns the misuse detected so far.
func (a *API) Violations() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := make([]string, len(a.violations))
	copy(v, a.violations)
	return v
}

// Resize changes the size of a surface. Every swapchain created for it
// with a different extent becomes out of date.
func (a *API) Resize(surface native.Handle, extent gfx.Extent2D) {
	a.mu.Lock()
	defer a.mu.Unlock()
	srf, ok := a.objects[surface]
	if !ok {
		panic(fmt.Sprintf("nativetest: resize of unknown surface %v", surface))
	}
	srf.extent = extent
	for _, obj := range a.objects {
		if obj.kind == KindSwapchain && obj.surface == surface && obj.extent != extent {
			obj.outOfDate = true
		}
	}
}

// Invalidate marks a swapchain out of date without changing its surface.
func (a *API) Invalidate(swapchain native.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if obj, ok := a.objects[swapchain]; ok {
		obj.outOfDate = true
	}
}

func (a *API) log(op string, h native.Handle, args ...interface{}) {
	a.calls = append(a.calls, Call{Op: op, Handle: h, Args: args})
}

func (a *API) violate(format string, args ...interface{}) {
	a.violations = append(a.violations, fmt.Sprintf(format, args...))
}

func (a *API) failure(op string) error {
	queued := a.failures[op]
	if len(queued) == 0 {
		return nil
	}
	a.failures[op] = queued[1:]
	return queued[0]
}

// lookup returns a live object of the wanted kind, recording a violation
// when h is unknown, destroyed or of another kind.
func (a *API) lookup(op string, h native.Handle, kind string) *object {
	obj, ok := a.objects[h]
	switch {
	case !ok:
		a.violate("%s: unknown %s %v", op, kind, h)
		return nil
	case obj.destroyed:
		a.violate("%s: %s %v used after destruction", op, kind, h)
		return nil
	case obj.kind != kind:
		a.violate("%s: %v is a %s, not a %s", op, h, obj.kind, kind)
		return nil
	}
	return obj
}

// create runs the shared part of every creation call: logging, failure
// injection and parent checks.
func (a *API) create(op, kind string, obj *object, parents ...native.Handle) (native.Handle, error) {
	if err := a.failure(op); err != nil {
		a.log(op, native.Null)
		return native.Null, err
	}
	for _, p := range parents {
		if p == native.Null {
			continue
		}
		if parent, ok := a.objects[p]; !ok || parent.destroyed {
			a.violate("%s: parent %v is not alive", op, p)
		}
		obj.parents = append(obj.parents, p)
	}
	a.last++
	h := a.last
	obj.kind = kind
	a.objects[h] = obj
	a.log(op, h)
	return h, nil
}

// destroy marks h destroyed, checking kind, double destruction and live
// children.
func (a *API) destroy(op string, h native.Handle, kind string) *object {
	a.log(op, h)
	a.destroys[h]++
	obj, ok := a.objects[h]
	if !ok {
		a.violate("%s: unknown %s %v", op, kind, h)
		return nil
	}
	if obj.destroyed {
		a.violate("%s: %s %v destroyed twice", op, kind, h)
		return nil
	}
	if obj.kind != kind {
		a.violate("%s: %v is a %s, not a %s", op, h, obj.kind, kind)
	}
	for ch, child := range a.objects {
		if child.destroyed || child.kind == KindQueue || (child.borrowed && !child.retrieved) {
			continue
		}
		for _, p := range child.parents {
			if p == h {
				a.violate("%s: %s %v destroyed before its %s %v", op, kind, h, child.kind, ch)
			}
		}
	}
	obj.destroyed = true
	return obj
}

// SPIRV returns a minimal SPIR-V binary the fake accepts as shader code:
// the magic number followed by body.
func SPIRV(body ...uint32) []byte {
	words := append([]uint32{spirvMagic, 0x00010000, 0, 1, 0}, body...)
	code := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(code[4*i:], w)
	}
	return code
}
