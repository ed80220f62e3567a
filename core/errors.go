// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// Causes carried by ResourceCreationError when the failure is detected
// before any native call.
var (
	ErrNoSuitableDevice     = errors.New("no suitable physical device")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ResourceCreationError is returned when a builder fails to create its
// resource. Nothing was retained and no handle leaked.
type ResourceCreationError struct {
	Kind string
	Err  error
}

func (e *ResourceCreationError) Error() string {
	return fmt.Sprintf("vksafe: create %s: %v", e.Kind, e.Err)
}

func (e *ResourceCreationError) Unwrap() error {
	return e.Err
}

// ExecutionError is returned when the native API rejects submitted work
// or a wait.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("vksafe: %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// PresentationKind classifies presentation failures.
type PresentationKind int

const (
	// OutOfDate means the swapchain must be recreated before presenting
	// again. The frame is dropped.
	OutOfDate PresentationKind = iota
	// Fatal means the surface or device is gone.
	Fatal
)

func (k PresentationKind) String() string {
	switch k {
	case OutOfDate:
		return "out of date"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("PresentationKind(%d)", int(k))
}

// PresentationError is returned by image acquisition and presentation.
type PresentationError struct {
	Kind PresentationKind
	Err  error
}

func (e *PresentationError) Error() string {
	return fmt.Sprintf("vksafe: present (%v): %v", e.Kind, e.Err)
}

func (e *PresentationError) Unwrap() error {
	return e.Err
}

// ProtocolViolation reports an attempt to use the API in an order or
// combination the native API forbids. No native call was made for the
// offending operation.
type ProtocolViolation struct {
	Op     string
	Reason string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("vksafe: protocol violation in %s: %s", e.Op, e.Reason)
}

func (e *ProtocolViolation) Unwrap() error {
	return e.Err
}

func violation(op, format string, args ...interface{}) *ProtocolViolation {
	return &ProtocolViolation{Op: op, Reason: fmt.Sprintf(format, args...)}
}

func creationError(kind string, err error) *ResourceCreationError {
	return &ResourceCreationError{Kind: kind, Err: err}
}

// IsOutOfDate reports whether err is a PresentationError asking for the
// swapchain to be recreated.
func IsOutOfDate(err error) bool {
	var perr *PresentationError
	return errors.As(err, &perr) && perr.Kind == OutOfDate
}
