// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package window

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/veandco/go-sdl2/sdl"
)

func TestCloses(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		name  string
		event sdl.Event
		want  bool
	}{
		{"quit", &sdl.QuitEvent{Type: sdl.QUIT}, true},
		{"escape", &sdl.KeyboardEvent{Type: sdl.KEYDOWN, State: sdl.PRESSED, Keysym: sdl.Keysym{Sym: sdl.K_ESCAPE}}, true},
		{"escape released", &sdl.KeyboardEvent{Type: sdl.KEYUP, State: sdl.RELEASED, Keysym: sdl.Keysym{Sym: sdl.K_ESCAPE}}, false},
		{"other key", &sdl.KeyboardEvent{Type: sdl.KEYDOWN, State: sdl.PRESSED, Keysym: sdl.Keysym{Sym: sdl.K_SPACE}}, false},
		{"window close", &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_CLOSE}, true},
		{"resize", &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_SIZE_CHANGED}, false},
	}
	for _, test := range tests {
		c.Run(test.name, func(c *qt.C) {
			c.Assert(closes(test.event), qt.Equals, test.want)
		})
	}
}
