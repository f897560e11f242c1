// Package navigation sequences onboarding screens.
//
// Controller keeps the back-stack and nothing else. Which screen may follow
// which, and where each actor branches, is decided by Flow.
package navigation

import (
	"strings"

	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
)

// Controller is the back-stack of one session. It is not safe for concurrent
// use; the owning session serializes calls.
//
// Invariants:
//   - history is never empty and history[0] is the root screen
//   - only the tail is ever pushed or popped
type Controller struct {
	root    id.ScreenID
	history []id.ScreenID
}

// NewController returns a controller positioned at ScreenWelcome.
func NewController() *Controller {
	return NewControllerAt(ScreenWelcome)
}

// NewControllerAt returns a controller with a custom root.
func NewControllerAt(root id.ScreenID) *Controller {
	return &Controller{root: root, history: []id.ScreenID{root}}
}

// GoTo pushes screen and makes it current.
func (c *Controller) GoTo(screen id.ScreenID) error {
	if strings.TrimSpace(string(screen)) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "screen id cannot be empty")
	}
	c.history = append(c.history, screen)
	return nil
}

// GoBack pops the tail and returns the new current screen. At the root it
// does nothing and reports false.
func (c *Controller) GoBack() (id.ScreenID, bool) {
	if len(c.history) <= 1 {
		return c.Current(), false
	}
	c.history = c.history[:len(c.history)-1]
	return c.Current(), true
}

// Reset truncates the history to the root.
func (c *Controller) Reset() {
	c.history = []id.ScreenID{c.root}
}

func (c *Controller) Current() id.ScreenID {
	return c.history[len(c.history)-1]
}

// Previous is the screen GoBack would return to, or false at the root.
func (c *Controller) Previous() (id.ScreenID, bool) {
	if len(c.history) <= 1 {
		return "", false
	}
	return c.history[len(c.history)-2], true
}

// History returns a copy of the back-stack, root first.
func (c *Controller) History() []id.ScreenID {
	out := make([]id.ScreenID, len(c.history))
	copy(out, c.history)
	return out
}

// Restore replaces the back-stack with a previously saved one. The first
// entry must be the root.
func (c *Controller) Restore(history []id.ScreenID) error {
	if len(history) == 0 || history[0] != c.root {
		return dErrors.Newf(dErrors.CodeInvalidInput, "history must start at %s", c.root)
	}
	c.history = append([]id.ScreenID(nil), history...)
	return nil
}
