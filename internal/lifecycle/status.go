// Package lifecycle enforces the hypothesis status machine: which transitions
// are legal, which nodes lock, and when an expansion is requested.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/secai/secai/internal/types"
)

// Action is an analyst verdict on a hypothesis.
type Action string

const (
	MarkPlausible   Action = "mark-plausible"
	MarkImplausible Action = "mark-implausible"
)

// Effect is the side effect a transition asks the caller to perform.
type Effect int

const (
	EffectNone Effect = iota
	EffectExpand
)

func (e Effect) String() string {
	if e == EffectExpand {
		return "expand"
	}
	return "none"
}

var (
	ErrRootImmune    = errors.New("root node does not accept status changes")
	ErrLocked        = errors.New("node is locked")
	ErrUnknownAction = errors.New("unknown action")
	ErrNotFound      = errors.New("node not found")
)

// ParseAction accepts both the action name and the bare target status,
// e.g. "mark-plausible" or "plausible".
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(MarkPlausible), string(types.StatusPlausible):
		return MarkPlausible, nil
	case string(MarkImplausible), string(types.StatusImplausible):
		return MarkImplausible, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Target returns the status an action moves a node to.
func Target(a Action) (types.Status, error) {
	switch a {
	case MarkPlausible:
		return types.StatusPlausible, nil
	case MarkImplausible:
		return types.StatusImplausible, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, a)
}

// Actions lists the transitions offered for n. Root and locked nodes get none.
func Actions(n *types.Node) []Action {
	if n == nil || n.IsRoot() || n.Locked || n.Status.Terminal() {
		return nil
	}
	return []Action{MarkPlausible, MarkImplausible}
}

// Transition applies a to n and returns the new node value with the side
// effect the caller must perform. n itself is not modified.
func Transition(n types.Node, a Action) (types.Node, Effect, error) {
	target, err := Target(a)
	if err != nil {
		return n, EffectNone, err
	}
	if n.Type == types.NodeRoot {
		return n, EffectNone, ErrRootImmune
	}
	if n.Locked || n.Status.Terminal() {
		return n, EffectNone, fmt.Errorf("%w: %s is %s", ErrLocked, n.ID, n.Status)
	}
	n.Status = target
	n.Locked = true
	if target == types.StatusPlausible {
		return n, EffectExpand, nil
	}
	return n, EffectNone, nil
}
