package evaluate

import (
	"fmt"
	"strings"

	"vpo/internal/media"
	"vpo/internal/policy"
)

// Container emits a conversion intent when the view's format differs
// from the target.
func Container(op *policy.ContainerOp, view *media.Snapshot) Outcome {
	if op == nil || strings.EqualFold(view.Container, op.Target) {
		return Outcome{View: view}
	}
	next := view.Clone()
	next.Container = op.Target
	action := Action{
		Kind:      ActionSetContainer,
		Operation: string(policy.OpContainer),
		Container: op.Target,
		Reason:    fmt.Sprintf("container %s differs from target %s", view.Container, op.Target),
	}
	return Outcome{Actions: []Action{action}, View: next}
}
