package evaluate

import (
	"fmt"

	"vpo/internal/media"
	"vpo/internal/policy"
	"vpo/internal/services"
)

// TrackOrder computes the stable bucket sort for the declared role
// sequence and emits a single reorder action when the view is out of
// order. Each track lands in the first declared bucket it matches, ties
// keep original relative order, and tracks matching no declared bucket
// are appended after all buckets in their original relative order.
func TrackOrder(cfg Config, order []string, view *media.Snapshot) (Outcome, error) {
	if len(order) == 0 {
		return Outcome{View: view}, nil
	}
	roles := make([]policy.TrackRole, len(order))
	for i, name := range order {
		role := policy.TrackRole(name)
		if !policy.ValidTrackRole(role) {
			return Outcome{}, services.Wrap(services.ErrOperation, "", string(policy.OpTrackOrder),
				fmt.Sprintf("unknown track role %q", name), nil)
		}
		roles[i] = role
	}

	assigned := make([]bool, len(view.Tracks))
	sequence := make([]int, 0, len(view.Tracks))
	for _, role := range roles {
		for pos, track := range view.Tracks {
			if assigned[pos] || !cfg.matchesRole(track, role) {
				continue
			}
			assigned[pos] = true
			sequence = append(sequence, pos)
		}
	}
	for pos := range view.Tracks {
		if !assigned[pos] {
			sequence = append(sequence, pos)
		}
	}

	inOrder := true
	for i, pos := range sequence {
		if pos != i {
			inOrder = false
			break
		}
	}
	if inOrder {
		return Outcome{View: view}, nil
	}

	next := view.Clone()
	reordered := make([]media.Track, len(sequence))
	identity := make([]int, len(sequence))
	for i, pos := range sequence {
		reordered[i] = next.Tracks[pos]
		identity[i] = next.Tracks[pos].Index
	}
	next.Tracks = reordered
	action := Action{Kind: ActionReorder, Operation: string(policy.OpTrackOrder), Order: identity}
	return Outcome{Actions: []Action{action}, View: next}, nil
}
