package phase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vpo/internal/logging"
	"vpo/internal/media"
	"vpo/internal/policy"
	"vpo/internal/policy/evaluate"
	"vpo/internal/services"
)

// Result is the full outcome of evaluating a policy against one file: the
// plan's action list plus per-phase detail. The action list is what gets
// persisted; the rest feeds previews and logs.
type Result struct {
	File          string            `json:"file"`
	Policy        string            `json:"policy"`
	PolicyVersion int               `json:"policy_version"`
	Fingerprint   string            `json:"fingerprint"`
	Phases        []Outcome         `json:"phases"`
	Actions       []evaluate.Action `json:"-"`
	Warnings      []string          `json:"warnings,omitempty"`
	Skips         []string          `json:"skips,omitempty"`
	RequiresRemux bool              `json:"requires_remux"`
	View          *media.Snapshot   `json:"final_view,omitempty"`
}

// Outcome is the per-phase slice of a Result.
type Outcome struct {
	Name       string                 `json:"name"`
	OnError    string                 `json:"on_error,omitempty"`
	Actions    []evaluate.Action      `json:"actions"`
	Warnings   []string               `json:"warnings,omitempty"`
	Skips      []string               `json:"skips,omitempty"`
	Suppressed []policy.OperationKind `json:"suppressed,omitempty"`
}

// Summary renders the one-line plan description stored alongside the plan
// and shown in listings.
func (r *Result) Summary() string {
	if len(r.Actions) == 0 {
		return "no changes needed"
	}
	summary := fmt.Sprintf("%s in %s", plural(len(r.Actions), "action"), plural(len(r.Phases), "phase"))
	if r.RequiresRemux {
		summary += ", remux required"
	}
	return summary
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Executor evaluates policy phases against track snapshots. It is pure
// metadata work: the executor never touches files and never talks to the
// database.
type Executor struct {
	log *slog.Logger
}

// NewExecutor returns an executor logging through log. A nil logger
// discards output.
func NewExecutor(log *slog.Logger) *Executor {
	if log == nil {
		log = logging.NewNop()
	}
	return &Executor{log: log}
}

// Run evaluates the model's phases in declared order against the snapshot
// and assembles the file's plan. only filters to the named phases,
// preserving declared order; an unknown name is a validation error.
//
// An operation error always fails the file: a partial plan is never
// returned. The failing phase's on_error mode only decides how much of the
// rest of the policy still evaluates first. fail and skip stop at the
// broken phase; continue walks the remaining phases against the last good
// view so a single run reports every broken phase.
func (e *Executor) Run(model *policy.Model, only []string, snap *media.Snapshot) (*Result, error) {
	phases, err := selectPhases(model, only)
	if err != nil {
		return nil, err
	}
	result := &Result{
		File:          snap.Path,
		Policy:        model.Name,
		PolicyVersion: model.SchemaVersion,
		Fingerprint:   snap.Fingerprint(),
	}
	log := e.log.With(logging.String("file", snap.Path), logging.String("policy", model.Name))

	view := snap
	var failures []error
	for _, ph := range phases {
		outcome, next, err := e.runPhase(log, model, ph, view)
		if err != nil {
			err = fmt.Errorf("phase %s: %w", ph.Name, err)
			if model.PhaseOnError(ph) != policy.OnErrorContinue {
				failures = append(failures, err)
				break
			}
			log.Warn("phase failed, evaluating remaining phases",
				logging.String("phase", ph.Name),
				logging.Error(err))
			failures = append(failures, err)
			continue
		}
		view = next
		result.Phases = append(result.Phases, outcome)
		result.Actions = append(result.Actions, outcome.Actions...)
		result.Warnings = append(result.Warnings, outcome.Warnings...)
		result.Skips = append(result.Skips, outcome.Skips...)
	}
	if len(failures) > 0 {
		return nil, errors.Join(failures...)
	}
	result.RequiresRemux = evaluate.RequiresRemux(result.Actions)
	result.View = view
	log.Debug("policy evaluated",
		logging.Int("phases", len(result.Phases)),
		logging.Int("actions", len(result.Actions)),
		logging.Bool("remux", result.RequiresRemux))
	return result, nil
}

func (e *Executor) runPhase(log *slog.Logger, model *policy.Model, ph policy.Phase, view *media.Snapshot) (Outcome, *media.Snapshot, error) {
	outcome := Outcome{Name: ph.Name, OnError: model.PhaseOnError(ph)}
	cfg := evaluate.NewConfig(model, ph)
	suppressed := make(map[policy.OperationKind]bool)

	for _, kind := range policy.CanonicalOrder() {
		if kind == policy.OpAudioFilter {
			// The clear-all normalization slots between container and
			// the filters.
			cleared := evaluate.Normalize(ph, view)
			outcome.Actions = append(outcome.Actions, cleared.Actions...)
			view = cleared.View
		}
		if !ph.HasOperation(kind) {
			continue
		}
		if suppressed[kind] {
			outcome.Skips = append(outcome.Skips, fmt.Sprintf("%s: disabled by rule", kind))
			continue
		}
		evaluated, err := evaluate.Operation(cfg, ph, kind, view)
		if err != nil {
			return Outcome{}, nil, err
		}
		view = evaluated.View
		outcome.Actions = append(outcome.Actions, evaluated.Actions...)
		outcome.Warnings = append(outcome.Warnings, evaluated.Warnings...)
		outcome.Skips = append(outcome.Skips, evaluated.Skips...)
		for _, later := range evaluated.Suppress {
			if !suppressed[later] {
				suppressed[later] = true
				outcome.Suppressed = append(outcome.Suppressed, later)
			}
		}
		for _, warning := range evaluated.Warnings {
			log.Warn("policy warning",
				logging.String("phase", ph.Name),
				logging.String("operation", string(kind)),
				logging.String("detail", warning))
		}
	}
	return outcome, view, nil
}

// selectPhases resolves the phase filter against the model. Selection
// never changes execution order; phases always run in declared order.
func selectPhases(model *policy.Model, only []string) ([]policy.Phase, error) {
	if len(only) == 0 {
		return model.Phases, nil
	}
	want := make(map[string]bool, len(only))
	for _, name := range only {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := model.FindPhase(name); !ok {
			return nil, services.Wrap(services.ErrValidation, "", "",
				fmt.Sprintf("policy %s has no phase %q (declared: %s)",
					model.Name, name, strings.Join(model.PhaseNames(), ", ")), nil)
		}
		want[name] = true
	}
	if len(want) == 0 {
		return model.Phases, nil
	}
	selected := make([]policy.Phase, 0, len(want))
	for _, ph := range model.Phases {
		if want[ph.Name] {
			selected = append(selected, ph)
		}
	}
	return selected, nil
}
