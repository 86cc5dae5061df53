package evaluate

import (
	"fmt"
	"regexp"
	"strings"

	"vpo/internal/language"
	"vpo/internal/media"
	"vpo/internal/policy"
	"vpo/internal/services"
)

// Rules evaluates the conditional rule list against the current view.
// Conditions see the view as already mutated by earlier operations in
// the phase. Match mode first stops after the first rule whose
// condition holds; unmatched rules before it still run their else
// branch.
func Rules(cfg Config, op *policy.RulesOp, view *media.Snapshot) (Outcome, error) {
	if op == nil || len(op.Items) == 0 {
		return Outcome{View: view}, nil
	}
	outcome := Outcome{}
	next := view.Clone()
	mutated := false
	for i := range op.Items {
		rule := &op.Items[i]
		matched, err := cfg.evalCondition(rule.When, next)
		if err != nil {
			return Outcome{}, err
		}
		branch := rule.Else
		if matched {
			branch = rule.Then
		}
		for j := range branch {
			changed, err := cfg.applyRuleAction(rule.Name, &branch[j], next, &outcome)
			if err != nil {
				return Outcome{}, err
			}
			mutated = mutated || changed
		}
		if matched && op.MatchMode() == "first" {
			break
		}
	}
	if mutated {
		outcome.View = next
	} else {
		outcome.View = view
	}
	return outcome, nil
}

func (c Config) applyRuleAction(ruleName string, action *policy.RuleAction, next *media.Snapshot, outcome *Outcome) (bool, error) {
	switch {
	case action.SetForced != nil:
		return c.applyFlag(ActionSetForced, &action.SetForced.Tracks, action.SetForced.FlagValue(), next, outcome)
	case action.SetDefault != nil:
		return c.applyFlag(ActionSetDefault, &action.SetDefault.Tracks, action.SetDefault.FlagValue(), next, outcome)
	case action.SetLanguage != nil:
		return c.applyLanguage(action.SetLanguage, next, outcome)
	case action.Warn != "":
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("rule %s: %s", ruleName, action.Warn))
		return false, nil
	case action.Fail != "":
		return false, services.Wrap(services.ErrOperation, "", string(policy.OpConditional),
			fmt.Sprintf("rule %s: %s", ruleName, action.Fail), nil)
	case len(action.Skip) > 0:
		for _, name := range action.Skip {
			kind := policy.OperationKind(name)
			if !containsKind(outcome.Suppress, kind) {
				outcome.Suppress = append(outcome.Suppress, kind)
			}
		}
		outcome.Skips = append(outcome.Skips, fmt.Sprintf("rule %s: skip %s", ruleName, strings.Join(action.Skip, ", ")))
		return false, nil
	}
	return false, nil
}

func (c Config) applyFlag(kind Kind, pred *policy.TrackPredicate, value bool, next *media.Snapshot, outcome *Outcome) (bool, error) {
	changed := false
	for i := range next.Tracks {
		track := &next.Tracks[i]
		ok, err := c.matchPredicate(pred, *track)
		if err != nil {
			return changed, err
		}
		if !ok {
			continue
		}
		current := track.Forced
		if kind == ActionSetDefault {
			current = track.Default
		}
		if current == value {
			continue
		}
		if kind == ActionSetDefault {
			track.Default = value
		} else {
			track.Forced = value
		}
		outcome.Actions = append(outcome.Actions, flagAction(kind, string(policy.OpConditional), track.Index, value))
		changed = true
	}
	return changed, nil
}

func (c Config) applyLanguage(target *policy.LanguageTarget, next *media.Snapshot, outcome *Outcome) (bool, error) {
	changed := false
	for i := range next.Tracks {
		track := &next.Tracks[i]
		ok, err := c.matchPredicate(&target.Tracks, *track)
		if err != nil {
			return changed, err
		}
		if !ok || language.Matches(track.Language, target.Language) {
			continue
		}
		track.Language = target.Language
		outcome.Actions = append(outcome.Actions, Action{
			Kind:      ActionSetLanguage,
			Operation: string(policy.OpConditional),
			Track:     trackRef(track.Index),
			Language:  target.Language,
		})
		changed = true
	}
	return changed, nil
}

func (c Config) evalCondition(cond *policy.Condition, view *media.Snapshot) (bool, error) {
	if cond == nil {
		return false, nil
	}
	switch {
	case len(cond.All) > 0:
		for i := range cond.All {
			ok, err := c.evalCondition(&cond.All[i], view)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case len(cond.Any) > 0:
		for i := range cond.Any {
			ok, err := c.evalCondition(&cond.Any[i], view)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case cond.Not != nil:
		ok, err := c.evalCondition(cond.Not, view)
		return !ok, err
	case cond.Exists != nil:
		count, err := c.countMatches(cond.Exists, view)
		return count > 0, err
	case cond.Count != nil:
		count, err := c.countMatches(&cond.Count.Of, view)
		if err != nil {
			return false, err
		}
		return compareCount(count, cond.Count), nil
	}
	return false, nil
}

func compareCount(count int, cond *policy.CountCondition) bool {
	switch {
	case cond.Eq != nil:
		return count == *cond.Eq
	case cond.Lt != nil:
		return count < *cond.Lt
	case cond.Lte != nil:
		return count <= *cond.Lte
	case cond.Gt != nil:
		return count > *cond.Gt
	case cond.Gte != nil:
		return count >= *cond.Gte
	}
	return false
}

func (c Config) countMatches(pred *policy.TrackPredicate, view *media.Snapshot) (int, error) {
	count := 0
	for _, track := range view.Tracks {
		ok, err := c.matchPredicate(pred, track)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

func (c Config) matchPredicate(pred *policy.TrackPredicate, track media.Track) (bool, error) {
	if pred.Type != "" && string(track.Type) != pred.Type {
		return false, nil
	}
	if pred.Language != "" && !language.Matches(track.Language, pred.Language) {
		return false, nil
	}
	if len(pred.Languages) > 0 && !track.LanguageMatchesAny(pred.Languages) {
		return false, nil
	}
	if pred.Codec != "" && !strings.EqualFold(track.Codec, pred.Codec) {
		return false, nil
	}
	if len(pred.Codecs) > 0 && !codecIn(track.Codec, pred.Codecs) {
		return false, nil
	}
	if pred.Default != nil && track.Default != *pred.Default {
		return false, nil
	}
	if pred.Forced != nil && track.Forced != *pred.Forced {
		return false, nil
	}
	if pred.Channels != nil && track.Channels != *pred.Channels {
		return false, nil
	}
	if pred.TitleContains != "" && !strings.Contains(strings.ToLower(track.Title), strings.ToLower(pred.TitleContains)) {
		return false, nil
	}
	if pred.TitleRegex != "" {
		re, err := regexp.Compile("(?i)" + pred.TitleRegex)
		if err != nil {
			return false, services.Wrap(services.ErrOperation, "", string(policy.OpConditional),
				fmt.Sprintf("title_regex %q", pred.TitleRegex), err)
		}
		if !re.MatchString(track.Title) {
			return false, nil
		}
	}
	return true, nil
}

func codecIn(codec string, list []string) bool {
	for _, candidate := range list {
		if strings.EqualFold(codec, candidate) {
			return true
		}
	}
	return false
}

func containsKind(kinds []policy.OperationKind, kind policy.OperationKind) bool {
	for _, candidate := range kinds {
		if candidate == kind {
			return true
		}
	}
	return false
}
