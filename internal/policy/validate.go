package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"vpo/internal/services"
)

var (
	phaseNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)
	langCodePattern  = regexp.MustCompile(`^[a-z]{2,3}$`)
	bitratePattern   = regexp.MustCompile(`^[0-9]+[kKmM]?$`)
)

var validOnErrorModes = map[string]struct{}{
	OnErrorFail:     {},
	OnErrorSkip:     {},
	OnErrorContinue: {},
}

var validContainerTargets = map[string]struct{}{
	"mkv": {},
	"mp4": {},
}

var validFallbackModes = map[string]struct{}{
	"error":      {},
	"keep_all":   {},
	"keep_first": {},
}

var validAudioCodecs = map[string]struct{}{
	"aac":    {},
	"ac3":    {},
	"eac3":   {},
	"opus":   {},
	"flac":   {},
	"mp3":    {},
	"dts":    {},
	"truehd": {},
	"pcm":    {},
}

var validVideoCodecs = map[string]struct{}{
	"h264": {},
	"hevc": {},
	"vp9":  {},
	"av1":  {},
}

var validPresets = map[string]struct{}{
	"ultrafast": {},
	"superfast": {},
	"veryfast":  {},
	"faster":    {},
	"fast":      {},
	"medium":    {},
	"slow":      {},
	"slower":    {},
	"veryslow":  {},
}

var validTrackTypes = map[string]struct{}{
	"video":      {},
	"audio":      {},
	"subtitle":   {},
	"attachment": {},
}

// skippableOperations are the kinds a rule skip action may suppress.
// Only operations after conditional in the canonical order are reachable.
var skippableOperations = map[string]struct{}{
	string(OpAudioSynthesis): {},
	string(OpTranscode):      {},
	string(OpTranscription):  {},
}

var resolutionPresets = map[string][2]int{
	"480p":  {854, 480},
	"720p":  {1280, 720},
	"1080p": {1920, 1080},
	"4k":    {3840, 2160},
}

// ResolutionBounds maps a resolution preset name to its width and height.
func ResolutionBounds(preset string) (width, height int, ok bool) {
	bounds, ok := resolutionPresets[strings.ToLower(strings.TrimSpace(preset))]
	if !ok {
		return 0, 0, false
	}
	return bounds[0], bounds[1], true
}

// Violation is one failed validation check.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every violation found in a policy document.
type ValidationError struct {
	Violations []Violation
}

// Error implements error.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "policy validation failed"
	}
	parts := make([]string, len(e.Violations))
	for i, violation := range e.Violations {
		parts[i] = violation.Field + ": " + violation.Message
	}
	return fmt.Sprintf("policy validation failed (%d violations): %s", len(e.Violations), strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match the validation marker.
func (e *ValidationError) Unwrap() error {
	return services.ErrValidation
}

type validator struct {
	violations []Violation
}

func (v *validator) addf(field, format string, args ...any) {
	v.violations = append(v.violations, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks every field of the document and returns an immutable
// Model with defaults applied, or a ValidationError listing all
// violations. No partial model is ever returned.
func Validate(doc Document) (*Model, error) {
	v := &validator{}

	if doc.SchemaVersion < SchemaVersionMin || doc.SchemaVersion > SchemaVersionMax {
		v.addf("schema_version", "must be between %d and %d (got %d); migrate the document or upgrade", SchemaVersionMin, SchemaVersionMax, doc.SchemaVersion)
	}

	cfg := doc.Config
	applyConfigDefaults(&cfg)
	v.validateConfig(cfg)

	if len(doc.Phases) == 0 {
		v.addf("phases", "at least one phase is required")
	}
	phases := make([]Phase, len(doc.Phases))
	copy(phases, doc.Phases)
	v.validatePhaseNames(phases)
	for i := range phases {
		v.validatePhase(fmt.Sprintf("phases[%d]", i), &phases[i])
	}

	if len(v.violations) > 0 {
		sort.SliceStable(v.violations, func(i, j int) bool {
			return v.violations[i].Field < v.violations[j].Field
		})
		return nil, &ValidationError{Violations: v.violations}
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.CommentaryPatterns))
	for _, pattern := range cfg.CommentaryPatterns {
		patterns = append(patterns, regexp.MustCompile("(?i)"+pattern))
	}

	return &Model{
		Name:               doc.Name,
		Description:        doc.Description,
		SchemaVersion:      doc.SchemaVersion,
		Config:             cfg,
		Phases:             phases,
		commentaryPatterns: patterns,
	}, nil
}

func applyConfigDefaults(cfg *GlobalConfig) {
	if len(cfg.AudioLanguages) == 0 {
		cfg.AudioLanguages = []string{"eng", "und"}
	}
	if len(cfg.SubtitleLanguages) == 0 {
		cfg.SubtitleLanguages = []string{"eng", "und"}
	}
	if len(cfg.CommentaryPatterns) == 0 {
		cfg.CommentaryPatterns = []string{"commentary", "director", "audio description"}
	}
	cfg.OnError = strings.ToLower(strings.TrimSpace(cfg.OnError))
	if cfg.OnError == "" {
		cfg.OnError = OnErrorContinue
	}
}

func (v *validator) validateConfig(cfg GlobalConfig) {
	v.validateLanguageList("config.audio_languages", cfg.AudioLanguages)
	v.validateLanguageList("config.subtitle_languages", cfg.SubtitleLanguages)
	for i, pattern := range cfg.CommentaryPatterns {
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			v.addf(fmt.Sprintf("config.commentary_patterns[%d]", i), "invalid regular expression: %v", err)
		}
	}
	if _, ok := validOnErrorModes[cfg.OnError]; !ok {
		v.addf("config.on_error", "must be one of fail, skip, continue (got %q)", cfg.OnError)
	}
}

func (v *validator) validateLanguageList(field string, codes []string) {
	for i, code := range codes {
		if !langCodePattern.MatchString(code) {
			v.addf(fmt.Sprintf("%s[%d]", field, i), "language code must match ^[a-z]{2,3}$ (got %q)", code)
		}
	}
}

func (v *validator) validatePhaseNames(phases []Phase) {
	seen := make(map[string]int, len(phases))
	for i, phase := range phases {
		field := fmt.Sprintf("phases[%d].name", i)
		name := phase.Name
		if !phaseNamePattern.MatchString(name) {
			v.addf(field, "must match ^[A-Za-z][A-Za-z0-9_-]{0,63}$ (got %q)", name)
			continue
		}
		if _, reserved := reservedPhaseNames[strings.ToLower(name)]; reserved {
			v.addf(field, "%q is a reserved word", name)
			continue
		}
		if first, dup := seen[name]; dup {
			v.addf(field, "duplicates phases[%d].name", first)
			continue
		}
		seen[name] = i
	}
}

func (v *validator) validatePhase(field string, phase *Phase) {
	if mode := strings.ToLower(strings.TrimSpace(phase.OnError)); mode != "" {
		phase.OnError = mode
		if _, ok := validOnErrorModes[mode]; !ok {
			v.addf(field+".on_error", "must be one of fail, skip, continue (got %q)", mode)
		}
	}

	if phase.Container != nil {
		target := strings.ToLower(strings.TrimSpace(phase.Container.Target))
		phase.Container.Target = target
		if _, ok := validContainerTargets[target]; !ok {
			v.addf(field+".container.target", "must be one of mkv, mp4 (got %q)", target)
		}
	}

	v.validateKeepAudio(field+".keep_audio", phase.KeepAudio)
	v.validateKeepSubtitles(field+".keep_subtitles", phase.KeepSubtitles)
	v.validateTrackOrder(field+".track_order", phase.TrackOrder)
	v.validateRules(field+".rules", phase.Rules)
	v.validateAudioSynthesis(field+".audio_synthesis", phase.AudioSynthesis)
	v.validateTranscode(field+".transcode", phase.Transcode)
	v.validateTranscription(field+".transcription", phase.Transcription)
}

func (v *validator) validateKeepAudio(field string, op *KeepAudioOp) {
	if op == nil {
		return
	}
	if len(op.Languages) == 0 {
		v.addf(field+".languages", "at least one language is required")
	}
	v.validateLanguageList(field+".languages", op.Languages)
	if op.Minimum != nil && *op.Minimum < 1 {
		v.addf(field+".minimum", "must be >= 1 (got %d)", *op.Minimum)
	}
	if op.Fallback != nil {
		mode := strings.ToLower(strings.TrimSpace(op.Fallback.Mode))
		op.Fallback.Mode = mode
		if _, ok := validFallbackModes[mode]; !ok {
			v.addf(field+".fallback.mode", "must be one of error, keep_all, keep_first (got %q)", mode)
		}
	}
}

func (v *validator) validateKeepSubtitles(field string, op *KeepSubtitlesOp) {
	if op == nil {
		return
	}
	v.validateLanguageList(field+".languages", op.Languages)
	if !op.RemoveAll && !op.PreserveForced && len(op.Languages) == 0 {
		v.addf(field, "requires languages, preserve_forced, or remove_all")
	}
}

func (v *validator) validateTrackOrder(field string, order []string) {
	if len(order) == 0 {
		return
	}
	seen := make(map[string]int, len(order))
	for i, role := range order {
		entry := fmt.Sprintf("%s[%d]", field, i)
		if _, ok := validTrackRoles[TrackRole(role)]; !ok {
			v.addf(entry, "unknown track role %q", role)
			continue
		}
		if first, dup := seen[role]; dup {
			v.addf(entry, "duplicates %s[%d]", field, first)
			continue
		}
		seen[role] = i
	}
}

func (v *validator) validateRules(field string, op *RulesOp) {
	if op == nil {
		return
	}
	mode := strings.ToLower(strings.TrimSpace(op.Match))
	if mode != "" {
		op.Match = mode
		if mode != "first" && mode != "all" {
			v.addf(field+".match", "must be first or all (got %q)", mode)
		}
	}
	if len(op.Items) == 0 {
		v.addf(field+".items", "at least one rule is required")
	}
	seen := make(map[string]int, len(op.Items))
	for i := range op.Items {
		rule := &op.Items[i]
		entry := fmt.Sprintf("%s.items[%d]", field, i)
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			v.addf(entry+".name", "rule name is required")
		} else if first, dup := seen[name]; dup {
			v.addf(entry+".name", "duplicates %s.items[%d].name", field, first)
		} else {
			seen[name] = i
		}
		if rule.When == nil {
			v.addf(entry+".when", "condition is required")
		} else {
			v.validateCondition(entry+".when", rule.When)
		}
		if len(rule.Then) == 0 && len(rule.Else) == 0 {
			v.addf(entry, "requires a then or else action list")
		}
		for j := range rule.Then {
			v.validateRuleAction(fmt.Sprintf("%s.then[%d]", entry, j), &rule.Then[j])
		}
		for j := range rule.Else {
			v.validateRuleAction(fmt.Sprintf("%s.else[%d]", entry, j), &rule.Else[j])
		}
	}
}

func (v *validator) validateCondition(field string, cond *Condition) {
	set := 0
	if len(cond.All) > 0 {
		set++
		for i := range cond.All {
			v.validateCondition(fmt.Sprintf("%s.all[%d]", field, i), &cond.All[i])
		}
	}
	if len(cond.Any) > 0 {
		set++
		for i := range cond.Any {
			v.validateCondition(fmt.Sprintf("%s.any[%d]", field, i), &cond.Any[i])
		}
	}
	if cond.Not != nil {
		set++
		v.validateCondition(field+".not", cond.Not)
	}
	if cond.Exists != nil {
		set++
		v.validatePredicate(field+".exists", cond.Exists)
	}
	if cond.Count != nil {
		set++
		v.validateCount(field+".count", cond.Count)
	}
	if set != 1 {
		v.addf(field, "exactly one of all, any, not, exists, count must be set (got %d)", set)
	}
}

func (v *validator) validateCount(field string, count *CountCondition) {
	v.validatePredicate(field+".of", &count.Of)
	comparators := 0
	for _, value := range []*int{count.Eq, count.Lt, count.Lte, count.Gt, count.Gte} {
		if value != nil {
			comparators++
		}
	}
	if comparators != 1 {
		v.addf(field, "exactly one comparator (eq, lt, lte, gt, gte) must be set (got %d)", comparators)
	}
}

func (v *validator) validatePredicate(field string, pred *TrackPredicate) {
	if trackType := strings.ToLower(strings.TrimSpace(pred.Type)); trackType != "" {
		pred.Type = trackType
		if _, ok := validTrackTypes[trackType]; !ok {
			v.addf(field+".type", "unknown track type %q", trackType)
		}
	}
	if pred.Language != "" && !langCodePattern.MatchString(pred.Language) {
		v.addf(field+".language", "language code must match ^[a-z]{2,3}$ (got %q)", pred.Language)
	}
	v.validateLanguageList(field+".languages", pred.Languages)
	if pred.Channels != nil && *pred.Channels < 1 {
		v.addf(field+".channels", "must be >= 1 (got %d)", *pred.Channels)
	}
	if pred.TitleRegex != "" {
		if _, err := regexp.Compile("(?i)" + pred.TitleRegex); err != nil {
			v.addf(field+".title_regex", "invalid regular expression: %v", err)
		}
	}
}

func (v *validator) validateRuleAction(field string, action *RuleAction) {
	set := 0
	if action.SetForced != nil {
		set++
		v.validatePredicate(field+".set_forced.tracks", &action.SetForced.Tracks)
	}
	if action.SetDefault != nil {
		set++
		v.validatePredicate(field+".set_default.tracks", &action.SetDefault.Tracks)
	}
	if action.SetLanguage != nil {
		set++
		v.validatePredicate(field+".set_language.tracks", &action.SetLanguage.Tracks)
		if !langCodePattern.MatchString(action.SetLanguage.Language) {
			v.addf(field+".set_language.language", "language code must match ^[a-z]{2,3}$ (got %q)", action.SetLanguage.Language)
		}
	}
	if action.Warn != "" {
		set++
	}
	if action.Fail != "" {
		set++
	}
	if len(action.Skip) > 0 {
		set++
		for i, kind := range action.Skip {
			if _, ok := skippableOperations[kind]; !ok {
				v.addf(fmt.Sprintf("%s.skip[%d]", field, i), "cannot skip %q; only audio_synthesis, transcode, transcription follow rule evaluation", kind)
			}
		}
	}
	if set != 1 {
		v.addf(field, "exactly one of set_forced, set_default, set_language, warn, fail, skip must be set (got %d)", set)
	}
}

func (v *validator) validateAudioSynthesis(field string, op *AudioSynthesisOp) {
	if op == nil {
		return
	}
	if len(op.Tracks) == 0 {
		v.addf(field+".tracks", "at least one track definition is required")
	}
	for i := range op.Tracks {
		def := &op.Tracks[i]
		entry := fmt.Sprintf("%s.tracks[%d]", field, i)
		codec := strings.ToLower(strings.TrimSpace(def.Codec))
		def.Codec = codec
		if _, ok := validAudioCodecs[codec]; !ok {
			v.addf(entry+".codec", "unknown audio codec %q", codec)
		}
		if def.Channels < 1 {
			v.addf(entry+".channels", "must be >= 1 (got %d)", def.Channels)
		}
		if def.Language != "" && !langCodePattern.MatchString(def.Language) {
			v.addf(entry+".language", "language code must match ^[a-z]{2,3}$ (got %q)", def.Language)
		}
		if def.Bitrate != "" && !bitratePattern.MatchString(def.Bitrate) {
			v.addf(entry+".bitrate", "must look like 192k or 5M (got %q)", def.Bitrate)
		}
		if def.SkipIfExists != nil {
			if def.SkipIfExists.Language != "" && !langCodePattern.MatchString(def.SkipIfExists.Language) {
				v.addf(entry+".skip_if_exists.language", "language code must match ^[a-z]{2,3}$ (got %q)", def.SkipIfExists.Language)
			}
			if def.SkipIfExists.Channels < 0 {
				v.addf(entry+".skip_if_exists.channels", "must be >= 1 (got %d)", def.SkipIfExists.Channels)
			}
		}
	}
}

func (v *validator) validateTranscode(field string, op *TranscodeOp) {
	if op == nil {
		return
	}
	codec := strings.ToLower(strings.TrimSpace(op.TargetCodec))
	op.TargetCodec = codec
	if _, ok := validVideoCodecs[codec]; !ok {
		v.addf(field+".target_codec", "must be one of h264, hevc, vp9, av1 (got %q)", codec)
	}
	if op.SkipIf != nil {
		if op.SkipIf.ResolutionWithin != "" {
			if _, _, ok := ResolutionBounds(op.SkipIf.ResolutionWithin); !ok {
				v.addf(field+".skip_if.resolution_within", "must be one of 480p, 720p, 1080p, 4k (got %q)", op.SkipIf.ResolutionWithin)
			}
		}
		if op.SkipIf.BitrateUnder != "" && !bitratePattern.MatchString(op.SkipIf.BitrateUnder) {
			v.addf(field+".skip_if.bitrate_under", "must look like 2500k or 5M (got %q)", op.SkipIf.BitrateUnder)
		}
	}
	if op.Quality != nil {
		if op.Quality.CRF != nil && (*op.Quality.CRF < 0 || *op.Quality.CRF > 51) {
			v.addf(field+".quality.crf", "must be between 0 and 51 (got %d)", *op.Quality.CRF)
		}
		if op.Quality.Bitrate != "" && !bitratePattern.MatchString(op.Quality.Bitrate) {
			v.addf(field+".quality.bitrate", "must look like 2500k or 5M (got %q)", op.Quality.Bitrate)
		}
		if op.Quality.Preset != "" {
			preset := strings.ToLower(strings.TrimSpace(op.Quality.Preset))
			op.Quality.Preset = preset
			if _, ok := validPresets[preset]; !ok {
				v.addf(field+".quality.preset", "unknown preset %q", preset)
			}
		}
		if op.Quality.CRF == nil && op.Quality.Bitrate == "" {
			v.addf(field+".quality", "requires crf or bitrate")
		}
	}
	if op.Scaling != nil {
		hasPreset := op.Scaling.MaxResolution != ""
		hasDims := op.Scaling.MaxWidth > 0 || op.Scaling.MaxHeight > 0
		if hasPreset {
			if _, _, ok := ResolutionBounds(op.Scaling.MaxResolution); !ok {
				v.addf(field+".scaling.max_resolution", "must be one of 480p, 720p, 1080p, 4k (got %q)", op.Scaling.MaxResolution)
			}
		}
		if hasPreset && hasDims {
			v.addf(field+".scaling", "max_resolution and max_width/max_height are mutually exclusive")
		}
		if !hasPreset && !hasDims {
			v.addf(field+".scaling", "requires max_resolution or max_width/max_height")
		}
		if op.Scaling.MaxWidth < 0 || op.Scaling.MaxHeight < 0 {
			v.addf(field+".scaling", "dimensions must be positive")
		}
	}
}

func (v *validator) validateTranscription(field string, op *TranscriptionOp) {
	if op == nil {
		return
	}
	if op.ConfidenceThreshold != nil && (*op.ConfidenceThreshold < 0 || *op.ConfidenceThreshold > 1) {
		v.addf(field+".confidence_threshold", "must be between 0 and 1 (got %v)", *op.ConfidenceThreshold)
	}
	if op.ReorderCommentary && !op.DetectCommentary {
		v.addf(field+".reorder_commentary", "requires detect_commentary to be enabled")
	}
}
