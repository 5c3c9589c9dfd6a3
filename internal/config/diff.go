package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: phrase lists,
// prompt texts, and the log level. Provider and storage changes require a
// restart and are deliberately ignored here.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// IntentChanged is true if any intent phrase list or the context window
	// changed.
	IntentChanged bool

	// CaptureTuningChanged is true if the yes/no token lists, skip keywords,
	// or fuzzy threshold changed. The cooldown is excluded: changing it
	// mid-flight would retroactively reinterpret completedAt timestamps.
	CaptureTuningChanged bool

	// PromptsChanged is true if any user-visible prompt text changed.
	PromptsChanged bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.IntentChanged || d.CaptureTuningChanged || d.PromptsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !slices.Equal(old.Intent.StrongPhrases, new.Intent.StrongPhrases) ||
		!slices.Equal(old.Intent.Affirmations, new.Intent.Affirmations) ||
		!slices.Equal(old.Intent.ContextKeywords, new.Intent.ContextKeywords) ||
		old.Intent.ContextWindow != new.Intent.ContextWindow {
		d.IntentChanged = true
	}

	if !slices.Equal(old.Capture.Affirmations, new.Capture.Affirmations) ||
		!slices.Equal(old.Capture.Negatives, new.Capture.Negatives) ||
		!slices.Equal(old.Capture.SkipKeywords, new.Capture.SkipKeywords) ||
		old.Capture.FuzzyThreshold != new.Capture.FuzzyThreshold {
		d.CaptureTuningChanged = true
	}

	if old.Prompts != new.Prompts {
		d.PromptsChanged = true
	}

	return d
}
