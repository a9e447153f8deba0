// Package formula implements the closed-form level, experience and base value
// relationships used to enrich progression history.
//
// All functions are pure. Levels are expected to be >= 1 and experience >= 0;
// outside that domain the results are numerically undefined and are not
// clamped (the single exception is LevelForExperience, see below).
package formula

import "math"

// DefaultMilestoneGranularity is the level granularity used for milestone projections.
const DefaultMilestoneGranularity = 50

// Base value band constants.
const (
	baseLevelOffset = 1000
	baseStepFactor  = 50
	baseOffset      = 450
)

// snapTolerance is the relative distance under which an inverted level is
// checked against the exact boundary of the nearest integer level.
const snapTolerance = 1e-9

// ExperienceForLevel returns the cumulative experience required to reach level.
//
//	(50/3) * (level^3 - 6*level^2 + 17*level - 12)
func ExperienceForLevel(level int64) float64 {
	// The cubic is divisible by 3 for every integer level, so this stays exact.
	n := level*level*level - 6*level*level + 17*level - 12
	return float64(50*n) / 3
}

// LevelForExperience inverts ExperienceForLevel and returns the fractional
// level reached with the given cumulative experience. Callers wanting the
// displayed level floor the result.
//
// Substituting level = t + 2 yields the depressed cubic t^3 + 5t + q = 0 with
// q = 6 - 3*experience/50, which has exactly one real root since p = 5 > 0.
// Results below 1 caused by floating error are raised to 1 for experience >= 0.
func LevelForExperience(experience float64) float64 {
	const p = 5.0
	q := 6 - 3*experience/50

	d := math.Sqrt(q*q/4 + p*p*p/27)
	t := math.Cbrt(-q/2+d) + math.Cbrt(-q/2-d)
	level := t + 2

	// One Newton step on the original cubic; its derivative has no real roots.
	f := level*level*level - 6*level*level + 17*level - 12 - 3*experience/50
	df := 3*level*level - 12*level + 17
	level -= f / df

	// Near an integer, the exact forward formula decides which side of the
	// level boundary the experience is on.
	if r := math.Round(level); r >= 1 && math.Abs(level-r) <= snapTolerance*r {
		if experience >= ExperienceForLevel(int64(r)) {
			level = r
		} else if level >= r {
			level = math.Nextafter(r, math.Inf(-1))
		}
	}
	if experience >= 0 && level < 1 {
		return 1
	}
	return level
}

// ExperienceUntilNextLevel returns the experience still needed to reach level+1.
// It equals ExperienceForLevel(level+1) - experience.
func ExperienceUntilNextLevel(level int64, experience float64) float64 {
	n := level * ((level-3)*level + 8)
	return float64(50*n)/3 - experience
}

// ProgressWithinLevel returns the percentage (0 up to, but excluding, 100) of
// the current level band already earned. Callers floor it for display.
func ProgressWithinLevel(level int64, experience float64) float64 {
	l := float64(level)
	num := l*((600-100*l)*l-1700) + 6*experience + 1200
	den := l*(3*l-9) + 12
	return num / den
}

// StepSize returns the width of the base value band containing level. It
// widens as level grows.
func StepSize(level int64) int64 {
	return int64(math.Floor((math.Sqrt(float64(2*level+2025)) + 5) / 10))
}

// BaseValue returns the band-wise linear base value metric for level.
//
//	floor((level + 1000) / step + 50*step - 450)
func BaseValue(level int64) int64 {
	step := StepSize(level)
	return floorDiv(level+baseLevelOffset, step) + baseStepFactor*step - baseOffset
}

// NextBaseBreakpointLevel returns the smallest level above level at which
// BaseValue changes.
func NextBaseBreakpointLevel(level int64) int64 {
	step := StepSize(level)
	return level + step - floorMod(level+baseLevelOffset, step)
}

// NextMilestoneLevel returns the smallest multiple of granularity strictly
// greater than level. A level that already sits on a milestone maps to the
// following one. Granularity < 1 falls back to DefaultMilestoneGranularity.
func NextMilestoneLevel(level, granularity int64) int64 {
	if granularity < 1 {
		granularity = DefaultMilestoneGranularity
	}
	return (floorDiv(level, granularity) + 1) * granularity
}

// LevelStats bundles the per-level display values for a snapshot.
type LevelStats struct {
	ProgressWithinLevel      int64 `json:"progressWithinLevel"`
	ExperienceUntilNextLevel int64 `json:"experienceUntilNextLevel"`
}

// Stats returns the floored progress percentage and the experience still
// required to level up.
func Stats(level, experience int64) LevelStats {
	xp := float64(experience)
	return LevelStats{
		ProgressWithinLevel:      int64(math.Floor(ProgressWithinLevel(level, xp))),
		ExperienceUntilNextLevel: int64(math.Round(ExperienceUntilNextLevel(level, xp))),
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
