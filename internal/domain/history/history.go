package history

import (
	"math"

	"github.com/okian/xptrack/internal/domain/formula"
	"github.com/okian/xptrack/internal/domain/model"
)

// Point is a dated snapshot plus its derived values. Deltas are relative to
// the previous point of the window and are nil on the first one.
type Point struct {
	Date                     string `json:"date"`
	Rank                     int64  `json:"rank"`
	Level                    int64  `json:"level"`
	Experience               int64  `json:"experience"`
	BaseValue                int64  `json:"baseValue"`
	ProgressWithinLevel      int64  `json:"progressWithinLevel"`
	ExperienceUntilNextLevel int64  `json:"experienceUntilNextLevel"`
	RankDelta                *int64 `json:"rankDelta"`
	LevelDelta               *int64 `json:"levelDelta"`
	ExperienceDelta          *int64 `json:"experienceDelta"`
	BaseValueDelta           *int64 `json:"baseValueDelta"`
}

// Projection estimates when a target level will be reached. A nil day
// estimate means the observed rate gives no finite answer.
type Projection struct {
	Level                int64    `json:"level"`
	LevelDelta           int64    `json:"levelDelta"`
	Experience           int64    `json:"experience"`
	ExperienceDelta      int64    `json:"experienceDelta"`
	DaysByLevelRate      *float64 `json:"daysByLevelRate"`
	DaysByExperienceRate *float64 `json:"daysByExperienceRate"`
}

// Summary aggregates a window.
type Summary struct {
	Window                      string     `json:"window"`
	Updated                     string     `json:"updated"`
	Days                        int        `json:"days"`
	RankDelta                   int64      `json:"rankDelta"`
	LevelDelta                  int64      `json:"levelDelta"`
	ExperienceDelta             int64      `json:"experienceDelta"`
	BaseValueDelta              int64      `json:"baseValueDelta"`
	LevelsPerDay                float64    `json:"levelsPerDay"`
	ExperiencePerDay            float64    `json:"experiencePerDay"`
	BaseValuePercentageIncrease *int64     `json:"baseValuePercentageIncrease"`
	NextBreakpoint              Projection `json:"nextBreakpoint"`
	NextMilestone               Projection `json:"nextMilestone"`
}

// Report is the enriched window.
type Report struct {
	History []Point `json:"history"`
	Meta    Summary `json:"meta"`
}

type options struct {
	granularity int64
}

// Option applies a configuration option to Enrich.
type Option func(*options)

// WithMilestoneGranularity sets the level granularity of the milestone projection.
func WithMilestoneGranularity(granularity int64) Option {
	return func(o *options) {
		if granularity > 0 {
			o.granularity = granularity
		}
	}
}

// reading is the subset of a point that window deltas are computed from.
type reading struct {
	rank       int64
	level      int64
	experience int64
	baseValue  int64
}

// Enrich windows series and folds it into per-point deltas and a summary.
// The series must be non-empty and strictly ascending by date; it is not
// modified.
func Enrich(series model.Series, window Window, opts ...Option) (Report, error) {
	o := options{granularity: formula.DefaultMilestoneGranularity}
	for _, opt := range opts {
		opt(&o)
	}

	if err := window.validate(); err != nil {
		return Report{}, err
	}
	if err := series.Validate(); err != nil {
		return Report{}, err
	}
	if n, ok := window.Size(); ok {
		series = series.Last(n)
	}

	points := make([]Point, 0, len(series))
	var first, prev reading
	for i, e := range series {
		cur := reading{
			rank:       e.Rank,
			level:      e.Level,
			experience: e.Experience,
			baseValue:  formula.BaseValue(e.Level),
		}
		stats := formula.Stats(e.Level, e.Experience)
		p := Point{
			Date:                     e.DateKey(),
			Rank:                     cur.rank,
			Level:                    cur.level,
			Experience:               cur.experience,
			BaseValue:                cur.baseValue,
			ProgressWithinLevel:      stats.ProgressWithinLevel,
			ExperienceUntilNextLevel: stats.ExperienceUntilNextLevel,
		}
		if i == 0 {
			first = cur
		} else {
			p.RankDelta = ptr(cur.rank - prev.rank)
			p.LevelDelta = ptr(cur.level - prev.level)
			p.ExperienceDelta = ptr(cur.experience - prev.experience)
			p.BaseValueDelta = ptr(cur.baseValue - prev.baseValue)
		}
		points = append(points, p)
		prev = cur
	}
	last := prev

	days := len(points)
	meta := Summary{
		Window:          window.String(),
		Updated:         points[days-1].Date,
		Days:            days,
		RankDelta:       last.rank - first.rank,
		LevelDelta:      last.level - first.level,
		ExperienceDelta: last.experience - first.experience,
		BaseValueDelta:  last.baseValue - first.baseValue,
	}
	meta.LevelsPerDay = float64(meta.LevelDelta) / float64(days)
	meta.ExperiencePerDay = float64(meta.ExperienceDelta) / float64(days)
	meta.BaseValuePercentageIncrease = percentageIncrease(first.baseValue, last.baseValue)
	meta.NextBreakpoint = project(formula.NextBaseBreakpointLevel(last.level), last, meta)
	meta.NextMilestone = project(formula.NextMilestoneLevel(last.level, o.granularity), last, meta)

	return Report{History: points, Meta: meta}, nil
}

// project computes the distance from last to target and the two independent
// arrival estimates.
func project(target int64, last reading, meta Summary) Projection {
	required := int64(math.Round(formula.ExperienceForLevel(target)))
	p := Projection{
		Level:           target,
		LevelDelta:      target - last.level,
		Experience:      required,
		ExperienceDelta: required - last.experience,
	}
	p.DaysByLevelRate = daysAt(float64(p.LevelDelta), meta.LevelsPerDay)
	p.DaysByExperienceRate = daysAt(float64(p.ExperienceDelta), meta.ExperiencePerDay)
	return p
}

// daysAt returns remaining/rate, or nil when the rate would never get there.
func daysAt(remaining, rate float64) *float64 {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil
	}
	d := remaining / rate
	return &d
}

// percentageIncrease rounds half up like the rendered reports expect.
func percentageIncrease(from, to int64) *int64 {
	if from == 0 {
		return nil
	}
	pct := int64(math.Floor((float64(to)/float64(from)-1)*100 + 0.5))
	return &pct
}

func ptr(v int64) *int64 { return &v }
