package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/okian/xptrack/internal/domain/formula"
)

var validate = validator.New()

// FormulaDependencies supplies the milestone granularity used by the service.
type FormulaDependencies interface {
	MilestoneGranularity() int64
}

// FormulaHandler exposes the progression formulas.
type FormulaHandler struct {
	deps FormulaDependencies
}

// NewFormulaHandler creates a new formula handler.
func NewFormulaHandler(deps FormulaDependencies) *FormulaHandler {
	return &FormulaHandler{deps: deps}
}

type formulaQuery struct {
	Level      int64 `validate:"gte=1,lte=100000"`
	Experience int64 `validate:"gte=0"`
}

type formulaResponse struct {
	Level                    int64   `json:"level"`
	Experience               int64   `json:"experience"`
	ExperienceForLevel       int64   `json:"experienceForLevel"`
	ExperienceForNextLevel   int64   `json:"experienceForNextLevel"`
	ExperienceUntilNextLevel int64   `json:"experienceUntilNextLevel"`
	ProgressWithinLevel      int64   `json:"progressWithinLevel"`
	LevelForExperience       float64 `json:"levelForExperience"`
	StepSize                 int64   `json:"stepSize"`
	BaseValue                int64   `json:"baseValue"`
	NextBaseBreakpointLevel  int64   `json:"nextBaseBreakpointLevel"`
	NextMilestoneLevel       int64   `json:"nextMilestoneLevel"`
}

// HandleFormula handles GET /formula?level=L&experience=X requests.
// Experience defaults to the start of the level.
func (h *FormulaHandler) HandleFormula(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_formula"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	q, err := parseFormulaQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	stats := formula.Stats(q.Level, q.Experience)
	writeJSON(w, http.StatusOK, formulaResponse{
		Level:                    q.Level,
		Experience:               q.Experience,
		ExperienceForLevel:       int64(math.Round(formula.ExperienceForLevel(q.Level))),
		ExperienceForNextLevel:   int64(math.Round(formula.ExperienceForLevel(q.Level + 1))),
		ExperienceUntilNextLevel: stats.ExperienceUntilNextLevel,
		ProgressWithinLevel:      stats.ProgressWithinLevel,
		LevelForExperience:       formula.LevelForExperience(float64(q.Experience)),
		StepSize:                 formula.StepSize(q.Level),
		BaseValue:                formula.BaseValue(q.Level),
		NextBaseBreakpointLevel:  formula.NextBaseBreakpointLevel(q.Level),
		NextMilestoneLevel:       formula.NextMilestoneLevel(q.Level, h.deps.MilestoneGranularity()),
	})
}

func parseFormulaQuery(r *http.Request) (formulaQuery, error) {
	var q formulaQuery
	raw := r.URL.Query()

	level, err := strconv.ParseInt(raw.Get("level"), 10, 64)
	if err != nil {
		return q, fmt.Errorf("level must be an integer")
	}
	q.Level = level
	q.Experience = int64(math.Round(formula.ExperienceForLevel(level)))
	if s := raw.Get("experience"); s != "" {
		xp, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return q, fmt.Errorf("experience must be an integer")
		}
		q.Experience = xp
	}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}
