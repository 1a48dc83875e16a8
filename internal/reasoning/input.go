package reasoning

import (
	"encoding/json"
	"math"

	"github.com/scrypster/thinkgraph/internal/validation"
	"github.com/scrypster/thinkgraph/pkg/types"
)

// maxThoughtNumber bounds step numbers so they convert to int unchanged on
// every platform.
const maxThoughtNumber = math.MaxInt32

// stepCore holds the four mandatory fields once their JSON types are known.
type stepCore struct {
	Thought       string  `json:"thought" validate:"required"`
	ThoughtNumber float64 `json:"thoughtNumber" validate:"gt=0,lte=2147483647,integral"`
	TotalThoughts float64 `json:"totalThoughts" validate:"gt=0,lte=2147483647,integral"`
}

// decodeThought validates the mandatory fields of args and reads every
// optional field leniently: a value of the wrong type is treated as absent.
func decodeThought(args map[string]interface{}) (*types.ThoughtRecord, error) {
	thought, ok := args["thought"].(string)
	if !ok {
		return nil, validation.Invalid("thought", "must be a string")
	}
	thoughtNumber, ok := asNumber(args["thoughtNumber"])
	if !ok {
		return nil, validation.Invalid("thoughtNumber", "must be a number")
	}
	totalThoughts, ok := asNumber(args["totalThoughts"])
	if !ok {
		return nil, validation.Invalid("totalThoughts", "must be a number")
	}
	next, ok := args["nextThoughtNeeded"].(bool)
	if !ok {
		return nil, validation.Invalid("nextThoughtNeeded", "must be a boolean")
	}
	if err := validation.Struct(stepCore{
		Thought:       thought,
		ThoughtNumber: thoughtNumber,
		TotalThoughts: totalThoughts,
	}); err != nil {
		return nil, err
	}

	rec := &types.ThoughtRecord{
		Thought:           thought,
		ThoughtNumber:     int(thoughtNumber),
		TotalThoughts:     int(totalThoughts),
		NextThoughtNeeded: next,
		Confidence:        types.DefaultConfidence,
		Quality:           types.DefaultQuality,
	}

	if c, ok := asNumber(args["confidence"]); ok {
		rec.Confidence = types.ClampUnit(c)
	}
	if q, ok := args["reasoning_quality"].(string); ok {
		rec.Quality = types.ParseQualityLevel(q)
	}
	if p, ok := asNumber(args["progress"]); ok {
		p = types.ClampUnit(p)
		rec.Progress = &p
	}

	rec.MetaThought = stringArg(args, "meta_thought")
	rec.Goal = stringArg(args, "goal")
	rec.Hypothesis = stringArg(args, "hypothesis")
	rec.TestPlan = stringArg(args, "test_plan")
	rec.TestResult = stringArg(args, "test_result")
	rec.SessionID = stringArg(args, "session_id")
	rec.BranchID = stringArg(args, "branchId")

	rec.Evidence = stringsArg(args, "evidence")
	rec.BuildsOn = stringsArg(args, "builds_on")
	rec.Challenges = stringsArg(args, "challenges")

	rec.IsRevision, _ = args["isRevision"].(bool)
	rec.NeedsMoreThoughts, _ = args["needsMoreThoughts"].(bool)
	rec.RevisesThought = positiveIntArg(args, "revisesThought")
	rec.BranchFromThought = positiveIntArg(args, "branchFromThought")

	return rec, nil
}

// asNumber accepts the numeric shapes a decoded JSON document can hold.
func asNumber(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

// stringsArg keeps the string elements of an array argument.
func stringsArg(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return append([]string{}, v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// positiveIntArg reads an optional step number; anything outside
// 1..maxThoughtNumber or fractional is treated as absent.
func positiveIntArg(args map[string]interface{}, key string) int {
	f, ok := asNumber(args[key])
	if !ok || f < 1 || f > maxThoughtNumber || f != math.Trunc(f) {
		return 0
	}
	return int(f)
}
