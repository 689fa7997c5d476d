package photohistory

import "strings"

// Reason explains why a photo does not match the historic outdoor policy.
type Reason int

const (
	ReasonNotAnalyzed    Reason = iota // analysis never completed
	ReasonNoLocation                   // no location metadata; decided before analysis
	ReasonContainsPeople               // people with a recognizable face, or people not allowed
	ReasonNotOutdoors                  // no confident "outdoor" label
	ReasonIsDocument                   // confident "document" label
)

func (r Reason) String() string {
	switch r {
	case ReasonNotAnalyzed:
		return "notAnalyzed"
	case ReasonNoLocation:
		return "noLocation"
	case ReasonContainsPeople:
		return "containsPeople"
	case ReasonNotOutdoors:
		return "notOutdoors"
	case ReasonIsDocument:
		return "isDocument"
	default:
		return "unknown"
	}
}

// MarshalText renders the reason by name for JSON and YAML output.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Verdict is the outcome of evaluating an item against a Policy.
// A verdict with no reasons is a match. Verdicts are never stored;
// recompute them from the item's current state.
type Verdict struct {
	Reasons []Reason // ordered, no duplicates; empty means match
}

// Matches reports whether the item qualifies.
func (v Verdict) Matches() bool {
	return len(v.Reasons) == 0
}

// Has reports whether r is among the verdict's reasons.
func (v Verdict) Has(r Reason) bool {
	for _, got := range v.Reasons {
		if got == r {
			return true
		}
	}
	return false
}

// Explain renders the verdict for humans: "matches" or
// "does not match: notOutdoors, isDocument".
func (v Verdict) Explain() string {
	if v.Matches() {
		return "matches"
	}
	names := make([]string, len(v.Reasons))
	for i, r := range v.Reasons {
		names[i] = r.String()
	}
	return "does not match: " + strings.Join(names, ", ")
}

func (v Verdict) String() string { return v.Explain() }

// Policy configures the historic outdoor photo evaluation.
type Policy struct {
	// AllowUnrecognizablePeople tolerates a "people" label as long as no
	// face was detected.
	AllowUnrecognizablePeople bool
}

// Prescreen reports whether an item can be decided without classifier work.
// Items without a location never match, so the pipeline stores an empty
// analysis for them instead of fetching and classifying.
func Prescreen(it *Item) (Reason, bool) {
	if !it.HasLocation() {
		return ReasonNoLocation, true
	}
	return 0, false
}

// Evaluate decides whether the item matches. It is a pure function of the
// item's location flag, its current analysis, and p.
//
// Checks run in a fixed order so reasons are stable:
//  1. analysis absent → NotAnalyzed, nothing else is checked
//  2. "people" present and (people not allowed or a face was detected) → ContainsPeople
//  3. "outdoor" absent → NotOutdoors
//  4. "document" present → IsDocument
//
// A location-less item carries an empty analysis, so it evaluates to
// NotOutdoors rather than NotAnalyzed.
func (p Policy) Evaluate(it *Item) Verdict {
	analysis, ok := it.Analysis()
	if !ok {
		return Verdict{Reasons: []Reason{ReasonNotAnalyzed}}
	}

	var reasons []Reason

	if analysis.HasLabel(LabelPeople) && (!p.AllowUnrecognizablePeople || analysis.FaceCount > 0) {
		reasons = append(reasons, ReasonContainsPeople)
	}
	if !analysis.HasLabel(LabelOutdoor) {
		reasons = append(reasons, ReasonNotOutdoors)
	}
	if analysis.HasLabel(LabelDocument) {
		reasons = append(reasons, ReasonIsDocument)
	}

	return Verdict{Reasons: reasons}
}

// Evaluate is shorthand for p.Evaluate(it).
func Evaluate(it *Item, p Policy) Verdict {
	return p.Evaluate(it)
}
