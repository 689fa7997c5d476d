package photohistory

import "strings"

// MinimumLabelConfidence is the precision bar a label must meet to be kept.
const MinimumLabelConfidence = 0.9

// Well-known labels consulted by the match policy.
const (
	LabelPeople   = "people"
	LabelOutdoor  = "outdoor"
	LabelDocument = "document"
)

// FilterConfident keeps labels whose confidence meets MinimumLabelConfidence.
// Names are trimmed and lower-cased; when a name repeats, the highest
// confidence wins and the first position is kept. Returns nil for no labels.
func FilterConfident(labels []Label) []Label {
	var kept []Label
	index := make(map[string]int, len(labels))

	for _, l := range labels {
		name := strings.ToLower(strings.TrimSpace(l.Name))
		if name == "" || !(l.Confidence >= MinimumLabelConfidence) {
			continue
		}
		if i, ok := index[name]; ok {
			if l.Confidence > kept[i].Confidence {
				kept[i].Confidence = l.Confidence
			}
			continue
		}
		index[name] = len(kept)
		kept = append(kept, Label{Name: name, Confidence: l.Confidence})
	}

	return kept
}
