package cli

import (
	"time"

	photohistory "github.com/anatolykoptev/go-photohistory"
)

// Report is the scan result as rendered to YAML.
type Report struct {
	Title    string        `yaml:"title"`
	RunID    string        `yaml:"run_id"`
	Total    int           `yaml:"total"`
	Analyzed int           `yaml:"analyzed"`
	Skipped  int           `yaml:"skipped"`
	Filtered bool          `yaml:"filtered"`
	Policy   ReportPolicy  `yaml:"policy"`
	Photos   []ReportPhoto `yaml:"photos"`
}

// ReportPolicy records the policy the verdicts were computed with.
type ReportPolicy struct {
	AllowUnrecognizablePeople bool `yaml:"allow_unrecognizable_people"`
}

// ReportPhoto is one view entry.
type ReportPhoto struct {
	ID        string                `yaml:"id"`
	Latitude  *float64              `yaml:"latitude,omitempty"`
	Longitude *float64              `yaml:"longitude,omitempty"`
	TakenAt   *time.Time            `yaml:"taken_at,omitempty"`
	Analyzed  bool                  `yaml:"analyzed"`
	Labels    []photohistory.Label  `yaml:"labels,omitempty"`
	Faces     int                   `yaml:"faces"`
	Matches   bool                  `yaml:"matches"`
	Reasons   []photohistory.Reason `yaml:"reasons,omitempty"`
}

func buildReport(c *photohistory.Collection) Report {
	p := c.Pipeline()
	policy := c.Policy()
	view := c.View()

	r := Report{
		Title:    c.Title(),
		RunID:    p.RunID(),
		Total:    len(c.Items()),
		Analyzed: p.Analyzed(),
		Skipped:  p.Skipped(),
		Filtered: c.IsFiltered(),
		Policy:   ReportPolicy{AllowUnrecognizablePeople: policy.AllowUnrecognizablePeople},
		Photos:   make([]ReportPhoto, 0, len(view)),
	}
	for _, it := range view {
		r.Photos = append(r.Photos, reportPhoto(it, policy))
	}
	return r
}

func reportPhoto(it *photohistory.Item, policy photohistory.Policy) ReportPhoto {
	asset := it.Asset()
	verdict := policy.Evaluate(it)

	ph := ReportPhoto{
		ID:      asset.ID,
		Matches: verdict.Matches(),
		Reasons: verdict.Reasons,
	}
	if asset.HasLocation {
		lat, long := asset.Latitude, asset.Longitude
		ph.Latitude, ph.Longitude = &lat, &long
	}
	if !asset.TakenAt.IsZero() {
		taken := asset.TakenAt
		ph.TakenAt = &taken
	}
	if a, ok := it.Analysis(); ok {
		ph.Analyzed = true
		ph.Labels = a.Labels
		ph.Faces = a.FaceCount
	}
	return ph
}
