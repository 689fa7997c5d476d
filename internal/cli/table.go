package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	photohistory "github.com/anatolykoptev/go-photohistory"
)

// reportColumn is one column of the scan table.
type reportColumn struct {
	header string
	align  text.Align
	wrap   int // soft-wrap cells at this width; 0 leaves them whole
	cell   func(ReportPhoto) string
}

var reportColumns = []reportColumn{
	{header: "Photo", align: text.AlignLeft, wrap: 40, cell: func(ph ReportPhoto) string { return ph.ID }},
	{header: "Location", align: text.AlignRight, cell: locationCell},
	{header: "Taken", align: text.AlignLeft, cell: takenCell},
	{header: "Labels", align: text.AlignLeft, wrap: 28, cell: labelsCell},
	{header: "Faces", align: text.AlignRight, cell: facesCell},
	{header: "Verdict", align: text.AlignLeft, wrap: 48, cell: func(ph ReportPhoto) string {
		return photohistory.Verdict{Reasons: ph.Reasons}.Explain()
	}},
}

func locationCell(ph ReportPhoto) string {
	if ph.Latitude == nil || ph.Longitude == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f, %.4f", *ph.Latitude, *ph.Longitude)
}

func takenCell(ph ReportPhoto) string {
	if ph.TakenAt == nil {
		return "-"
	}
	return ph.TakenAt.Format(time.DateOnly)
}

func labelsCell(ph ReportPhoto) string {
	if !ph.Analyzed || len(ph.Labels) == 0 {
		return "-"
	}
	names := make([]string, len(ph.Labels))
	for i, l := range ph.Labels {
		names[i] = l.Name
	}
	return strings.Join(names, ", ")
}

func facesCell(ph ReportPhoto) string {
	if !ph.Analyzed {
		return "-"
	}
	return strconv.Itoa(ph.Faces)
}

// renderReportTable lays the report's photos out one per row. Headers keep
// their case and long cells wrap on word boundaries.
func renderReportTable(r Report) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(reportColumns))
	configs := make([]table.ColumnConfig, len(reportColumns))
	for i, col := range reportColumns {
		header[i] = col.header
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       col.align,
			AlignHeader: text.AlignLeft,
		}
		if col.wrap > 0 {
			configs[i].WidthMax = col.wrap
			configs[i].WidthMaxEnforcer = text.WrapSoft
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, ph := range r.Photos {
		row := make(table.Row, len(reportColumns))
		for i, col := range reportColumns {
			row[i] = col.cell(ph)
		}
		tw.AppendRow(row)
	}

	return tw.Render()
}
