package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ironsheep/smart-trapper/internal/workflow"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// printRunReport renders whatever stages the report covers.
func printRunReport(out io.Writer, r *workflow.Report) {
	rows := [][]string{}
	if r.Document != "" {
		rows = append(rows, []string{"Document", r.Document})
	}
	if r.JobDir != "" {
		rows = append(rows, []string{"Job folder", r.JobDir})
	}
	if r.Mode != "" {
		rows = append(rows, []string{"Mode", string(r.Mode)}, []string{"Trap width", strconv.Itoa(r.TrapWidth) + " px"})
	}
	if r.Export != nil {
		colors := make([]string, 0, len(r.Export.Job.Colors))
		for _, c := range r.Export.Job.Colors {
			colors = append(colors, c.Name)
		}
		rows = append(rows, []string{"Color plates", strings.Join(colors, ", ")})
		if len(r.Export.Skipped) > 0 {
			rows = append(rows, []string{"Plates skipped", strings.Join(r.Export.Skipped, ", ")})
		}
	}
	if r.Engine != nil {
		rows = append(rows, []string{"Engine exit", strconv.Itoa(r.Engine.ExitCode)})
	}
	if r.Import != nil {
		rows = append(rows,
			[]string{"Traps imported", fmt.Sprintf("%d of %d", r.Import.Imported, r.Import.Total)},
			[]string{"Traps skipped", strconv.Itoa(r.Import.Skipped)})
	}
	fmt.Fprintln(out, renderTable([]string{"Run", r.RunID}, rows, nil))

	if r.Import == nil || len(r.Import.Reasons) == 0 {
		return
	}
	reasons := make([][]string, 0, len(r.Import.Reasons))
	for _, reason := range r.Import.SortedReasons() {
		reasons = append(reasons, []string{string(reason), strconv.Itoa(r.Import.Reasons[reason])})
	}
	fmt.Fprintln(out, renderTable([]string{"Skip reason", "Count"}, reasons, []columnAlignment{alignLeft, alignRight}))
}
