// Package export renders stored check runs to spreadsheet files for sharing
// outside the CLI.
package export

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/localpulse/rankgrid-cli/internal/model"
)

// WriteXLSX writes a check report to path as a two-sheet workbook: a summary
// sheet with the aggregate metrics and a grid sheet with one row per point.
func WriteXLSX(report *model.CheckReport, path string) error {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, report); err != nil {
		return err
	}
	if err := addGridSheet(f, report); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addSummarySheet(f *xlsx.File, report *model.CheckReport) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	m := report.Metrics
	afpr := "n/a"
	if m.AFPRDefined {
		afpr = fmt.Sprintf("%.2f", m.AFPR)
	}

	rows := [][]string{
		{"Run ID", report.ID},
		{"Keyword", report.Request.Keyword},
		{"Business", report.Request.BusinessName},
		{"Center", fmt.Sprintf("%.6f, %.6f", report.Request.CenterLat, report.Request.CenterLng)},
		{"Radius (km)", fmt.Sprintf("%.1f", report.Request.RadiusKM)},
		{"Grid", fmt.Sprintf("%dx%d %s", report.Request.GridSize, report.Request.GridSize, report.Request.Shape)},
		{"Started", report.StartedAt.Format(time.RFC3339)},
		{"Completion rate", fmt.Sprintf("%.0f%%", 100*report.CompletionRate)},
		{"Visibility score", fmt.Sprintf("%.1f", m.VisibilityScore)},
		{"AFPR", afpr},
		{"GRM", fmt.Sprintf("%.2f", m.GRM)},
		{"TSS", fmt.Sprintf("%.0f%%", m.TSS)},
	}
	for _, bucket := range []string{model.BucketTop3, model.BucketPage1, model.BucketPage2, model.BucketBeyond} {
		rows = append(rows, []string{"Ranks " + bucket, fmt.Sprintf("%d%%", m.Distribution[bucket])})
	}

	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().SetString(v)
		}
	}
	return nil
}

func addGridSheet(f *xlsx.File, report *model.CheckReport) error {
	sheet, err := f.AddSheet("Grid")
	if err != nil {
		return eris.Wrap(err, "export: add grid sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Point", "Lat", "Lng", "Rank", "Search volume", "Error"} {
		header.AddCell().SetString(h)
	}

	for _, r := range report.Results {
		row := sheet.AddRow()
		row.AddCell().SetInt(r.Point.ID)
		row.AddCell().SetFloat(r.Point.Lat)
		row.AddCell().SetFloat(r.Point.Lng)
		if r.Ranked() {
			row.AddCell().SetInt(r.Rank)
		} else if r.Resolved() {
			row.AddCell().SetString("unranked")
		} else {
			row.AddCell().SetString("-")
		}
		if r.SearchVolume > 0 {
			row.AddCell().SetInt(r.SearchVolume)
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(string(r.Error))
	}
	return nil
}
