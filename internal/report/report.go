// Package report renders the coach's spreadsheet export.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"mealcheck/internal/meal"
	"mealcheck/internal/metrics"
)

const (
	DetailSheet  = "Báo cáo"
	SummarySheet = "Tổng hợp"

	linkText   = "Xem ảnh"
	noImage    = "Không có ảnh"
	lateYes    = "Có"
	lateNo     = "Không"
	markDone   = "✔"
	markMissed = "✘"
)

var (
	detailHeader  = []interface{}{"Tên", "Email", "Ngày", "Bữa", "Trễ", "Ảnh"}
	summaryHeader = []interface{}{"Tên", "Email", "Trưa", "Tối", "Trạng thái"}
)

// Resolver returns the image URL for a record, or ok=false when none can be
// produced. meal.Service.ImageURL satisfies it.
type Resolver func(meal.Submission) (url string, ok bool)

// Row is one detail line.
type Row struct {
	Name  string
	Email string
	Date  string
	Meal  string
	Late  string
	URL   string
}

// Rows maps every record to a row, in record order. Records for athletes
// missing from the roster keep their row with the athlete id as name.
func Rows(roster []meal.Athlete, records []meal.Submission, resolve Resolver) []Row {
	byID := make(map[string]meal.Athlete, len(roster))
	for _, a := range roster {
		byID[a.ID] = a
	}
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		a, ok := byID[r.AthleteID]
		if !ok {
			a = meal.Athlete{ID: r.AthleteID, FullName: r.AthleteID}
		}
		row := Row{
			Name:  a.FullName,
			Email: a.Email,
			Date:  r.Date,
			Meal:  r.Meal.Label(),
			Late:  lateNo,
		}
		if r.Late {
			row.Late = lateYes
		}
		if resolve != nil {
			if u, ok := resolve(r); ok {
				row.URL = u
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Options selects optional sheets.
type Options struct {
	Summary bool
}

// Build creates the workbook. The caller closes it.
func Build(roster []meal.Athlete, records []meal.Submission, resolve Resolver, opts Options) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), DetailSheet); err != nil {
		f.Close()
		return nil, err
	}
	rows := Rows(roster, records, resolve)
	if err := writeDetail(f, rows); err != nil {
		f.Close()
		return nil, fmt.Errorf("detail sheet: %w", err)
	}
	if opts.Summary {
		if err := writeSummary(f, meal.Summarize(roster, records)); err != nil {
			f.Close()
			return nil, fmt.Errorf("summary sheet: %w", err)
		}
	}
	metrics.Exports.Inc()
	metrics.ExportRows.Observe(float64(len(rows)))
	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, roster []meal.Athlete, records []meal.Submission, resolve Resolver, opts Options) error {
	f, err := Build(roster, records, resolve, opts)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func writeDetail(f *excelize.File, rows []Row) error {
	if err := f.SetSheetRow(DetailSheet, "A1", &detailHeader); err != nil {
		return err
	}
	linkStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "1265BE", Underline: "single"}})
	if err != nil {
		return err
	}
	for i, r := range rows {
		n := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, n)
		if err := f.SetSheetRow(DetailSheet, cell, &[]interface{}{r.Name, r.Email, r.Date, r.Meal, r.Late}); err != nil {
			return err
		}
		img, _ := excelize.CoordinatesToCellName(6, n)
		if r.URL == "" {
			if err := f.SetCellValue(DetailSheet, img, noImage); err != nil {
				return err
			}
			continue
		}
		if err := f.SetCellValue(DetailSheet, img, linkText); err != nil {
			return err
		}
		if err := f.SetCellHyperLink(DetailSheet, img, r.URL, "External"); err != nil {
			return err
		}
		if err := f.SetCellStyle(DetailSheet, img, img, linkStyle); err != nil {
			return err
		}
	}
	return f.SetColWidth(DetailSheet, "A", "B", 28)
}

func writeSummary(f *excelize.File, summaries []meal.AthleteSummary) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(SummarySheet, "A1", &summaryHeader); err != nil {
		return err
	}
	for i, s := range summaries {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{s.Athlete.FullName, s.Athlete.Email, mark(s.HasLunch), mark(s.HasDinner), statusLabel(s.Completion)}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SummarySheet, "A", "B", 28)
}

func mark(done bool) string {
	if done {
		return markDone
	}
	return markMissed
}

func statusLabel(c meal.Completion) string {
	switch c {
	case meal.Full:
		return "Đủ"
	case meal.Partial:
		return "Thiếu"
	default:
		return "Chưa nộp"
	}
}
