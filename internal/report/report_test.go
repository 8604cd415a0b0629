package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"mealcheck/internal/meal"
)

var roster = []meal.Athlete{
	{ID: "a1", FullName: "Nguyễn An", Email: "an@team.vn"},
	{ID: "a2", FullName: "Trần Bình", Email: "binh@team.vn"},
}

var records = []meal.Submission{
	{ID: "1", AthleteID: "a1", Date: "2026-10-19", Meal: meal.Lunch, ImageKey: "a1/2026-10-19/lunch", ImageVersion: "3"},
	{ID: "2", AthleteID: "a1", Date: "2026-10-19", Meal: meal.Dinner, ImageKey: "a1/2026-10-19/dinner", ImageVersion: "4", Late: true},
	{ID: "3", AthleteID: "ghost", Date: "2026-10-19", Meal: meal.Lunch, ImageKey: "ghost/2026-10-19/lunch", ImageVersion: "1"},
}

func resolver(s meal.Submission) (string, bool) {
	if s.AthleteID == "ghost" {
		return "", false
	}
	return "https://cdn.example/" + s.ImageKey + "?v=" + s.ImageVersion, true
}

func open(t *testing.T, opts Options) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(&buf, roster, records, resolver, opts); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWrite_DetailRowPerRecord(t *testing.T) {
	f := open(t, Options{})
	rows, err := f.GetRows(DetailSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows)-1 != len(records) {
		t.Fatalf("got %d detail rows, want %d", len(rows)-1, len(records))
	}
	if got := strings.Join(rows[0], "|"); got != "Tên|Email|Ngày|Bữa|Trễ|Ảnh" {
		t.Fatalf("header = %s", got)
	}
	if got := strings.Join(rows[1], "|"); got != "Nguyễn An|an@team.vn|2026-10-19|Trưa|Không|Xem ảnh" {
		t.Fatalf("row 1 = %s", got)
	}
	if rows[2][3] != "Tối" || rows[2][4] != "Có" {
		t.Fatalf("row 2 = %v", rows[2])
	}
	if rows[3][0] != "ghost" || rows[3][5] != "Không có ảnh" {
		t.Fatalf("orphan row = %v", rows[3])
	}

	ok, link, err := f.GetCellHyperLink(DetailSheet, "F2")
	if err != nil || !ok || link != "https://cdn.example/a1/2026-10-19/lunch?v=3" {
		t.Fatalf("F2 link = %v %q %v", ok, link, err)
	}
	if ok, _, _ := f.GetCellHyperLink(DetailSheet, "F4"); ok {
		t.Fatalf("unresolved image must not carry a link")
	}
	if idx, _ := f.GetSheetIndex(SummarySheet); idx != -1 {
		t.Fatalf("summary sheet written without being asked for")
	}
}

func TestWrite_EmptyRecords(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, roster, nil, resolver, Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(DetailSheet)
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
}

func TestWrite_Summary(t *testing.T) {
	f := open(t, Options{Summary: true})
	rows, err := f.GetRows(SummarySheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 1+len(roster) {
		t.Fatalf("got %d summary rows", len(rows))
	}
	if got := strings.Join(rows[1], "|"); got != "Nguyễn An|an@team.vn|✔|✔|Đủ" {
		t.Fatalf("row 1 = %s", got)
	}
	if got := strings.Join(rows[2], "|"); got != "Trần Bình|binh@team.vn|✘|✘|Chưa nộp" {
		t.Fatalf("row 2 = %s", got)
	}
}

func TestFilename(t *testing.T) {
	cases := []struct{ from, to, want string }{
		{"2026-10-19", "", "report-2026-10-19.xlsx"},
		{"2026-10-19", "2026-10-19", "report-2026-10-19.xlsx"},
		{"2026-10-01", "2026-10-19", "report-2026-10-01_2026-10-19.xlsx"},
	}
	for _, tc := range cases {
		if got := Filename(tc.from, tc.to); got != tc.want {
			t.Errorf("Filename(%q, %q) = %q, want %q", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestASCIIFilename(t *testing.T) {
	if got := ASCIIFilename("Báo cáo Đội tuyển.xlsx"); got != "Bao cao Doi tuyen.xlsx" {
		t.Fatalf("got %q", got)
	}
	if got := ASCIIFilename(`a"b/c.xlsx`); got != "a_b_c.xlsx" {
		t.Fatalf("got %q", got)
	}
	cd := ContentDisposition("report-2026-10-19.xlsx")
	if !strings.HasPrefix(cd, `attachment; filename="report-2026-10-19.xlsx"`) {
		t.Fatalf("header = %s", cd)
	}
}
