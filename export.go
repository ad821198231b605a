package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// Export column order, kept identical to the bot's original export format.
var exportColumns = []string{
	"Date",
	"Type",
	"Subreddit",
	"Author",
	"Title",
	"Content",
	"Keyword Matched",
	"URL",
	"Upvotes",
	"Comment Count",
	"Parent Post ID",
}

func (m Mention) row() []string {
	return []string{
		m.Date.Format(time.RFC3339),
		m.Type,
		m.Subreddit,
		m.Author,
		m.Title,
		m.Content,
		m.Keyword,
		m.URL,
		strconv.Itoa(m.Upvotes),
		strconv.Itoa(m.CommentCount),
		m.ParentPostID,
	}
}

// filterByDate keeps records within [start, end]. Records without a usable
// date are skipped. Nil bounds are open.
func filterByDate(records []Mention, start, end *time.Time) []Mention {
	if start == nil && end == nil {
		return records
	}
	filtered := make([]Mention, 0, len(records))
	for _, r := range records {
		if r.Date.IsZero() {
			continue
		}
		if start != nil && r.Date.Before(*start) {
			continue
		}
		if end != nil && r.Date.After(*end) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// filterByPreset keeps records from the last day, week or month (30 days).
// Unknown presets return the input unchanged.
func filterByPreset(records []Mention, preset string) []Mention {
	now := time.Now()
	var start time.Time
	switch preset {
	case "day":
		start = now.AddDate(0, 0, -1)
	case "week":
		start = now.AddDate(0, 0, -7)
	case "month":
		start = now.AddDate(0, 0, -30)
	default:
		return records
	}
	return filterByDate(records, &start, nil)
}

// generateCSV writes the header and one row per record, invoking onRow after
// each record for progress reporting. Returns the number of data rows.
func generateCSV(w io.Writer, records []Mention, onRow func()) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %v", err)
	}
	for _, r := range records {
		if err := cw.Write(r.row()); err != nil {
			return 0, fmt.Errorf("failed to write csv row: %v", err)
		}
		if onRow != nil {
			onRow()
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %v", err)
	}
	return len(records), nil
}

// generateXLSX writes a styled workbook: bold white header on a blue fill,
// content-sized columns capped at 50 characters, header row frozen.
func generateXLSX(path string, records []Mention, onRow func()) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Mentions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return 0, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create header style: %v", err)
	}

	widths := make([]int, len(exportColumns))
	for i, name := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return 0, err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return 0, err
		}
		widths[i] = len(name)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(exportColumns), 1)
	if err != nil {
		return 0, err
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return 0, err
	}

	for ri, r := range records {
		for ci, v := range r.row() {
			cell, err := excelize.CoordinatesToCellName(ci+1, ri+2)
			if err != nil {
				return 0, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return 0, err
			}
			if len(v) > widths[ci] {
				widths[ci] = len(v)
			}
		}
		if onRow != nil {
			onRow()
		}
	}

	for i, w := range widths {
		w += 2
		if w > 50 {
			w = 50
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return 0, err
		}
		if err := f.SetColWidth(sheet, col, col, float64(w)); err != nil {
			return 0, err
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return 0, err
	}

	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("failed to save workbook: %v", err)
	}
	return len(records), nil
}

type exportStats struct {
	TotalRows       int
	Mentions        int
	ContextComments int
	StartDate       string
	EndDate         string
}

func statsFor(records []Mention) exportStats {
	st := exportStats{TotalRows: len(records), StartDate: "N/A", EndDate: "N/A"}
	var min, max time.Time
	for _, r := range records {
		switch r.Type {
		case "post", "comment":
			st.Mentions++
		case "context_comment":
			st.ContextComments++
		}
		if r.Date.IsZero() {
			continue
		}
		if min.IsZero() || r.Date.Before(min) {
			min = r.Date
		}
		if max.IsZero() || r.Date.After(max) {
			max = r.Date
		}
	}
	if !min.IsZero() {
		st.StartDate = min.Format("Jan 02, 2006")
		st.EndDate = max.Format("Jan 02, 2006")
	}
	return st
}

func fileSizeString(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}

func parseDateArg(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
