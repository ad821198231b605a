package main

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := parseDateArg(s)
	require.NoError(t, err)
	return d
}

func TestFilterByDate(t *testing.T) {
	records := []Mention{
		testMention("old", day(t, "2026-07-01")),
		testMention("mid", day(t, "2026-07-15")),
		testMention("new", day(t, "2026-08-01")),
		{ItemID: "undated", Type: "post"},
	}

	t.Run("No bounds returns input", func(t *testing.T) {
		got := filterByDate(records, nil, nil)
		require.Len(t, got, 4)
	})

	t.Run("Start bound is inclusive", func(t *testing.T) {
		start := day(t, "2026-07-15")
		got := filterByDate(records, &start, nil)
		require.Len(t, got, 2)
		require.Equal(t, "mid", got[0].ItemID)
	})

	t.Run("End bound is inclusive", func(t *testing.T) {
		end := day(t, "2026-07-15")
		got := filterByDate(records, nil, &end)
		require.Len(t, got, 2)
		require.Equal(t, "mid", got[1].ItemID)
	})

	t.Run("Undated records are skipped when filtering", func(t *testing.T) {
		start := day(t, "2026-01-01")
		got := filterByDate(records, &start, nil)
		for _, m := range got {
			require.NotEqual(t, "undated", m.ItemID)
		}
	})
}

func TestFilterByPreset(t *testing.T) {
	records := []Mention{
		testMention("recent", time.Now().Add(-2*time.Hour)),
		testMention("lastweek", time.Now().AddDate(0, 0, -5)),
		testMention("ancient", time.Now().AddDate(0, 0, -90)),
	}

	t.Run("Day", func(t *testing.T) {
		got := filterByPreset(records, "day")
		require.Len(t, got, 1)
		require.Equal(t, "recent", got[0].ItemID)
	})

	t.Run("Week", func(t *testing.T) {
		got := filterByPreset(records, "week")
		require.Len(t, got, 2)
	})

	t.Run("Month", func(t *testing.T) {
		got := filterByPreset(records, "month")
		require.Len(t, got, 2)
	})

	t.Run("Unknown preset returns input unchanged", func(t *testing.T) {
		got := filterByPreset(records, "fortnight")
		require.Len(t, got, 3)
	})
}

func TestGenerateCSV(t *testing.T) {
	records := []Mention{
		testMention("a", day(t, "2026-08-01")),
		testMention("b", day(t, "2026-08-02")),
	}
	records[1].Content = "has, comma and \"quotes\""

	var buf bytes.Buffer
	calls := 0
	rows, err := generateCSV(&buf, records, func() { calls++ })
	require.NoError(t, err)
	require.Equal(t, 2, rows)
	require.Equal(t, 2, calls)

	parsed, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	require.Equal(t, exportColumns, parsed[0])
	require.Equal(t, "title a", parsed[1][4])
	require.Equal(t, "has, comma and \"quotes\"", parsed[2][5])
}

func TestGenerateXLSX(t *testing.T) {
	records := []Mention{testMention("a", day(t, "2026-08-01"))}
	out := filepath.Join(t.TempDir(), "mentions.xlsx")

	rows, err := generateXLSX(out, records, nil)
	require.NoError(t, err)
	require.Equal(t, 1, rows)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Mentions", "A1")
	require.NoError(t, err)
	require.Equal(t, "Date", header)

	subreddit, err := f.GetCellValue("Mentions", "C2")
	require.NoError(t, err)
	require.Equal(t, "golang", subreddit)

	keyword, err := f.GetCellValue("Mentions", "G2")
	require.NoError(t, err)
	require.Equal(t, "foo", keyword)
}

func TestStatsFor(t *testing.T) {
	t.Run("Counts and date span", func(t *testing.T) {
		records := []Mention{
			testMention("a", day(t, "2026-07-01")),
			testMention("b", day(t, "2026-08-02")),
		}
		records[1].Type = "comment"
		ctx := testMention("c", day(t, "2026-07-10"))
		ctx.Type = "context_comment"
		records = append(records, ctx)

		st := statsFor(records)
		require.Equal(t, 3, st.TotalRows)
		require.Equal(t, 2, st.Mentions)
		require.Equal(t, 1, st.ContextComments)
		require.Equal(t, "Jul 01, 2026", st.StartDate)
		require.Equal(t, "Aug 02, 2026", st.EndDate)
	})

	t.Run("Empty input", func(t *testing.T) {
		st := statsFor(nil)
		require.Equal(t, 0, st.TotalRows)
		require.Equal(t, "N/A", st.StartDate)
		require.Equal(t, "N/A", st.EndDate)
	})
}

func TestFileSizeString(t *testing.T) {
	require.Equal(t, "512 B", fileSizeString(512))
	require.Equal(t, "1.5 KB", fileSizeString(1536))
	require.Equal(t, "2.0 MB", fileSizeString(2*1024*1024))
}

func TestParseDateArg(t *testing.T) {
	got, err := parseDateArg("2026-08-28")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDateArg("28/08/2026")
	require.Error(t, err)
}
