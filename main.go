package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/schollz/progressbar/v3"
)

// The platform caps environment variables around 64KB; past that the export
// belongs on a persistent disk instead.
const envSizeLimit = 64 * 1024

type ShowCmd struct{}

type ExportCmd struct{}

type SaveCmd struct{}

type ExportFileCmd struct {
	Start  string `arg:"--start" help:"start date (YYYY-MM-DD), inclusive"`
	End    string `arg:"--end" help:"end date (YYYY-MM-DD), inclusive"`
	Preset string `arg:"--preset" help:"relative range instead of dates: day, week or month"`
	Out    string `arg:"--out" help:"output file path"`
}

type PruneCmd struct {
	Max  int `arg:"--max" default:"10000" help:"prune only once history exceeds this many records"`
	Keep int `arg:"--keep" default:"5000" help:"records to keep after pruning"`
}

type WatchCmd struct {
	Interval time.Duration `arg:"--interval" default:"2s" help:"poll interval"`
}

// Args represents command-line arguments
type Args struct {
	DataDir string `arg:"--data-dir,env:DATA_DIR" default:"data" help:"directory holding bot_data.json, the env export and the mention history"`

	Show       *ShowCmd       `arg:"subcommand:show" help:"summarize the bot's current data"`
	Export     *ExportCmd     `arg:"subcommand:export" help:"print the minified config for BOT_DATA_JSON"`
	Save       *SaveCmd       `arg:"subcommand:save" help:"rewrite bot_data.json and the env export from the active source"`
	ExportCSV  *ExportFileCmd `arg:"subcommand:export-csv" help:"export the mention history as CSV"`
	ExportXLSX *ExportFileCmd `arg:"subcommand:export-xlsx" help:"export the mention history as XLSX"`
	Prune      *PruneCmd      `arg:"subcommand:prune" help:"trim old mention history records"`
	Watch      *WatchCmd      `arg:"subcommand:watch" help:"regenerate the env export whenever bot_data.json changes"`
}

func (Args) Description() string {
	return "redditmon keeps the Reddit monitor bot's data alive across redeploys:\n" +
		"it round-trips bot_data.json through the BOT_DATA_JSON environment variable\n" +
		"and exports the recorded mention history."
}

func (Args) Version() string {
	return "redditmon 0.1.0"
}

func main() {
	var args Args
	p := arg.MustParse(&args)

	store := NewStore(args.DataDir)

	switch {
	case args.Show != nil:
		runShow(store)
	case args.Export != nil:
		runExport(store)
	case args.Save != nil:
		runSave(store)
	case args.ExportCSV != nil:
		runExportFile(store, args.ExportCSV, "csv")
	case args.ExportXLSX != nil:
		runExportFile(store, args.ExportXLSX, "xlsx")
	case args.Prune != nil:
		runPrune(store, args.Prune)
	case args.Watch != nil:
		runWatch(store, args.Watch)
	default:
		p.Fail("missing subcommand")
	}
}

func runShow(store *Store) {
	cfg, err := store.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Printf("Source: %s\n", store.Source())
	fmt.Printf("Groups: %d\n", len(cfg.Groups))
	for _, g := range cfg.Groups {
		fmt.Printf("  %s: %d keywords, %d subreddits\n", g.Name, len(g.Keywords), len(g.Subreddits))
	}
	fmt.Printf("Workspace links: %d\n", len(cfg.WorkspaceLinks))
	for _, l := range cfg.WorkspaceLinks {
		if l.Channel != "" {
			fmt.Printf("  %s (%s)\n", l.Name, l.Channel)
		} else {
			fmt.Printf("  %s\n", l.Name)
		}
	}
	if extras := cfg.ExtraKeys(); len(extras) > 0 {
		fmt.Printf("Other keys: %s\n", strings.Join(extras, ", "))
	}

	historyPath := filepath.Join(store.DataDir(), historyFileName)
	if _, err := os.Stat(historyPath); os.IsNotExist(err) {
		fmt.Println("Mention history: 0 records")
		return
	}
	h, err := OpenHistory(store.DataDir())
	if err != nil {
		log.Fatalf("Failed to open history: %v", err)
	}
	defer h.Close()
	n, err := h.Len()
	if err != nil {
		log.Fatalf("Failed to read history: %v", err)
	}
	fmt.Printf("Mention history: %d records\n", n)
}

func runExport(store *Store) {
	if _, err := store.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	text, err := store.ExportText()
	if err != nil {
		log.Fatalf("Failed to build export: %v", err)
	}
	if len(text) > envSizeLimit {
		log.Printf("Warning: export is %s, over the ~64KB environment variable limit; use a persistent disk instead", fileSizeString(int64(len(text))))
	}
	fmt.Println(text)
}

func runSave(store *Store) {
	if _, err := store.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := store.Save(); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	log.Printf("Loaded from %s", store.Source())
	log.Printf("Wrote %s", store.BackupPath())
	info, err := os.Stat(store.ExportPath())
	if err != nil {
		log.Fatalf("Failed to stat export file: %v", err)
	}
	log.Printf("Wrote %s (%s)", store.ExportPath(), fileSizeString(info.Size()))
	if info.Size() > envSizeLimit {
		log.Printf("Warning: export exceeds the ~64KB environment variable limit; use a persistent disk instead")
	}
}

func runExportFile(store *Store, cmd *ExportFileCmd, format string) {
	var start, end *time.Time
	if cmd.Start != "" {
		t, err := parseDateArg(cmd.Start)
		if err != nil {
			log.Fatalf("%v", err)
		}
		start = &t
	}
	if cmd.End != "" {
		t, err := parseDateArg(cmd.End)
		if err != nil {
			log.Fatalf("%v", err)
		}
		end = &t
	}

	h, err := OpenHistory(store.DataDir())
	if err != nil {
		log.Fatalf("Failed to open history: %v", err)
	}
	defer h.Close()

	records, err := h.All()
	if err != nil {
		log.Fatalf("Failed to read history: %v", err)
	}
	if cmd.Preset != "" {
		records = filterByPreset(records, cmd.Preset)
	} else {
		records = filterByDate(records, start, end)
	}

	out := cmd.Out
	if out == "" {
		out = "mentions_export." + format
	}

	bar := progressbar.Default(int64(len(records)), "exporting "+format)
	onRow := func() { _ = bar.Add(1) }

	var rows int
	switch format {
	case "csv":
		f, err := os.Create(out)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", out, err)
		}
		rows, err = generateCSV(f, records, onRow)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			log.Fatalf("Failed to generate export: %v", err)
		}
	case "xlsx":
		if rows, err = generateXLSX(out, records, onRow); err != nil {
			log.Fatalf("Failed to generate export: %v", err)
		}
	}
	fmt.Println()

	st := statsFor(records)
	size := "unknown size"
	if info, err := os.Stat(out); err == nil {
		size = fileSizeString(info.Size())
	}
	fmt.Printf("Wrote %d rows to %s (%s)\n", rows, out, size)
	if st.TotalRows > 0 {
		fmt.Printf("Mentions: %d, context comments: %d, %s - %s\n",
			st.Mentions, st.ContextComments, st.StartDate, st.EndDate)
	}
}

func runPrune(store *Store, cmd *PruneCmd) {
	if cmd.Keep > cmd.Max {
		log.Fatalf("--keep (%d) must not exceed --max (%d)", cmd.Keep, cmd.Max)
	}
	h, err := OpenHistory(store.DataDir())
	if err != nil {
		log.Fatalf("Failed to open history: %v", err)
	}
	defer h.Close()

	removed, err := h.Prune(cmd.Max, cmd.Keep)
	if err != nil {
		log.Fatalf("Failed to prune history: %v", err)
	}
	if removed == 0 {
		log.Printf("History below %d records, nothing pruned", cmd.Max)
		return
	}
	log.Printf("Pruned %d records, kept the newest %d", removed, cmd.Keep)
}

func runWatch(store *Store, cmd *WatchCmd) {
	if os.Getenv(envDataJSON) != "" {
		log.Fatalf("%s is set; the bot ignores %s in this deployment, refusing to watch it", envDataJSON, backupFileName)
	}

	cfg, err := store.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := store.Save(); err != nil {
		log.Fatalf("Failed to write initial export: %v", err)
	}

	notifier := NewNotifier(os.Getenv, cfg)
	if notifier.Enabled() {
		log.Println("Slack notifications enabled")
	}

	watchBackupFile(store, notifier, cmd.Interval)
}
