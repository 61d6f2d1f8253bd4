package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"water-synth/db"
	"water-synth/models"
	"water-synth/utils"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
)

// Print per-GPU render statistics of recent pipeline runs.
func main() {
	defaultLedger := utils.GetEnv("WATER_LEDGER", filepath.Join("logs", "ledger.db"))
	ledgerFlag := flag.String("ledger", defaultLedger, "SQLite ledger path")
	runFlag := flag.String("run", "", "Only show this run")
	limitFlag := flag.Int("n", 5, "Number of recent runs to show")
	flag.Parse()

	ledger, err := db.NewSQLiteClient(*ledgerFlag)
	if err != nil {
		log.Fatalf("failed to open ledger: %v", err)
	}
	defer ledger.Close()

	ctx := context.Background()
	runs, err := ledger.RecentRuns(ctx, *limitFlag)
	if err != nil {
		log.Fatalf("failed to list runs: %v", err)
	}
	if *runFlag != "" {
		st, ok, err := ledger.RunStatus(ctx, *runFlag)
		if err != nil {
			log.Fatalf("failed to load run: %v", err)
		}
		if !ok {
			log.Fatalf("run %s not found", *runFlag)
		}
		runs = runs[:0]
		runs = append(runs, st)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return
	}

	for _, st := range runs {
		pct := 0.0
		if st.Requested > 0 {
			pct = float64(st.Rendered) / float64(st.Requested) * 100
		}
		fmt.Printf("=== run %s (started %s) ===\n", st.RunID, humanize.Time(st.StartedAt))
		fmt.Printf("rendered %d / %d samples (%.1f%%)\n", st.Rendered, st.Requested, pct)
		if len(st.GPUs) > 0 {
			fmt.Println(gpuTable(st.GPUs))
		}
		if splits, err := ledger.SplitCounts(ctx, st.RunID); err == nil && len(splits) > 0 {
			fmt.Printf("  split: train=%d val=%d test=%d\n", splits["train"], splits["val"], splits["test"])
		}
		fmt.Println()
	}
}

func gpuTable(stats []models.GPUStat) string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("GPU", "Samples", "Avg/sample", "Last sample")

	for _, g := range stats {
		gpu := fmt.Sprintf("%d", g.GPU)
		if g.GPU < 0 {
			gpu = "all"
		}
		avg := time.Duration(g.AvgElapsedMs * float64(time.Millisecond))
		table.Row(gpu, humanize.Comma(int64(g.Samples)), avg.Round(time.Millisecond).String(), models.SampleName(g.MaxSampleID))
	}
	return table.String()
}
