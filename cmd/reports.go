package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/mandelsimd/internal/store"
)

var (
	reportDataDir string
	keepLast      int
	olderThanDays int
	forceClean    bool
	showFrames    bool
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Manage saved bench reports",
	Long: `Manage bench reports saved by "bench --save" and by server bench jobs,
including listing, showing, comparing and cleaning old reports.`,
}

var listReportsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved reports",
	Long:  `Display all reports with ID, timestamp, raster, frames, fastest backend and size on disk.`,
	RunE:  runListReports,
}

var showReportCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Print the results of a report",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowReport,
}

var compareReportsCmd = &cobra.Command{
	Use:   "compare <baseline-id> <report-id>",
	Short: "Compare median frame times of two reports",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompareReports,
}

var cleanReportsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old reports",
	Long: `Delete old reports based on retention policy.
You can keep only the newest N reports or delete reports older than N days.`,
	RunE: runCleanReports,
}

func init() {
	rootCmd.AddCommand(reportsCmd)

	reportsCmd.AddCommand(listReportsCmd)
	reportsCmd.AddCommand(showReportCmd)
	reportsCmd.AddCommand(compareReportsCmd)
	reportsCmd.AddCommand(cleanReportsCmd)

	reportsCmd.PersistentFlags().StringVar(&reportDataDir, "data-dir", "./data", "Base directory for report storage")

	showReportCmd.Flags().BoolVar(&showFrames, "frames", false, "Also print the per-frame trace")

	cleanReportsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N reports (0 = keep all)")
	cleanReportsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete reports older than N days (0 = no age limit)")
	cleanReportsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListReports(cmd *cobra.Command, args []string) error {
	reports, err := store.NewFSStore(reportDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	infos, err := reports.ListReports()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No reports found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REPORT ID\tTIMESTAMP\tRASTER\tFRAMES\tFASTEST\tSIZE")
	fmt.Fprintln(w, "---------\t---------\t------\t------\t-------\t----")

	for _, info := range infos {
		sizeStr := "unknown"
		if size, err := getDirSize(filepath.Join(reportDataDir, "reports", info.ID)); err == nil {
			sizeStr = formatBytes(size)
		}
		fastest := info.Fastest
		if fastest == "" {
			fastest = "-"
		}

		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%d\t%s\t%s\n",
			shortID(info.ID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Width, info.Height,
			info.Frames,
			fastest,
			sizeStr,
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal reports: %d\n", len(infos))
	return nil
}

func runShowReport(cmd *cobra.Command, args []string) error {
	reports, err := store.NewFSStore(reportDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	report, err := reports.LoadReport(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Report: %s\n", report.ID)
	fmt.Fprintf(out, "Taken:  %s on %s/%s, %d CPUs\n",
		report.Timestamp.Format(time.RFC3339), report.Host.GOOS, report.Host.GOARCH, report.Host.CPUs)
	fmt.Fprintf(out, "Raster: %dx%d, %d frames, %d workers, row batch %d\n\n",
		report.Config.Width, report.Config.Height, report.Config.Frames,
		report.Config.Workers, report.Config.RowBatch)
	printResults(out, report)

	if showFrames {
		return printTrace(out, reportDataDir, report.ID)
	}
	return nil
}

// printTrace prints the frame trace recorded next to a report.
func printTrace(out io.Writer, baseDir, id string) error {
	reader, err := store.NewTraceReader(baseDir, id)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintln(out, "\nNo frame trace recorded")
		return nil
	} else if err != nil {
		return err
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nFrames (%d):\n", len(entries))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FRAME\tBACKEND\tRASTER\tELAPSED")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%dx%d\t%s\n", e.Frame, e.Backend, e.Width, e.Height, e.Elapsed)
	}
	return w.Flush()
}

func runCompareReports(cmd *cobra.Command, args []string) error {
	reports, err := store.NewFSStore(reportDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	baseline, err := reports.LoadReport(args[0])
	if err != nil {
		return err
	}
	current, err := reports.LoadReport(args[1])
	if err != nil {
		return err
	}
	if err := baseline.IsComparable(current); err != nil {
		return err
	}

	printComparison(cmd.OutOrStdout(), baseline, current)
	return nil
}

// printComparison prints median frame times of backends present in both
// reports, with the speedup of current over baseline.
func printComparison(out io.Writer, baseline, current *store.Report) {
	medians := make(map[string]time.Duration, len(baseline.Results))
	for _, res := range baseline.Results {
		if res.Error == "" && res.Frames > 0 {
			medians[res.Backend] = res.Median
		}
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tBASELINE\tCURRENT\tSPEEDUP")
	fmt.Fprintln(w, "-------\t--------\t-------\t-------")
	for _, res := range current.Results {
		base, ok := medians[res.Backend]
		if !ok || res.Error != "" || res.Median <= 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fx\n", res.Backend, base, res.Median, float64(base)/float64(res.Median))
	}
	w.Flush()
}

func runCleanReports(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	reports, err := store.NewFSStore(reportDataDir)
	if err != nil {
		return fmt.Errorf("failed to create report store: %w", err)
	}

	infos, err := reports.ListReports()
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No reports to clean.")
		return nil
	}

	toDelete := selectReportsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Fprintln(out, "No reports match deletion criteria.")
		return nil
	}

	fmt.Fprintf(out, "Found %d report(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(out, "  - %s (%dx%d, %s)\n",
			shortID(info.ID), info.Width, info.Height,
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean && !confirm(cmd.InOrStdin(), out, "\nProceed with deletion? [y/N]: ") {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	deleted, failed := 0, 0
	for _, info := range toDelete {
		if err := reports.DeleteReport(info.ID); err != nil {
			slog.Error("Failed to delete report", "report_id", info.ID, "error", err)
			failed++
		} else {
			slog.Info("Deleted report", "report_id", info.ID)
			deleted++
		}
	}

	fmt.Fprintf(out, "\nDeleted %d report(s), %d failed.\n", deleted, failed)
	return nil
}

// selectReportsForDeletion applies the retention policy: reports older
// than olderThanDays, plus all but the newest keepLast.
func selectReportsForDeletion(infos []store.ReportInfo, keepLast, olderThanDays int, now time.Time) []store.ReportInfo {
	var toDelete []store.ReportInfo
	selected := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
				selected[info.ID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := slices.Clone(infos)
		store.SortInfos(sorted)

		for _, info := range sorted[:len(sorted)-keepLast] {
			if !selected[info.ID] {
				toDelete = append(toDelete, info)
				selected[info.ID] = true
			}
		}
	}

	return toDelete
}

// confirm asks a yes/no question and defaults to no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.TrimSpace(line)
	return answer == "y" || answer == "Y"
}

// shortID truncates a report ID for display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
