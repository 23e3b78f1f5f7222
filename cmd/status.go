package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/mandelsimd/internal/server"
	"github.com/cwbudde/mandelsimd/internal/store"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query a running server for bench jobs",
	Long: `Queries the server for bench job information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows the results of that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(cmd.OutOrStdout(), serverURL+"/api/v1/bench")
	}
	return getJobStatus(cmd.OutOrStdout(), serverURL+"/api/v1/bench/"+args[0], args[0])
}

// getJSON fetches url and decodes the body into v.
func getJSON(url string, v any) (int, error) {
	resp, err := httpClient.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(out io.Writer, url string) error {
	var jobs []server.BenchJob
	if _, err := getJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(out, "Job ID: %s\n", job.ID)
		fmt.Fprintf(out, "  State: %s\n", job.State)
		fmt.Fprintf(out, "  Raster: %dx%d, %d frames\n", job.Config.Width, job.Config.Height, job.Config.Frames)
		fmt.Fprintf(out, "  Progress: %d/%d frames\n", job.FramesDone, job.TotalFrames())
		if job.Error != "" {
			fmt.Fprintf(out, "  Error: %s\n", job.Error)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func getJobStatus(out io.Writer, url, jobID string) error {
	// A live job and a stored report share the ID and the result fields
	var job struct {
		server.BenchJob
		Timestamp time.Time `json:"timestamp"`
	}
	status, err := getJSON(url, &job)
	if status == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Job: %s\n", job.ID)
	if job.State != "" {
		fmt.Fprintf(out, "State: %s (%d/%d frames)\n", job.State, job.FramesDone, job.TotalFrames())
	} else {
		fmt.Fprintf(out, "Saved report from %s\n", job.Timestamp.Format(time.RFC3339))
	}
	fmt.Fprintf(out, "Raster: %dx%d, %d workers\n\n", job.Config.Width, job.Config.Height, job.Config.Workers)

	if len(job.Results) > 0 {
		printResults(out, &store.Report{Results: job.Results})
	}
	if job.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", job.Error)
	}
	return nil
}
