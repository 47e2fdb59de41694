package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
	"github.com/Sumatoshi-tech/codepulse/internal/server"
)

const statusRequestTimeout = 10 * time.Second

// NewStatusCommand creates the status command, which queries a running
// server's /api/status endpoint and renders the snapshot.
func NewStatusCommand() *cobra.Command {
	var (
		serverURL string
		output    string
	)

	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Query a running server's status",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			payload, err := fetchStatus(cobraCmd.Context(), serverURL)
			if err != nil {
				return err
			}

			switch output {
			case "yaml":
				return renderYAML(payload)
			case "json":
				return renderJSON(payload)
			default:
				renderTable(payload)

				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "http://localhost:8000", "Server base URL")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json, yaml")

	return cmd
}

func fetchStatus(ctx context.Context, baseURL string) (*server.StatusPayload, error) {
	client := &http.Client{Timeout: statusRequestTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/status", nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	var payload server.StatusPayload

	err = json.NewDecoder(resp.Body).Decode(&payload)
	if err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	return &payload, nil
}

func renderJSON(payload *server.StatusPayload) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(payload)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	return nil
}

func renderYAML(payload *server.StatusPayload) error {
	data, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	_, err = os.Stdout.Write(data)
	if err != nil {
		return fmt.Errorf("write status: %w", err)
	}

	return nil
}

func renderTable(payload *server.StatusPayload) {
	headline := color.New(color.FgGreen)
	if !payload.Pool.Initialized {
		headline = color.New(color.FgYellow)
	}

	headline.Fprintf(os.Stdout, "codepulse %s  status: %s  uptime: %s\n\n",
		payload.Version, payload.Status, (time.Duration(payload.UptimeSeconds) * time.Second).String())

	workersTable(payload)
	cacheTable(payload)

	fmt.Fprintf(os.Stdout, "\nMemory: alloc %s  sys %s  heap in use %s  goroutines %d  GC cycles %d\n",
		humanize.Bytes(payload.Memory.AllocBytes),
		humanize.Bytes(payload.Memory.SysBytes),
		humanize.Bytes(payload.Memory.HeapInuseBytes),
		payload.Memory.Goroutines,
		payload.Memory.NumGC)
}

func workersTable(payload *server.StatusPayload) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Worker", "Kind", "Status", "Runs", "Avg Time", "Last Run"})

	kinds := make([]string, 0, len(payload.Pool.Workers))
	for kind := range payload.Pool.Workers {
		kinds = append(kinds, string(kind))
	}

	sort.Strings(kinds)

	for _, kind := range kinds {
		snap := payload.Pool.Workers[analysis.Kind(kind)]

		lastRun := "-"
		if !snap.LastRunAt.IsZero() {
			lastRun = humanize.Time(snap.LastRunAt)
		}

		tbl.AppendRow(table.Row{
			snap.Name, kind, snap.Status, snap.Stats.TotalRuns, snap.Stats.AvgTime.String(), lastRun,
		})
	}

	tbl.AppendFooter(table.Row{"", "", "", "", "connections", payload.Pool.ActiveConnections})
	tbl.Render()
}

func cacheTable(payload *server.StatusPayload) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Cache", "Value"})
	tbl.AppendRow(table.Row{"entries", fmt.Sprintf("%d / %d", payload.Cache.EntryCount, payload.Cache.MaxEntries)})
	tbl.AppendRow(table.Row{"ttl", payload.Cache.TTL.String()})
	tbl.AppendRow(table.Row{"size", humanize.Bytes(uint64(payload.Cache.EstimatedBytes))})
	tbl.AppendRow(table.Row{"hits / misses", fmt.Sprintf("%d / %d", payload.Cache.Hits, payload.Cache.Misses)})
	tbl.Render()
}
