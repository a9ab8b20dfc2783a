package cmd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragindex/ragindex/internal/daemon"
)

func newStatusCmd() *cobra.Command {
	var stop bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show (or stop) the running query service",
		Long: `Read the run file in the data directory to find the live ragindexd
process, then ask it for its cache state. With --stop, send the process
a shutdown signal instead.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runStatus(stop)
		},
	}

	cmd.Flags().BoolVar(&stop, "stop", false, "Shut the running service down")
	return cmd
}

func runStatus(stop bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runFile := daemon.NewRunFile(cfg.Paths.DataDir)

	info, err := runFile.Live()
	if err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			out.Status("•", "ragindexd is not running")
			return nil
		}
		return err
	}

	if stop {
		if err := runFile.Shutdown(); err != nil {
			return err
		}
		out.Successf("Sent shutdown to pid %d", info.PID)
		return nil
	}

	out.Statusf("•", "ragindexd pid %d on %s (since %s)", info.PID, info.Addr, info.StartedAt)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://127.0.0.1" + normalizeAddr(info.Addr))
	if err != nil {
		out.Warningf("service did not answer: %v", err)
		return nil
	}
	defer resp.Body.Close()

	var health struct {
		Status      string   `json:"status"`
		CachedCount int      `json:"cached_count"`
		Paths       []string `json:"paths"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		out.Warningf("unexpected response: %v", err)
		return nil
	}

	out.Statusf("•", "status %s, %d indices resident", health.Status, health.CachedCount)
	for _, p := range health.Paths {
		out.Status("", p)
	}
	return nil
}

// normalizeAddr reduces a listen address to its ":port" suffix for
// dialing the local service.
func normalizeAddr(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ":" + addr
}
