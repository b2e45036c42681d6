package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

var httpClient = &http.Client{Timeout: 10 * time.Second}

func enqueueCmd() *cobra.Command {
	var (
		server   string
		typ      string
		name     string
		data     string
		priority string
		attempts int
		delay    time.Duration
		timeout  time.Duration
		repeat   string
	)

	var command = &cobra.Command{
		Use:   "enqueue",
		Short: "Submit a job to a running worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload map[string]any
			if data != "" {
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					return fmt.Errorf("parse --data: %w", err)
				}
			}
			body := map[string]any{
				"type": typ,
				"name": name,
				"data": payload,
				"options": map[string]any{
					"priority":   priority,
					"attempts":   attempts,
					"delay_ms":   delay.Milliseconds(),
					"timeout_ms": timeout.Milliseconds(),
					"repeat":     repeat,
				},
			}
			return call(cmd, http.MethodPost, server+"/jobs", body)
		},
	}

	command.Flags().StringVar(&server, "server", defaultServer, "Worker API address")
	command.Flags().StringVar(&typ, "type", "custom", "Job type")
	command.Flags().StringVar(&name, "name", "", "Processor name")
	command.Flags().StringVar(&data, "data", "", "JSON object passed to the processor")
	command.Flags().StringVar(&priority, "priority", "normal", "low, normal, high or critical")
	command.Flags().IntVar(&attempts, "attempts", 0, "Max attempts (default 3)")
	command.Flags().DurationVar(&delay, "delay", 0, "Delay before the first run")
	command.Flags().DurationVar(&timeout, "timeout", 0, "Per-attempt timeout (default 30s)")
	command.Flags().StringVar(&repeat, "repeat", "", "Cron expression for repeatable jobs")
	_ = command.MarkFlagRequired("name")

	return command
}

func statsCmd() *cobra.Command {
	var server string
	var command = &cobra.Command{
		Use:   "stats [queue]",
		Short: "Print queue statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue := "default"
			if len(args) == 1 {
				queue = args[0]
			}
			return call(cmd, http.MethodGet, server+"/queues/"+queue+"/stats", nil)
		},
	}
	command.Flags().StringVar(&server, "server", defaultServer, "Worker API address")
	return command
}

func alertsCmd() *cobra.Command {
	var server string
	var command = &cobra.Command{
		Use:   "alerts",
		Short: "Print currently firing alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, http.MethodGet, server+"/alerts", nil)
		},
	}
	command.Flags().StringVar(&server, "server", defaultServer, "Worker API address")
	return command
}

// call sends body as JSON and pretty-prints the response to the command output.
func call(cmd *cobra.Command, method, url string, body any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(cmd.Context(), method, strings.TrimRight(url, "/"), r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		out.Reset()
		out.Write(raw)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(out.String()))

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %s", method, url, resp.Status)
	}
	return nil
}
