package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

// Output formats
const (
	OutputFormatYAML = "yaml"
	OutputFormatJSON = "json"
)

// QueryResponse represents the standard query response format from HTTP API
type QueryResponse struct {
	Data json.RawMessage `json:"data"`
}

// ErrorResponse represents an error response from HTTP API
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "query",
		Aliases: []string{"q"},
		Short:   "Query the tip journal of a running daemon",
	}

	cmd.AddCommand(
		listTipsCmd(),
		getTipCmd(),
	)

	return cmd
}

func listTipsCmd() *cobra.Command {
	var (
		status       string
		eventID      string
		limit        int
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "tips",
		Short: "List recent tips, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if status != "" {
				params.Set("status", status)
			}
			if eventID != "" {
				params.Set("event_id", eventID)
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}

			path := "/api/v1/tips"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}
			data, err := queryServer(cmd, path)
			if err != nil {
				return err
			}
			return printRaw(cmd.OutOrStdout(), data, outputFormat)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only tips in this status")
	cmd.Flags().StringVar(&eventID, "event", "", "Only tips for this event")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of tips")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

func getTipCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "tip [request-id]",
		Short: "Show a tip and its status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := queryServer(cmd, "/api/v1/tips/"+url.PathEscape(args[0]))
			if err != nil {
				return err
			}
			return printRaw(cmd.OutOrStdout(), data, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", OutputFormatYAML, "Output format (yaml|json)")
	return cmd
}

// queryServer GETs path from the local query server and returns its data field
func queryServer(cmd *cobra.Command, path string) (json.RawMessage, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Get(fmt.Sprintf("http://localhost:%d%s", cfg.QueryServerPort, path))
	if err != nil {
		return nil, fmt.Errorf("failed to query tip daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("server error: %s", errResp.Error)
	}

	var queryResp QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return queryResp.Data, nil
}

// printRaw prints a JSON document in the requested format
func printRaw(out io.Writer, data json.RawMessage, format string) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return printOutput(out, v, format)
}

// printOutput prints the output in the specified format
func printOutput(out io.Writer, data interface{}, format string) error {
	switch format {
	case OutputFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(data)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
