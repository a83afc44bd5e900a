package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ledger-cli",
		Short: "Balance ledger operations tool",
		Long:  `A command line interface for the balance ledger and reconciliation API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the ledger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(anchorCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(chainCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Balance operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <point> <currency>",
		Short: "Show the current balance of a stream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(fmt.Sprintf("/api/v1/balances/%s/%s/", args[0], args[1]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List materialized balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/balances/")
		},
	})

	return cmd
}

func anchorCmd() *cobra.Command {
	var actorID, detail string

	cmd := &cobra.Command{
		Use:   "anchor",
		Short: "Initial balance anchor operations",
	}

	setCmd := &cobra.Command{
		Use:   "set <point> <currency> <amount>",
		Short: "Assign a new initial balance anchor",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/v1/anchors", map[string]any{
				"point_id":    args[0],
				"currency_id": args[1],
				"amount":      args[2],
				"actor_id":    actorID,
				"detail":      detail,
			})
		},
	}
	setCmd.Flags().StringVar(&actorID, "actor", "", "Acting user ID")
	setCmd.Flags().StringVar(&detail, "detail", "", "Reason for the new anchor")

	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <point> <currency>",
		Short: "Show the active anchor of a stream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(fmt.Sprintf("/api/v1/balances/%s/%s/anchor", args[0], args[1]))
		},
	})

	return cmd
}

func reconcileCmd() *cobra.Command {
	var mode, actorID, reason string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Ledger replay and drift resolution",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run <point> <currency>",
		Short: "Replay one stream and report drift",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/v1/reconciliation/run", map[string]any{
				"point_id":    args[0],
				"currency_id": args[1],
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Replay every stream with movements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/reconciliation/all")
		},
	})

	correctCmd := &cobra.Command{
		Use:   "correct <point> <currency>",
		Short: "Resolve reported drift with an adjustment or a re-anchor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/v1/reconciliation/corrections", map[string]any{
				"point_id":    args[0],
				"currency_id": args[1],
				"mode":        mode,
				"actor_id":    actorID,
				"reason":      reason,
			})
		},
	}
	correctCmd.Flags().StringVar(&mode, "mode", "adjust", "Correction mode: adjust or reanchor")
	correctCmd.Flags().StringVar(&actorID, "actor", "", "Acting user ID")
	correctCmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the correction")

	cmd.AddCommand(correctCmd)

	return cmd
}

func chainCmd() *cobra.Command {
	var apply bool
	var actorID string

	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Chain integrity operations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <point> <currency>",
		Short: "Check one stream's chain integrity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(fmt.Sprintf("/api/v1/balances/%s/%s/chain", args[0], args[1]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check-all",
		Short: "Check every stream's chain integrity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/chain")
		},
	})

	repairCmd := &cobra.Command{
		Use:   "repair <point> <currency>",
		Short: "Repair a stream's chain (dry run unless --apply)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON(fmt.Sprintf("/api/v1/balances/%s/%s/chain/repair?apply=%t&actor_id=%s", args[0], args[1], apply, actorID), nil)
		},
	}
	repairCmd.Flags().BoolVar(&apply, "apply", false, "Persist the repair instead of reporting it")
	repairCmd.Flags().StringVar(&actorID, "actor", "", "Acting user ID")
	cmd.AddCommand(repairCmd)

	dedupCmd := &cobra.Command{
		Use:   "dedup <point> <currency>",
		Short: "Sweep duplicate movements (dry run unless --apply)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON(fmt.Sprintf("/api/v1/balances/%s/%s/chain/dedup?apply=%t&actor_id=%s", args[0], args[1], apply, actorID), nil)
		},
	}
	dedupCmd.Flags().BoolVar(&apply, "apply", false, "Persist the sweep instead of reporting it")
	dedupCmd.Flags().StringVar(&actorID, "actor", "", "Acting user ID")
	cmd.AddCommand(dedupCmd)

	return cmd
}

func getJSON(path string) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func postJSON(path string, payload any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(baseURL+path, "application/json", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed (status %d): %s", resp.StatusCode, string(data))
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		fmt.Println(string(data))
		return nil
	}

	printJSON(parsed)
	return nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("failed to render response: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
