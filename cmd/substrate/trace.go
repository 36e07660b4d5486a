package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atomize-hq/substrate/internal/plan"
	"github.com/atomize-hq/substrate/internal/trace"
)

// traceCmd exposes the two read paths trace.Span supports: looking up one
// span by id, and replaying its replay_context. Both operate directly on the
// JSONL log — this subcommand is a thin CLI surface over
// trace.LoadSpanFromFile, not a new capability.
func traceCmd() *cobra.Command {
	var pathFlag string

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect the command trace log",
	}
	cmd.PersistentFlags().StringVar(&pathFlag, "path", "", "trace log path (default: resolved SHIM_TRACE_LOG / ~/.substrate/trace.jsonl)")

	lookup := &cobra.Command{
		Use:   "lookup <span_id>",
		Short: "Print the JSON record for a span id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveTracePath(pathFlag)
			span, err := trace.LoadSpanFromFile(path, args[0])
			if err != nil {
				return err
			}
			return printSpan(span)
		},
	}

	replay := &cobra.Command{
		Use:   "replay <span_id>",
		Short: "Print the replay context recorded for a span id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveTracePath(pathFlag)
			span, err := trace.LoadSpanFromFile(path, args[0])
			if err != nil {
				return err
			}
			if span.ReplayContext == nil {
				return fmt.Errorf("span %s has no replay context (not yet completed)", args[0])
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(span.ReplayContext)
		},
	}

	cmd.AddCommand(lookup, replay)
	return cmd
}

func resolveTracePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv("SHIM_TRACE_LOG"); v != "" {
		return v
	}
	p, err := plan.Build(plan.CLIFlags{}, plan.Inputs{Env: os.Getenv, Cwd: ".", StdinTTY: true})
	if err == nil {
		return p.TraceLogPath
	}
	home, _ := os.UserHomeDir()
	return home + "/.substrate/trace.jsonl"
}

func printSpan(span *trace.Span) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(span)
}
