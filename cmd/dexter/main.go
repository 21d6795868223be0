// Package main provides the CLI entry point for Dexter, an agent execution
// engine: the iteration driver, its persistence trio, and the tool registry
// wired to real model backends and real tool implementations.
//
// Basic usage:
//
//	dexter run "summarize this repo"
//	dexter serve --addr :8080
//	dexter skills list
//	dexter memory search "deploy steps"
//	dexter sessions list
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dexterhq/dexter/internal/config"
	"github.com/dexterhq/dexter/internal/eventserver"
	"github.com/dexterhq/dexter/internal/skills"
	"github.com/dexterhq/dexter/pkg/models"
)

var configPath string

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dexter",
		Short:        "Dexter - an LLM agent execution engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "dexter.yaml", "Path to YAML configuration file")
	root.AddCommand(
		buildRunCmd(),
		buildServeCmd(),
		buildSkillsCmd(),
		buildMemoryCmd(),
		buildSessionsCmd(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	return cfg, nil
}

func buildRunCmd() *cobra.Command {
	var sessionKey string
	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Drive one query through the agent to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			built, err := buildRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if built.browserPool != nil {
				defer built.browserPool.Close()
			}

			out := cmd.OutOrStdout()
			events, errs := built.runtime.Process(cmd.Context(), args[0], sessionKey)
			for event := range events {
				printEvent(out, event)
			}
			return <-errs
		},
	}
	cmd.Flags().StringVar(&sessionKey, "session-key", "", "Session key to load and append history under")
	return cmd
}

func printEvent(out io.Writer, event models.AgentEvent) {
	switch event.Type {
	case models.EventThinking:
		fmt.Fprintf(out, "... %s\n", event.Message)
	case models.EventToolStart:
		fmt.Fprintf(out, "-> %s %s\n", event.Tool, string(event.Args))
	case models.EventToolEnd:
		fmt.Fprintf(out, "<- %s (%dms)\n", event.Tool, event.DurationMS)
	case models.EventToolError:
		fmt.Fprintf(out, "!! %s: %s\n", event.Tool, event.Error)
	case models.EventToolLimit:
		fmt.Fprintf(out, "~~ %s: %s\n", event.Tool, event.Warning)
	case models.EventAnswerStart:
		fmt.Fprintln(out, "--- answer ---")
	case models.EventDone:
		fmt.Fprintln(out, event.Answer)
	}
}

func buildServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/SSE event-stream server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			built, err := buildRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if built.browserPool != nil {
				defer built.browserPool.Close()
			}

			srv := eventserver.New(built.runtime, built.logger)
			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", addr)
			return srv.Run(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address to bind the HTTP server to")
	return cmd
}

func buildSkillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Inspect the skill registry",
	}
	cmd.AddCommand(buildSkillsListCmd(), buildSkillsShowCmd())
	return cmd
}

func discoverSkills(cmd *cobra.Command) (*skills.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	mgr, err := skills.NewManager(&cfg.Skills, cfg.Workspace.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("create skill manager: %w", err)
	}
	if err := mgr.Discover(cmd.Context()); err != nil {
		return nil, fmt.Errorf("skill discovery: %w", err)
	}
	return mgr, nil
}

func buildSkillsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List eligible skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := discoverSkills(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			entries := mgr.ListEligible()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No eligible skills found.")
				return nil
			}
			for _, skill := range entries {
				fmt.Fprintf(out, "%s (%s)\n", skill.Name, skill.Source)
				if skill.Description != "" {
					fmt.Fprintf(out, "  %s\n", skill.Description)
				}
			}
			return nil
		},
	}
}

func buildSkillsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a skill's loaded content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := discoverSkills(cmd)
			if err != nil {
				return err
			}
			content, err := mgr.LoadContent(args[0])
			if err != nil {
				return fmt.Errorf("load skill %q: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), content)
			return nil
		},
	}
}

func buildMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect the memory store",
	}
	cmd.AddCommand(buildMemorySearchCmd())
	return cmd
}

func buildMemorySearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memory entries by keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := openMemoryStore(cfg)
			results, err := store.Search(args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			for _, result := range results {
				fmt.Fprintf(out, "[%.3f] %s\n", result.Score, result.Snippet)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum results")
	return cmd
}

func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect the session store",
	}
	cmd.AddCommand(buildSessionsListCmd(), buildSessionsShowCmd())
	return cmd
}

func buildSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known session keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openSessionStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			keys, err := store.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}
			for _, key := range keys {
				fmt.Fprintln(out, key)
			}
			return nil
		},
	}
}

func buildSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Show a session's message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openSessionStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			history, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, msg := range history {
				payload, _ := json.Marshal(msg)
				fmt.Fprintln(out, string(payload))
			}
			return nil
		},
	}
}
