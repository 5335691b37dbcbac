// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/licenseguard/services/history"
	"github.com/AleutianAI/licenseguard/services/scanner"
)

func newHistoryCmd(a *app) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded run summaries",
		Long:  "Reads the run history written by scans that set --history-dir.",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistoryList(cmd, limit)
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show (0 for all)")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run as JSON",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE:  a.runHistoryShow,
	}

	historyCmd.AddCommand(listCmd, showCmd)
	return historyCmd
}

// openHistory resolves the configured store. A missing --history-dir is a
// configuration error.
func (a *app) openHistory(cmd *cobra.Command) (*session, *history.Store, error) {
	s, err := a.loadSession(cmd, ".")
	if err != nil {
		return nil, nil, err
	}
	if s.cfg.HistoryDir == "" {
		s.close()
		return nil, nil, &scanner.ConfigurationError{Field: "history_dir", Err: errors.New("set --history-dir or history_dir in the config file")}
	}
	store, err := history.Open(history.Config{Path: s.cfg.HistoryDir, Logger: s.logger.Slog()})
	if err != nil {
		s.close()
		return nil, nil, err
	}
	return s, store, nil
}

func (a *app) runHistoryList(cmd *cobra.Command, limit int) error {
	if limit < 0 {
		return &scanner.ConfigurationError{Field: "--limit", Value: fmt.Sprint(limit), Err: errors.New("must not be negative")}
	}
	s, store, err := a.openHistory(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	defer store.Close()

	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if s.cfg.JSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(a.stdout, "No runs recorded.")
		return err
	}

	cell := lipgloss.NewStyle().PaddingRight(2)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		StyleFunc(func(_, _ int) lipgloss.Style { return cell }).
		Headers("RUN ID", "STARTED", "VERDICT", "FILES", "FINDINGS", "ROOT")
	for _, r := range runs {
		t.Row(r.ID, r.StartedAt.Local().Format(time.DateTime), string(r.Verdict),
			fmt.Sprint(r.TotalFilesScanned), fmt.Sprint(r.TotalFindings), r.Root)
	}
	_, err = fmt.Fprintln(a.stdout, t.Render())
	return err
}

func (a *app) runHistoryShow(cmd *cobra.Command, args []string) error {
	s, store, err := a.openHistory(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	defer store.Close()

	rec, err := store.Get(cmd.Context(), args[0])
	if errors.Is(err, history.ErrNotFound) {
		return &scanner.ConfigurationError{Field: "run id", Value: args[0], Err: err}
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
