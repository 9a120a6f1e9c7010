package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mouradhm/mongo-migrate/pkg/config"
	"github.com/mouradhm/mongo-migrate/pkg/journal"
)

var historyLimit int

// historyCmd lists journaled runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs recorded in the journal",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.JournalPath == "" {
		return errors.New("no journal configured (set --journal or " + config.EnvJournal + ")")
	}

	ctx := cmd.Context()

	j, err := journal.Open(ctx, cfg.JournalPath, logger.Named("journal"))
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}

	printHistory(cmd.OutOrStdout(), runs)
	return nil
}

func printHistory(w io.Writer, runs []journal.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}

	for _, r := range runs {
		verdict := "SUCCESSFUL"
		if !r.Successful {
			verdict = "INCOMPLETE"
		}

		fmt.Fprintf(w, "%s  %s  %s -> %s  %d/%d  %s (%s)\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.SourceDB, r.TargetDB,
			r.TotalSource, r.TotalTarget, verdict, r.FinishedAt.Sub(r.StartedAt).Round(time.Second))

		for _, o := range r.Outcomes {
			line := fmt.Sprintf("  - %-20s %-14s %d/%d", o.CollectionName, o.Status, o.TargetCount, o.SourceCount)
			if o.ErrorMessage != "" {
				line += "  " + o.ErrorMessage
			}
			fmt.Fprintln(w, line)
		}
	}
}
