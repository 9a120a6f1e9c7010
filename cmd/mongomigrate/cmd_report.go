package main

import (
	"github.com/spf13/cobra"

	"github.com/mouradhm/mongo-migrate/pkg/confirm"
	"github.com/mouradhm/mongo-migrate/pkg/migrator"
)

// reportCmd compares the databases without copying anything
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the source/target document count report without migrating",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()

	store, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(ctx, store)

	m := migrator.New(&migrator.NewParams{
		Store:     store,
		Params:    cfg.Params(),
		Confirmer: confirm.Static{},
		Out:       cmd.OutOrStdout(),
		L:         logger.Named("migrator"),
	})

	if err := m.CheckSource(ctx); err != nil {
		return err
	}

	report := m.GenerateReport(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	m.PrintReport(report)
	return nil
}
