package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authvital/internal/config"
	"github.com/dropDatabas3/authvital/internal/store/pg"
)

func newMigrateCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migraciones del esquema PostgreSQL",
	}

	dsn := func() (string, error) {
		cfg, err := load()
		if err != nil {
			return "", err
		}
		return requireDSN(cfg)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Aplica las migraciones pendientes",
			RunE: func(cmd *cobra.Command, _ []string) error {
				d, err := dsn()
				if err != nil {
					return err
				}
				if err := pg.Migrate(cmd.Context(), d); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revierte la última migración",
			RunE: func(cmd *cobra.Command, _ []string) error {
				d, err := dsn()
				if err != nil {
					return err
				}
				if err := pg.MigrateDown(cmd.Context(), d); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Lista el estado de cada migración",
			RunE: func(cmd *cobra.Command, _ []string) error {
				d, err := dsn()
				if err != nil {
					return err
				}
				st, err := pg.Status(cmd.Context(), d)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tAPPLIED\tSOURCE")
				for _, s := range st {
					fmt.Fprintf(tw, "%d\t%t\t%s\n", s.Version, s.Applied, s.Source)
				}
				return tw.Flush()
			},
		},
	)
	return cmd
}

func requireDSN(cfg *config.Config) (string, error) {
	if cfg.Storage.Driver != "postgres" || cfg.Storage.DSN == "" {
		return "", errors.New("migrate: storage.driver=postgres y storage.dsn son requeridos")
	}
	return cfg.Storage.DSN, nil
}
