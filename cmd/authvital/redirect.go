package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authvital/internal/http/server"
	"github.com/dropDatabas3/authvital/internal/validation"
)

func newRedirectCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redirect",
		Short: "Herramientas de redirect URIs",
	}

	check := &cobra.Command{
		Use:   "check <client_id> <redirect_uri>",
		Short: "Valida una redirect URI contra los patrones registrados del cliente",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := server.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.Services.Redirect.ValidateRedirectURI(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.Valid {
				return errors.New("redirect_uri rejected")
			}
			return nil
		},
	}

	lint := &cobra.Command{
		Use:   "lint <pattern>...",
		Short: "Valida patrones antes de registrarlos en una aplicación",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, p := range args {
				if err := validation.ValidatePatternForRegistration(p); err != nil {
					errs = append(errs, err)
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", p, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", p)
			}
			return errors.Join(errs...)
		},
	}

	cmd.AddCommand(check, lint)
	return cmd
}
