// Command authvital es el servidor OAuth2/OIDC multi-tenant y sus
// herramientas de operación (migraciones, claves, redirect URIs).
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authvital/internal/config"
	"github.com/dropDatabas3/authvital/internal/http/server"
	"github.com/dropDatabas3/authvital/internal/observability/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "authvital",
		Short:         "Servidor OAuth2/OIDC multi-tenant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", os.Getenv("AUTHVITAL_CONFIG"), "archivo YAML de configuración (env AUTHVITAL_CONFIG)")

	load := func() (*config.Config, error) {
		_ = godotenv.Load() // .env es opcional
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		logger.Init(logger.Config{
			Env:         cfg.App.Env,
			Level:       cfg.Log.Level,
			ServiceName: cfg.App.Name,
			Version:     server.Version,
		})
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newKeysCmd(),
		newRedirectCmd(load),
	)
	return root
}

type loader func() (*config.Config, error)
