package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	jwtx "github.com/dropDatabas3/authvital/internal/jwt"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Gestión de claves de firma",
	}

	var asJSON bool
	gen := &cobra.Command{
		Use:   "generate",
		Short: "Genera una clave Ed25519 para jwt.signing_key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sk, err := jwtx.GenerateSigningKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(map[string]any{
					"kid":         sk.KID,
					"signing_key": sk.EncodeSeed(),
					"jwk":         sk.JWK(),
				})
			}
			fmt.Fprintf(out, "kid: %s\nsigning_key: %s\n", sk.KID, sk.EncodeSeed())
			return nil
		},
	}
	gen.Flags().BoolVar(&asJSON, "json", false, "salida JSON con la JWK pública")
	cmd.AddCommand(gen)
	return cmd
}
