package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/article-engine/internal/vault"
)

var vaultKeyCmd = &cobra.Command{
	Use:   "vault-key",
	Short: "Generate a new credential vault key",
	Long: `Generates a random vault key and prints it base64-encoded. Set it as
VAULT_KEY for every process that stores or reads site credentials. Rotating
the key invalidates all previously sealed credentials.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		key, err := vault.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(vaultKeyCmd)
}
