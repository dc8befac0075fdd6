package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ballpark/internal/config"
	"ballpark/internal/secret"
)

func newSecretCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the warehouse password in the OS keychain",
		Long: fmt.Sprintf(`Manage the warehouse password in the OS keychain.

%s takes precedence over the keychain, which takes precedence over
warehouse.password in the config file.`, secret.EnvName(config.WarehouseSecretKey)),
	}

	store := func() secret.SecretStore {
		if g.secrets != nil {
			return g.secrets
		}
		return secret.NewKeychainStore()
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Read the warehouse password from stdin and store it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			pw := strings.TrimRight(line, "\r\n")
			if pw == "" {
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				return fmt.Errorf("empty password")
			}
			if err := store().Set(config.WarehouseSecretKey, []byte(pw)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "warehouse password stored")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored warehouse password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := store().Delete(config.WarehouseSecretKey); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "warehouse password removed")
			return nil
		},
	})
	return cmd
}
