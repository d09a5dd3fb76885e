package cli

import (
	"fmt"

	"letterbox/internal/auth"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Generate an API token and the bcrypt hash to configure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, hash, err := auth.GenerateToken()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Token (give to API clients):  %s\n", plaintext)
			fmt.Fprintf(out, "LETTERBOX_API_TOKEN_HASH=%s\n", hash)
			return nil
		},
	}
}
