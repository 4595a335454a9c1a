package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/oraclegate/internal/auth"
)

func init() {
	rootCmd.AddCommand(signCmd)
}

// signCmd computes the signature header for a request body read from stdin,
// for testing the gateway with curl.
var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Compute the X-Signature header for a request body on stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.SharedSecret == "" {
			return fmt.Errorf("auth.shared_secret is not configured")
		}

		body, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		fmt.Fprintln(os.Stdout, auth.Sign([]byte(cfg.Auth.SharedSecret), body))
		return nil
	},
}
