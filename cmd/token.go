package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundbridge/gigdispatch/api"
	"github.com/soundbridge/gigdispatch/config"
)

var (
	tokenUser  string
	tokenAdmin bool
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed API token for a user",
	RunE:  issueToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id to issue the token for")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "grant the admin claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}

func issueToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	tokens := api.NewTokenManager(cfg.Auth.Secret, tokenTTL)
	token, err := tokens.Issue(tokenUser, tokenAdmin)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Println(token)
	return nil
}
