// Package main provides the 청춘 AI chat terminal client.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cheongchun/chatcore/internal/auth"
	"github.com/cheongchun/chatcore/internal/config"
)

var (
	cfg       *config.Config
	logger    *slog.Logger
	closeLogs = func() error { return nil }
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "chatcore",
		Short:         "청춘 AI chat client",
		Long:          "Talk to the 청춘 AI assistant and browse summarized conversations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			logger, closeLogs = config.SetupLogger(cfg.LogFile, config.ParseLevel(cfg.LogLevel))
			slog.SetDefault(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = closeLogs()
		},
	}

	rootCmd.PersistentFlags().String("user", "", "User id (overrides CHAT_USER_ID)")
	rootCmd.AddCommand(chatCmd(), historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// identityProvider builds the auth provider from configuration and flags.
func identityProvider(cmd *cobra.Command) auth.Provider {
	userID := cfg.User.ID
	if flag, _ := cmd.Flags().GetString("user"); flag != "" {
		userID = flag
	}
	return auth.Static{
		UserID:      userID,
		Token:       cfg.User.Token,
		DisplayName: cfg.User.Name,
	}
}
