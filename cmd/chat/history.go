package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cheongchun/chatcore/internal/persistence"
)

func historyCmd() *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List summarized conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := persistence.New(cfg.API.BaseURL, identityProvider(cmd), cfg.API.Timeout)
			convs, err := client.ListConversations(cmd.Context(), page, size)
			if err != nil {
				return fmt.Errorf("list conversations: %w", err)
			}

			if len(convs) == 0 {
				fmt.Println(systemStyle.Render("저장된 대화가 없습니다."))
				return nil
			}
			for _, c := range convs {
				fmt.Println(renderConversation(c))
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 0, "Page number (0-based)")
	cmd.Flags().IntVarP(&size, "size", "n", 10, "Conversations per page")
	return cmd
}
