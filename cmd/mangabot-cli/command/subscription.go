package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyburd/mangabot/internal/api"
)

var subscriptionCmd = &cobra.Command{
	Use:     "sub",
	Aliases: []string{"subscription"},
	Short:   "Manage subscriptions on a running mangabot",
}

var remoteSearchCmd = &cobra.Command{
	Use:   "search [client] [query]",
	Short: "Search through the server so it remembers the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		httpClient, err := authedClient()
		if err != nil {
			return err
		}

		cards, err := httpClient.Search(args[0], strings.Join(args[1:], " "), page)
		if err != nil {
			return err
		}
		for _, card := range cards {
			fmt.Printf("%s\n  %s\n", card.Name, card.URL)
		}
		return nil
	},
}

var addSubCmd = &cobra.Command{
	Use:   "add [series-url] [chat-id]",
	Short: "Subscribe a chat to a series",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		caption, _ := cmd.Flags().GetString("caption")
		force, _ := cmd.Flags().GetBool("force")

		httpClient, err := authedClient()
		if err != nil {
			return err
		}
		resp, err := httpClient.Subscribe(api.SubscribeRequest{
			URL:          args[0],
			ChatID:       args[1],
			OutputFormat: format,
			Caption:      caption,
			ForceUpdate:  force,
		})
		if err != nil {
			return fmt.Errorf("subscribe failed: %w", err)
		}

		fmt.Printf("✓ Chat %s subscribed to %s (%s)\n", resp.Subscription.ChatID, resp.Name, resp.Subscription.OutputFormat)
		if resp.LastChapter != nil {
			fmt.Printf("  last chapter: %s\n", resp.LastChapter.ChapterURL)
		}
		return nil
	},
}

var rmSubCmd = &cobra.Command{
	Use:   "rm [series-url] [chat-id]",
	Short: "Remove a subscription",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := authedClient()
		if err != nil {
			return err
		}
		if err := httpClient.Unsubscribe(api.UnsubscribeRequest{URL: args[0], ChatID: args[1]}); err != nil {
			return fmt.Errorf("unsubscribe failed: %w", err)
		}
		fmt.Println("✓ Subscription removed.")
		return nil
	},
}

var listSubCmd = &cobra.Command{
	Use:   "list [chat-id]",
	Short: "List subscriptions, of one chat or all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := authedClient()
		if err != nil {
			return err
		}
		chatID := ""
		if len(args) == 1 {
			chatID = args[0]
		}

		subs, err := httpClient.Subscriptions(chatID)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			fmt.Println("No subscriptions.")
			return nil
		}
		for _, s := range subs {
			fmt.Printf("%-14s %-5s %s\n", s.ChatID, s.OutputFormat, s.URL)
		}
		return nil
	},
}

var lastChapterCmd = &cobra.Command{
	Use:   "last-chapter [series-url]",
	Short: "Point a series at its newest chapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		httpClient, err := authedClient()
		if err != nil {
			return err
		}
		lc, err := httpClient.UpdateLastChapter(api.LastChapterRequest{URL: args[0], Force: force})
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", lc.URL, lc.ChapterURL)
		return nil
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one update check on the server now",
	RunE: func(cmd *cobra.Command, args []string) error {
		httpClient, err := authedClient()
		if err != nil {
			return err
		}
		report, err := httpClient.Poll()
		if err != nil {
			return err
		}

		fmt.Printf("Run %s finished in %dms\n", report.RunID, report.DurationMS)
		fmt.Printf("  updated:     %d\n", len(report.Updated))
		fmt.Printf("  not updated: %d\n", len(report.NotUpdated))
		fmt.Printf("  deliveries:  %d\n", len(report.Deliveries))
		for u, e := range report.Failed {
			fmt.Printf("  failed: %s (%s)\n", u, e)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(subscriptionCmd, pollCmd)
	subscriptionCmd.AddCommand(remoteSearchCmd, addSubCmd, rmSubCmd, listSubCmd, lastChapterCmd)

	remoteSearchCmd.Flags().Int("page", 1, "result page")
	addSubCmd.Flags().String("format", "PDF", "PDF, CBZ or BOTH")
	addSubCmd.Flags().String("caption", "", "custom caption, /skip for none")
	addSubCmd.Flags().Bool("force", false, "overwrite an existing last chapter")
	lastChapterCmd.Flags().Bool("force", false, "overwrite an existing last chapter")
}
