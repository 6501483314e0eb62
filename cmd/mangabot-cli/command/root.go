package command

// root.go defines the root command and the global flags of mangabot-cli.

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiURL string // admin API of a running mangabot
	token  string // overrides the token stored by "auth login"
)

var rootCmd = &cobra.Command{
	Use:   "mangabot-cli",
	Short: "mangabot-cli - inspect sources and manage a running mangabot",
	Long: `mangabot-cli talks to the configured manga sources directly and to the admin
API of a running mangabot. It can:
- Search sources and list chapters or pictures
- Run an update check against the source feed
- Subscribe chats to series and trigger a poll

Source commands read the same environment / .env file as the server.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:3000", "mangabot API URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("MANGABOT_TOKEN"), "access token, defaults to the stored login")
}
