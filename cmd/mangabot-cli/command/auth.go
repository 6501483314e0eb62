package command

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyburd/mangabot/cmd/mangabot-cli/authentication"
	"github.com/tyburd/mangabot/cmd/mangabot-cli/command/client"
	"github.com/tyburd/mangabot/internal/api"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  `Log in to the admin API of a running mangabot, log out, or hash a new admin key.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange the admin key for an access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		if key == "" {
			var err error
			if key, err = readLine("Admin key: "); err != nil {
				return err
			}
		}

		httpClient := client.NewHTTPClient(apiURL)
		resp, err := httpClient.Login(key)
		if err != nil {
			return err
		}

		err = authentication.StoreTokens(&authentication.StoredCredentials{
			APIURL:      apiURL,
			AccessToken: resp.AccessToken,
			ExpiresAt:   resp.ExpiresAt,
		})
		if err != nil {
			// no keyring on this machine, hand the token over instead
			fmt.Println("Could not store the token, export it instead:")
			fmt.Printf("  export MANGABOT_TOKEN=%s\n", resp.AccessToken)
			return nil
		}

		fmt.Printf("✓ Logged in, token valid until %s\n", resp.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := authentication.DeleteTokens(); err != nil {
			return err
		}
		fmt.Println("✓ Logged out.")
		return nil
	},
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [key]",
	Short: "Print the ADMIN_KEY_HASH value for an admin key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			var err error
			if key, err = readLine("Admin key: "); err != nil {
				return err
			}
		}
		if len(key) < 12 {
			return fmt.Errorf("admin key should be at least 12 characters")
		}

		hash, err := api.HashAdminKey(key)
		if err != nil {
			return err
		}
		fmt.Printf("ADMIN_KEY_HASH=%s\n", hash)
		return nil
	},
}

// authedClient returns an API client carrying --token or the stored login
func authedClient() (*client.HTTPClient, error) {
	httpClient := client.NewHTTPClient(apiURL)
	if token != "" {
		httpClient.SetToken(token)
		return httpClient, nil
	}

	creds, err := authentication.GetTokens()
	if err != nil {
		return nil, err
	}
	if creds.APIURL != "" && !cmdFlagChanged("api") {
		httpClient = client.NewHTTPClient(creds.APIURL)
	}
	httpClient.SetToken(creds.AccessToken)
	return httpClient, nil
}

func cmdFlagChanged(name string) bool {
	f := rootCmd.PersistentFlags().Lookup(name)
	return f != nil && f.Changed
}

func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, hashKeyCmd)
	loginCmd.Flags().String("key", "", "admin key, prompted for when empty")
}
