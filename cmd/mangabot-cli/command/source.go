package command

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tyburd/mangabot/internal/app"
	"github.com/tyburd/mangabot/internal/config"
	"github.com/tyburd/mangabot/internal/logging"
	"github.com/tyburd/mangabot/internal/manga"
)

var clientName string

// withSources loads the configuration and builds the adapters for one command
func withSources(cmd *cobra.Command, fn func(ctx context.Context, src *app.Sources) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, "warn", "text")

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	src, err := app.NewSources(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer src.Close()
	return fn(ctx, src)
}

// pickClient returns the --client adapter, the owner of rawURL, or the first one
func pickClient(src *app.Sources, rawURL string) (manga.Client, error) {
	if clientName != "" {
		c, ok := src.Registry.Client(clientName)
		if !ok {
			return nil, fmt.Errorf("unknown client %q", clientName)
		}
		return c, nil
	}
	if rawURL != "" {
		res, ok := src.Registry.Resolve(rawURL)
		if !ok {
			return nil, fmt.Errorf("no client handles %s", rawURL)
		}
		return res.Client, nil
	}
	return src.Registry.Clients()[0], nil
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a source for series",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		query := strings.Join(args, " ")

		return withSources(cmd, func(ctx context.Context, src *app.Sources) error {
			c, err := pickClient(src, "")
			if err != nil {
				return err
			}
			cards, err := c.Search(ctx, query, page)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if len(cards) == 0 {
				fmt.Println("No series found.")
				return nil
			}

			fmt.Printf("Found %d series on %s:\n\n", len(cards), c.Name())
			for _, card := range cards {
				fmt.Printf("Name: %s\n", card.Name)
				fmt.Printf("URL:  %s\n", card.URL)
				fmt.Printf("Page: %s\n", card.PublicURL())
				fmt.Println(strings.Repeat("-", 50))
			}
			return nil
		})
	},
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters [series-url]",
	Short: "List the chapters of a series, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		last, _ := cmd.Flags().GetInt("last")

		return withSources(cmd, func(ctx context.Context, src *app.Sources) error {
			c, err := pickClient(src, args[0])
			if err != nil {
				return err
			}
			chapters, err := manga.Collect(c.IterChapters(ctx, strings.TrimSpace(args[0]), ""))
			if err != nil {
				return fmt.Errorf("listing chapters failed: %w", err)
			}
			if last > 0 && len(chapters) > last {
				chapters = chapters[len(chapters)-last:]
			}
			for _, ch := range chapters {
				fmt.Printf("%-30s %s\n", ch.Title, ch.URL)
			}
			fmt.Printf("\n%d chapters\n", len(chapters))
			return nil
		})
	},
}

var picturesCmd = &cobra.Command{
	Use:   "pictures [chapter-url]",
	Short: "Print the picture URLs of a chapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSources(cmd, func(ctx context.Context, src *app.Sources) error {
			c, err := pickClient(src, args[0])
			if err != nil {
				return err
			}
			pictures, err := c.Pictures(ctx, manga.Chapter{Client: c, URL: strings.TrimSpace(args[0])})
			if err != nil {
				return fmt.Errorf("fetching pictures failed: %w", err)
			}
			if len(pictures) == 0 {
				fmt.Println("Chapter has no pictures (it may not be released yet).")
				return nil
			}
			for _, p := range pictures {
				fmt.Println(p)
			}
			return nil
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [series-url=chapter-url]...",
	Short: "Check series against the source's update feed",
	Long: `check classifies each series as updated or not updated. Every argument pairs
a series URL with the URL of the last chapter seen, separated by "=".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := parseLastChapters(args)
		if err != nil {
			return err
		}

		return withSources(cmd, func(ctx context.Context, src *app.Sources) error {
			c, err := pickClient(src, records[0].URL)
			if err != nil {
				return err
			}
			res, err := c.CheckUpdatedURLs(ctx, records)
			if err != nil {
				return fmt.Errorf("update check failed: %w", err)
			}
			for _, u := range res.Updated {
				fmt.Printf("updated      %s\n", u)
			}
			for _, u := range res.NotUpdated {
				fmt.Printf("not updated  %s\n", u)
			}
			return nil
		})
	},
}

func parseLastChapters(args []string) ([]manga.LastChapter, error) {
	records := make([]manga.LastChapter, 0, len(args))
	for _, arg := range args {
		series, chapter, ok := strings.Cut(arg, "=")
		if !ok || series == "" || chapter == "" {
			return nil, fmt.Errorf("invalid argument %q, expected series-url=chapter-url", arg)
		}
		records = append(records, manga.LastChapter{URL: series, ChapterURL: chapter})
	}
	return records, nil
}

func init() {
	for _, cmd := range []*cobra.Command{searchCmd, chaptersCmd, picturesCmd, checkCmd} {
		cmd.Flags().StringVar(&clientName, "client", "", "source to use, e.g. Comick-en")
		rootCmd.AddCommand(cmd)
	}
	searchCmd.Flags().Int("page", 1, "result page")
	chaptersCmd.Flags().Int("last", 0, "only show the newest n chapters")
}
