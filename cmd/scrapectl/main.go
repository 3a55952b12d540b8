// Command scrapectl starts profile scrapes and reads their results from a
// running server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"profilescraper/internal/config"
	"profilescraper/internal/core/model"
	"profilescraper/internal/poller"
)

func main() {
	_ = config.LoadDotenv()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	server   string
	mode     string
	wait     bool
	attempts int
	interval time.Duration

	// sleep replaces the poll delay in tests.
	sleep poller.SleepFunc
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&options{})
}

func newRootCmdWith(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "scrapectl",
		Short:         "scrapectl starts profile scrapes and prints their posts.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	def := os.Getenv("SCRAPER_URL")
	if def == "" {
		def = "http://127.0.0.1:8081"
	}
	root.PersistentFlags().StringVar(&o.server, "server", def, "Base URL of the scrape server")

	scrapeCmd := &cobra.Command{
		Use:   "scrape <profile>",
		Short: "Scrapes a profile and prints its posts.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.scrape(cmd, args[0])
		},
	}
	scrapeCmd.Flags().StringVar(&o.mode, "mode", "", "sync, stream or async; the server default when empty")
	scrapeCmd.Flags().BoolVar(&o.wait, "wait", false, "After an async start, poll until posts arrive")
	scrapeCmd.Flags().IntVar(&o.attempts, "attempts", poller.DefaultMaxAttempts, "Poll attempts for --wait")
	scrapeCmd.Flags().DurationVar(&o.interval, "interval", poller.DefaultInterval, "Delay between poll attempts")

	statusCmd := &cobra.Command{
		Use:   "status <profile>",
		Short: "Prints the latest job state and stored posts of a profile.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.status(cmd, args[0])
		},
	}

	allCmd := &cobra.Command{
		Use:   "all",
		Short: "Prints every stored profile.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := poller.NewClient(o.server).All(cmd.Context())
			if errors.Is(err, model.ErrNoData) {
				fmt.Fprintln(cmd.ErrOrStderr(), "no profiles stored yet")
				return nil
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), docs)
		},
	}

	root.AddCommand(scrapeCmd, statusCmd, allCmd)
	return root
}

func (o *options) scrape(cmd *cobra.Command, profile string) error {
	ctx := cmd.Context()
	client := poller.NewClient(o.server)

	if o.mode == "stream" {
		res, err := client.ScrapeStream(ctx, profile, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		warn(cmd, res.Warnings)
		return printJSON(cmd.OutOrStdout(), res.Posts)
	}

	res, err := client.Scrape(ctx, profile, o.mode)
	if err != nil {
		return err
	}
	warn(cmd, res.Warnings)
	if res.Status != "accepted" {
		return printJSON(cmd.OutOrStdout(), res.Posts)
	}
	if !o.wait {
		fmt.Fprintf(cmd.ErrOrStderr(), "scrape of %s accepted\n", profile)
		return nil
	}

	p := poller.DefaultPolicy[*model.ProfilePosts](nil)
	p.MaxAttempts = o.attempts
	p.Interval = o.interval
	if o.sleep != nil {
		p.Sleep = o.sleep
	}
	posts, err := client.AwaitPosts(ctx, profile, p)
	if errors.Is(err, model.ErrExhausted) {
		fmt.Fprintf(cmd.ErrOrStderr(), "no posts for %s yet, the job may still be running\n", profile)
		return nil
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), posts)
}

func (o *options) status(cmd *cobra.Command, profile string) error {
	ctx := cmd.Context()
	client := poller.NewClient(o.server)

	out := struct {
		Job   *model.Job          `json:"job,omitempty"`
		Posts *model.ProfilePosts `json:"posts,omitempty"`
	}{}
	j, err := client.Job(ctx, profile)
	if err != nil && !errors.Is(err, model.ErrNoData) {
		return err
	}
	out.Job = j
	doc, err := client.Posts(ctx, profile)
	if err != nil && !errors.Is(err, model.ErrNoData) {
		return err
	}
	out.Posts = doc
	if out.Job == nil && out.Posts == nil {
		return fmt.Errorf("nothing known about %s", profile)
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func warn(cmd *cobra.Command, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
