package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mohammad-safakhou/askweb/config"
	"github.com/mohammad-safakhou/askweb/internal/logger"
	"github.com/mohammad-safakhou/askweb/internal/runtime"
	srv "github.com/mohammad-safakhou/askweb/internal/server"
	"github.com/spf13/cobra"
)

func askCMD(cfgPath *string) *cobra.Command {
	var showPrompt bool
	var ask = &cobra.Command{
		Use:   "ask <question>",
		Short: "Search the web once and stream an answer to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(*cfgPath)
			// keep the terminal for the answer
			if cfg.Log.Output == "console" {
				cfg.Log.Level = "warn"
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := runtime.SignalContext(cmd.Context())
			defer stop()

			app, err := srv.NewApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			ans, err := app.Chain.Run(ctx, strings.Join(args, " "), nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showPrompt {
				fmt.Fprintf(out, "--- prompt ---\n%s\n--- answer ---\n", ans.Prompt)
			}
			for chunk := range ans.Stream {
				if chunk.Err != nil {
					return chunk.Err
				}
				fmt.Fprint(out, chunk.Content)
			}
			fmt.Fprintln(out)

			if !ans.Found {
				fmt.Fprintln(out, "\n(no web pages were found, the answer relies on the model alone)")
				return nil
			}
			urls := make([]string, 0, len(ans.Links))
			for u := range ans.Links {
				urls = append(urls, u)
			}
			sort.Strings(urls)
			fmt.Fprintln(out, "\nSources:")
			for _, u := range urls {
				fmt.Fprintf(out, "  %s\n    %s\n", ans.Links[u], u)
			}
			return nil
		},
	}
	ask.Flags().BoolVar(&showPrompt, "show-prompt", false, "print the composed prompt before the answer")
	return ask
}
