package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cinebot/internal/app"
)

func printTrending(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := oneShotContext(cmd)
	defer cancel()

	cat, err := app.OpenCatalog(ctx, cfg, nil, cliLogger())
	if err != nil {
		return err
	}
	defer cat.Close()

	titles, err := cat.Trending.Titles(ctx)
	if err != nil {
		return err
	}
	for i, t := range titles {
		fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s\n", i+1, t)
	}
	return nil
}
