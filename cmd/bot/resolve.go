package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cinebot/internal/app"
	"cinebot/internal/caption"
	"cinebot/internal/resolve"
)

func resolveTitle(cmd *cobra.Command, args []string) error {
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

	res := cat.Engine.Resolve(ctx, resolve.MediaQuery(strings.Join(args, " ")))
	out := cmd.OutOrStdout()
	if trace, _ := cmd.Flags().GetBool("trace"); trace {
		states := make([]string, 0, len(res.Trace))
		for _, s := range res.Trace {
			states = append(states, string(s))
		}
		fmt.Fprintln(out, "trace:", strings.Join(states, " -> "))
	}
	if res.CorrectedTitle != "" {
		fmt.Fprintln(out, "corrected:", res.CorrectedTitle)
	}
	switch res.Kind {
	case resolve.KindRecord:
		fmt.Fprintln(out, caption.SafeRender(res.Record))
	case resolve.KindAIText:
		fmt.Fprintln(out, res.Text)
	default:
		fmt.Fprintln(out, "not found:", res.SearchURL)
	}
	return nil
}
