package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generate man pages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		page, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return fmt.Errorf("unable to build man page: %w", err)
		}

		page = page.WithSection("Environment",
			"NARRATE_DEBUG enables the debug log.\n"+
				"NARRATE_CONFIG_HOME overrides the config directory.\n"+
				"NARRATE_SITE_URL sets the base of copied share links.\n"+
				"GLAMOUR_STYLE sets the article style.")
		page = page.WithSection("Copyright", "(C) Big AIR Lab.\nReleased under MIT license.")
		fmt.Fprintln(cmd.OutOrStdout(), page.Build(roff.NewDocument()))
		return nil
	},
}
