package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bigairlab/narrate/blog"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Manage downloaded articles",
		Args:  cobra.NoArgs,
	}

	cacheInfoCmd = &cobra.Command{
		Use:   "info",
		Short: "Show article cache usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			defer cache.Close() //nolint:errcheck
			printCacheInfo(cmd.OutOrStdout(), cache)
			return nil
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every downloaded article",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			defer cache.Close() //nolint:errcheck

			n := cache.Stats().Items
			if err := cache.Clear(); err != nil {
				return fmt.Errorf("unable to clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n",
				humanize.Comma(int64(n))+" "+plural(n, "article", "articles"), cache.Dir())
			return nil
		},
	}
)

func init() {
	cacheCmd.AddCommand(cacheInfoCmd, cacheClearCmd)
}

func printCacheInfo(w io.Writer, cache *blog.Cache) {
	st := cache.Stats()
	ratio := 0.0
	if st.Size > 0 {
		ratio = float64(st.OriginalSize) / float64(st.Size)
	}

	fmt.Fprintf(w, "%s %s\n", keyword("Directory:"), cache.Dir())
	fmt.Fprintf(w, "%s %d\n", keyword("Articles: "), st.Items)
	fmt.Fprintf(w, "%s %s of %s (%.1fx compression)\n", keyword("Size:     "),
		humanize.Bytes(uint64(max(st.Size, 0))), //nolint:gosec
		humanize.Bytes(uint64(max(st.Capacity, 0))), //nolint:gosec
		ratio)
	fmt.Fprintf(w, "%s %d hits, %d misses (%.0f%%)\n", keyword("Requests: "), st.Hits, st.Misses, st.HitRate*100)

	entries := cache.Entries()
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = blog.PrettifySlug(e.ID)
		}
		fmt.Fprintf(w, "  %s %s\n", title, subtle(fmt.Sprintf("%s · %s · fetched %s",
			e.ID, humanize.Bytes(uint64(max(e.Size, 0))), humanize.Time(e.FetchedAt)))) //nolint:gosec
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
