package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ytsummarize/internal/cache"
	"ytsummarize/internal/services"
)

const stampLayout = "2006-01-02 15:04"

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear cached transcripts and summaries",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cache entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindFlag(kindFlag)
			if err != nil {
				return err
			}
			store, _, err := ctx.openCache()
			if err != nil {
				return err
			}
			defer store.Close()

			listings, err := store.List(cmd.Context(), kind)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), listings)
			}
			out := cmd.OutOrStdout()
			if len(listings) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}
			rows := make([][]string, 0, len(listings))
			for _, l := range listings {
				rows = append(rows, []string{
					string(l.Key),
					string(l.Kind),
					dash(l.Method),
					dash(l.Title),
					humanBytes(l.Size),
					formatStamp(l.WrittenAt),
				})
			}
			fmt.Fprintln(out, renderTable(tableLayout{
				Headers:  []string{"Key", "Kind", "Method", "Title", "Size", "Written"},
				Aligns:   []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				Rows:     rows,
				MaxWidth: map[int]int{4: 40},
			}))
			return nil
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Only list one kind (transcript, chunk_map, summary)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage per kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := ctx.openCache()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			rows := make([][]string, 0, len(stats.Kinds))
			for _, k := range stats.Kinds {
				rows = append(rows, []string{string(k.Kind), strconv.Itoa(k.Entries), humanBytes(k.Bytes)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache: %s\n", store.Dir())
			fmt.Fprintln(out, renderTable(tableLayout{
				Headers: []string{"Kind", "Entries", "Size"},
				Aligns:  []columnAlignment{alignLeft, alignRight, alignRight},
				Rows:    rows,
				Footer:  []string{"Total", strconv.Itoa(stats.TotalEntries()), humanBytes(stats.TotalBytes())},
			}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var keyPrefix string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cache entries (all entries unless filtered)",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindFlag(kindFlag)
			if err != nil {
				return err
			}
			store, _, err := ctx.openCache()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context(), kind, keyPrefix)
			if err != nil {
				return fmt.Errorf("clear cache (removed %d before failing): %w", removed, err)
			}
			noun := "entries"
			if removed == 1 {
				noun = "entry"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache %s\n", removed, noun)
			return nil
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Only clear one kind (transcript, chunk_map, summary)")
	cmd.Flags().StringVar(&keyPrefix, "key", "", "Only clear keys starting with this prefix")
	return cmd
}

func parseKindFlag(value string) (cache.Kind, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	kind, err := cache.ParseKind(value)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "", "", "--kind", err)
	}
	return kind, nil
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(stampLayout)
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
