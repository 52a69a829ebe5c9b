package main

import (
	"github.com/spf13/cobra"

	"ytsummarize/internal/services"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var verbose bool
	var flags summarizeFlags

	ctx := newCommandContext(&configFlag, &verbose)

	rootCmd := &cobra.Command{
		Use:   "ytsummarize [flags] <url|video-id|transcript-file>",
		Short: "Summarize a video or transcript into structured notes",
		Long: "ytsummarize fetches a transcript (captions, subtitles, or speech-to-text\n" +
			"as a fallback), splits it into chunks, summarizes the chunks and writes\n" +
			"summary.md, summary.json, transcript.txt and meta.json to a directory\n" +
			"named after the title. Every intermediate result is cached.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runSummarize(cmd, ctx, args[0], &flags)
		},
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return services.Wrap(services.ErrValidation, "", "", "", err)
	})

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.register(rootCmd)

	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))

	return rootCmd
}
