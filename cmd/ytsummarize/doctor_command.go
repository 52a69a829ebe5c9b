package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ytsummarize/internal/config"
	"ytsummarize/internal/deps"
	"ytsummarize/internal/preflight"
	"ytsummarize/internal/services"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories and provider access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p := newStatusPrinter(cmd.OutOrStdout())

			p.section("Configuration")
			printConfiguration(p, ctx, cfg)

			p.section("Dependencies")
			for _, status := range preflight.CheckSystemDeps(cfg) {
				p.line(status.Name, dependencyKind(status), dependencyDetail(status))
			}

			p.section("Checks")
			for _, result := range preflight.RunAll(cmd.Context(), cfg, preflight.Options{SkipNetwork: offline}) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				p.line(result.Name, kind, result.Detail)
			}

			if p.errors > 0 {
				return services.Wrap(services.ErrConfiguration, "", "doctor", fmt.Sprintf("%d check(s) failed", p.errors), nil)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip checks that contact the chat completion provider")
	return cmd
}

func printConfiguration(p *statusPrinter, ctx *commandContext, cfg *config.Config) {
	source := ctx.configPath
	if !ctx.configSeen {
		source += " (not found; defaults)"
	}
	reduce := "deterministic merge only"
	if cfg.Summarize.Synthesize {
		reduce = "model synthesis"
	}
	for _, row := range [][2]string{
		{"Config", source},
		{"Model", cfg.GetLLM().Model},
		{"Transcription model", cfg.GetTranscription().Model},
		{"Language", cfg.Acquisition.Language},
		{"Audio fallback", yesNo(cfg.Acquisition.AudioFallback)},
		{"Formats", strings.Join(cfg.Summarize.Formats, ",")},
		{"Reduce", reduce},
	} {
		p.line(row[0], statusInfo, row[1])
	}
}

func dependencyKind(status deps.Status) statusKind {
	switch {
	case status.Available:
		return statusOK
	case status.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyDetail(status deps.Status) string {
	if status.Available {
		return status.Command
	}
	detail := status.Detail
	if status.Description != "" {
		detail = fmt.Sprintf("%s (%s)", detail, status.Description)
	}
	return detail
}
