package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keagan/factreel/internal/config"
	"github.com/keagan/factreel/internal/logging"
	"github.com/keagan/factreel/internal/pipeline"
)

var (
	cfgFile string
	verbose bool
	factID  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger := logging.WithComponent("cli")
		logger.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "factreel",
	Short:         "factreel - turn an article into narrated fun-fact shorts",
	Long:          "Extracts fun facts from an article, finds matching footage, selects relevant clips and cuts narrated vertical shorts.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if factID != "" {
			cfg.FactID = factID
		}

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./factreel.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&factID, "fact", "", "fact key to process (default from config)")

	rootCmd.AddCommand(factsCmd, footageCmd, selectCmd, narrateCmd, editCmd, runCmd, configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)
}

// withPipeline builds the pipeline for the command's config and closes it afterwards
func withPipeline(cmd *cobra.Command, fn func(p *pipeline.Pipeline, cfg *config.Config) error) error {
	cfg := config.FromContext(cmd.Context())

	p, err := pipeline.Build(cmd.Context(), logging.NewLogger(), cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer p.Close()

	return fn(p, cfg)
}

var factsCmd = &cobra.Command{
	Use:   "facts [article url]",
	Short: "Extract facts, search queries and scripts from an article",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(p *pipeline.Pipeline, cfg *config.Config) error {
			url := cfg.ArticleURL
			if len(args) == 1 {
				url = args[0]
			}
			if url == "" {
				return fmt.Errorf("no article url given")
			}

			doc, err := p.Document(cmd.Context(), url)
			if err != nil {
				return err
			}
			for _, key := range doc.Keys() {
				log.Info().Str("fact", key).Msg(doc.Facts[key].Text)
			}
			return nil
		})
	},
}

var footageCmd = &cobra.Command{
	Use:   "footage",
	Short: "Search and download source videos for a fact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(p *pipeline.Pipeline, cfg *config.Config) error {
			rec, err := p.Footage(cmd.Context(), cfg.FactID)
			if err != nil {
				return err
			}
			log.Info().Str("fact", cfg.FactID).Int("videos", len(rec.VideoPaths)).Msg("footage downloaded")
			return nil
		})
	},
}

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Plan sections and extract relevant clips for a fact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(p *pipeline.Pipeline, cfg *config.Config) error {
			_, report, err := p.Selection(cmd.Context(), cfg.FactID)
			if err != nil {
				return err
			}
			log.Info().Str("fact", cfg.FactID).Int("jobs", report.Jobs).Int("clips", report.Total()).Msg("selection done")
			return nil
		})
	},
}

var narrateCmd = &cobra.Command{
	Use:   "narrate",
	Short: "Synthesize the narration of a fact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(p *pipeline.Pipeline, cfg *config.Config) error {
			if err := p.Narration(cmd.Context(), cfg.FactID); err != nil {
				return err
			}
			log.Info().Str("audio", p.Layout(cfg.FactID).AudioPath()).Msg("narration written")
			return nil
		})
	},
}

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Assemble the final shorts of a fact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(p *pipeline.Pipeline, cfg *config.Config) error {
			shorts, err := p.Edit(cmd.Context(), cfg.FactID)
			if err != nil {
				return err
			}
			log.Info().Strs("shorts", shorts).Msg("edit complete")
			return nil
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run [article url]",
	Short: "Run every stage for one fact",
	Long:  "Runs every stage for one fact. Without an article url the stored fact document is reused.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd, func(p *pipeline.Pipeline, cfg *config.Config) error {
			url := cfg.ArticleURL
			if len(args) == 1 {
				url = args[0]
			}

			res, err := p.Run(cmd.Context(), url, cfg.FactID)
			if err != nil {
				return err
			}
			log.Info().Str("run", res.RunID).Strs("shorts", res.Shorts).Msg("done")
			return nil
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err == nil {
			return fmt.Errorf("%s already exists", args[0])
		}
		if err := config.Default().Save(args[0]); err != nil {
			return err
		}
		log.Info().Str("path", args[0]).Msg("config written")
		return nil
	},
}
