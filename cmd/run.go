package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/research-writer/internal/config"
	"github.com/sells-group/research-writer/internal/model"
	"github.com/sells-group/research-writer/internal/pipeline"
	"github.com/sells-group/research-writer/internal/publish"
	"github.com/sells-group/research-writer/pkg/notion"
)

var (
	runQuery   string
	runFormat  string
	runPublish bool
)

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Write an article for a single query",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := runQuery
		if query == "" && len(args) == 1 {
			query = args[0]
		}
		switch runFormat {
		case "markdown", "json", "yaml":
		default:
			return eris.Errorf("unknown format %q (want markdown, json or yaml)", runFormat)
		}

		ctx := cmd.Context()
		if cfg.Server.RunTimeoutSecs > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.Timeout(cfg.Server.RunTimeoutSecs))
			defer cancel()
		}

		env, err := initPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		stderr := cmd.ErrOrStderr()
		obs := pipeline.ObserverFunc(func(_ model.Stage, rec *model.Record) {
			last := rec.Stages[len(rec.Stages)-1]
			fmt.Fprintln(stderr, progressLine(last))
		})

		rec, err := env.Pipeline.Run(ctx, query, obs)
		if err != nil {
			zap.L().Error("run failed", zap.String("query", query), zap.Error(err))
			fmt.Fprintln(stderr, fatalBox())
			return err
		}

		if strings.TrimSpace(rec.Error) != "" {
			zap.L().Warn("run completed with diagnostics", zap.String("run_id", rec.RunID), zap.String("error", rec.Error))
		}
		if err := writeRecord(cmd.OutOrStdout(), rec, runFormat); err != nil {
			return err
		}
		if runPublish {
			return publishRecord(cmd, rec)
		}
		return nil
	},
}

// publishRecord sends a finished article to the configured Notion database.
func publishRecord(cmd *cobra.Command, rec *model.Record) error {
	if cfg.Notion.Token == "" || cfg.Notion.DatabaseID == "" {
		return eris.New("publish: notion.token and notion.database_id are required")
	}
	pub := publish.NewNotion(
		notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit)),
		cfg.Notion.DatabaseID,
	)
	url, err := pub.Publish(cmd.Context(), rec)
	if eris.Is(err, publish.ErrNothingToPublish) {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("Not published: the run produced no sourced article."))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), okStyle.Render("Published: ")+url)
	return nil
}

func init() {
	runCmd.Flags().StringVarP(&runQuery, "query", "q", "", "topic to research and write about")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "markdown", "output format: markdown, json or yaml")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "publish the finished article to Notion")
	rootCmd.AddCommand(runCmd)
}
