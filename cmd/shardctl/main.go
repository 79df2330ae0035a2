package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/pg-sharding/shardcore/pkg/config"
	"github.com/pg-sharding/shardcore/pkg/shardlog"
	"github.com/pg-sharding/shardcore/router/executor"
	"github.com/pg-sharding/shardcore/router/merge"
	"github.com/pg-sharding/shardcore/router/metrics"
	"github.com/pg-sharding/shardcore/router/qrouter"
	"github.com/pg-sharding/shardcore/router/routehint"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	hintDS   string
	params   []string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "shardctl --config `config-path`",
	Short: "route, rewrite and merge sharded SQL",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "" {
			return shardlog.UpdateZeroLogLevel(logLevel)
		}
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview `sql`",
	Short: "print the actual SQL every data source would run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		qr, err := qrouter.NewQueryRouter(cfg, nil)
		if err != nil {
			return err
		}
		plan, err := qr.Plan(cmd.Context(), args[0], parseParams(params), hint())
		if err != nil {
			return err
		}
		return printPlan(cmd.OutOrStdout(), plan)
	},
}

var execCmd = &cobra.Command{
	Use:   "exec `sql`",
	Short: "run a statement on the configured data sources and print the merged result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		backend, err := executor.NewSQLBackend(cfg.DataSources)
		if err != nil {
			return err
		}
		defer func() {
			if err := backend.Close(); err != nil {
				shardlog.Zero.Error().Err(err).Msg("failed to close data sources")
			}
		}()

		qr, err := qrouter.NewQueryRouter(cfg, executor.New(backend, cfg.Props))
		if err != nil {
			return err
		}
		return run(cmd.Context(), cmd.OutOrStdout(), qr, args[0], parseParams(params), hint())
	},
}

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve statement previews and Prometheus metrics over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		qr, err := qrouter.NewQueryRouter(cfg, nil)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return metrics.Serve(ctx, listenAddr, qr)
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if logLevel == "" {
		if err := shardlog.UpdateZeroLogLevel(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func hint() *routehint.HintContext {
	if hintDS == "" {
		return nil
	}
	return &routehint.HintContext{DataSource: hintDS}
}

// parseParams reads integers and NULL, everything else is a string.
func parseParams(raw []string) []any {
	res := make([]any, 0, len(raw))
	for _, p := range raw {
		switch {
		case strings.EqualFold(p, "null"):
			res = append(res, nil)
		default:
			if n, err := strconv.ParseInt(p, 10, 64); err == nil {
				res = append(res, n)
			} else if f, err := strconv.ParseFloat(p, 64); err == nil {
				res = append(res, f)
			} else {
				res = append(res, p)
			}
		}
	}
	return res
}

func printPlan(out io.Writer, plan *qrouter.Plan) error {
	if _, err := fmt.Fprintf(out, "route: %s, merge: %s\n", plan.Shape(), plan.MergeKind); err != nil {
		return err
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Data source", "Tables", "SQL", "Params"})
	table.SetAutoWrapText(false)
	table.AppendBulk(plan.Rows())
	table.Render()
	return nil
}

func run(ctx context.Context, out io.Writer, qr qrouter.QueryRouter, sql string, params []any, h *routehint.HintContext) error {
	plan, err := qr.Plan(ctx, sql, params, h)
	if err != nil {
		return err
	}
	if plan.MergeKind == merge.KindUpdate {
		res, err := qr.Exec(ctx, sql, params, h)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "affected rows: %d\n", res.AffectedRows)
		if err == nil && len(res.GeneratedKeys) > 0 {
			_, err = fmt.Fprintf(out, "generated %s: %v\n", res.GeneratedKeyColumn, res.GeneratedKeys)
		}
		return err
	}

	res, err := qr.Query(ctx, sql, params, h)
	if err != nil {
		return err
	}
	defer res.Close()
	return printRows(ctx, out, res)
}

func printRows(ctx context.Context, out io.Writer, res merge.MergedResult) error {
	table := tablewriter.NewWriter(out)
	table.SetHeader(res.Columns())
	table.SetAutoFormatHeaders(false)
	n := 0
	for {
		ok, err := res.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row, err := res.Row()
		if err != nil {
			return err
		}
		cells := make([]string, 0, len(row))
		for _, v := range row {
			cells = append(cells, cell(v))
		}
		table.Append(cells)
		n++
	}
	table.Render()
	_, err := fmt.Fprintf(out, "%d rows\n", n)
	return err
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "examples/sharding.yaml", "path to sharding config file")
	rootCmd.PersistentFlags().StringVar(&hintDS, "hint-ds", "", "force the statement onto one data source")
	rootCmd.PersistentFlags().StringArrayVar(&params, "param", nil, "statement parameter, repeat for each '?'")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warning, error, fatal or disabled")

	serveCmd.Flags().StringVar(&listenAddr, "listen", ":7070", "address to serve on")

	rootCmd.AddCommand(previewCmd, execCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
