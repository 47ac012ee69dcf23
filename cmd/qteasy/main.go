package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/frankfanslc/qteasy/internal/backtest/engine"
	"github.com/frankfanslc/qteasy/internal/datasource"
	"github.com/frankfanslc/qteasy/internal/frame"
	"github.com/frankfanslc/qteasy/internal/logger"
	"github.com/frankfanslc/qteasy/internal/optimizer"
	"github.com/frankfanslc/qteasy/internal/strategy"
)

// runConfig is the YAML file driving both subcommands.
type runConfig struct {
	Data     string           `yaml:"data"`
	Strategy strategyConfig   `yaml:"strategy"`
	Engine   engine.Config    `yaml:"engine"`
	Search   optimizer.Config `yaml:"search"`
	CashPlan []cashEntry      `yaml:"cash_plan"`
}

type strategyConfig struct {
	Name   string    `yaml:"name"`
	Params []float64 `yaml:"params"`
}

type cashEntry struct {
	Date   time.Time `yaml:"date"`
	Amount float64   `yaml:"amount"`
}

func loadConfig(path string) (*runConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	config := &runConfig{
		Engine: engine.DefaultConfig(),
		Search: optimizer.DefaultConfig(),
	}
	if err := yaml.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return config, nil
}

func (c *runConfig) cashPlan() (*engine.CashPlan, error) {
	entries := make([]engine.CashEntry, len(c.CashPlan))
	for i, e := range c.CashPlan {
		entries[i] = engine.CashEntry{Date: e.Date, Amount: e.Amount}
	}

	return engine.NewCashPlan(entries...)
}

// loadPrices opens the candle file named by the config and pivots it into a
// close-price frame over the configured time window.
func (c *runConfig) loadPrices(log *logger.Logger) (*frame.Frame, error) {
	source, err := datasource.NewPriceSource("", log)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	if err := source.Initialize(c.Data); err != nil {
		return nil, err
	}

	count, err := source.Count(c.Engine.StartTime, c.Engine.EndTime)
	if err != nil {
		return nil, err
	}
	log.Info("loaded candles", zap.String("file", c.Data), zap.Int("candles", count))

	return source.ClosePrices(c.Engine.StartTime, c.Engine.EndTime)
}

func (c *runConfig) buildStrategy() (strategy.Strategy, error) {
	strat, err := strategy.New(c.Strategy.Name)
	if err != nil {
		return nil, err
	}

	if len(c.Strategy.Params) > 0 {
		if err := strat.SetOptParams(c.Strategy.Params); err != nil {
			return nil, err
		}
	}

	return strat, nil
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	runID := uuid.New().String()
	log.Info("starting backtest", zap.String("run_id", runID))

	config, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if data := cmd.String("data"); data != "" {
		config.Data = data
	}

	prices, err := config.loadPrices(log)
	if err != nil {
		return err
	}

	strat, err := config.buildStrategy()
	if err != nil {
		return err
	}

	signals, err := strat.Signals(prices)
	if err != nil {
		return err
	}

	plan, err := config.cashPlan()
	if err != nil {
		return err
	}

	backtest, err := engine.NewBacktest(config.Engine, log)
	if err != nil {
		return err
	}

	trace, err := backtest.Run(signals, prices, plan)
	if err != nil {
		return err
	}

	if cmd.Bool("daily") {
		trace, err = trace.ExpandDaily(prices)
		if err != nil {
			return err
		}
	}

	printTrace(trace, plan)

	return nil
}

func printTrace(trace *engine.Trace, plan *engine.CashPlan) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Date", "Cash", "Fee", "Value")

	for _, r := range trace.Records() {
		table.Append(
			r.Date.Format("2006-01-02"),
			fmt.Sprintf("%.2f", r.Cash),
			fmt.Sprintf("%.2f", r.Fee),
			fmt.Sprintf("%.2f", r.Value),
		)
	}

	table.Render()

	invested := plan.Total()
	final := trace.FinalValue()

	summary := tablewriter.NewWriter(os.Stdout)
	summary.Header("Invested", "Final Value", "Return", "Total Fee")
	summary.Append(
		fmt.Sprintf("%.2f", invested),
		fmt.Sprintf("%.2f", final),
		fmt.Sprintf("%.2f%%", (final/invested-1)*100),
		fmt.Sprintf("%.2f", trace.TotalFee()),
	)
	summary.Render()
}

func optimizeAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	runID := uuid.New().String()
	log.Info("starting optimization", zap.String("run_id", runID))

	config, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if data := cmd.String("data"); data != "" {
		config.Data = data
	}
	if workers := cmd.Int("workers"); workers > 0 {
		config.Search.Workers = int(workers)
	}
	config.Search.Progress = true

	if err := config.Search.Validate(); err != nil {
		return err
	}

	prices, err := config.loadPrices(log)
	if err != nil {
		return err
	}

	strat, err := config.buildStrategy()
	if err != nil {
		return err
	}

	plan, err := config.cashPlan()
	if err != nil {
		return err
	}

	objective, err := optimizer.ObjectiveByName(config.Search.Objective)
	if err != nil {
		return err
	}

	eval, err := optimizer.NewEvaluator(strat, config.Engine, prices, plan, objective, log)
	if err != nil {
		return err
	}

	searcher, err := optimizer.NewSearcher(config.Search, log)
	if err != nil {
		return err
	}

	entries, err := searcher.Search(strat.OptSpace(), eval)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Rank", "Params", "Score")

	// Entries arrive worst to best; print best first.
	for i := len(entries) - 1; i >= 0; i-- {
		table.Append(
			fmt.Sprintf("%d", len(entries)-i),
			fmt.Sprintf("%v", entries[i].Params),
			fmt.Sprintf("%.4f", entries[i].Score),
		)
	}

	table.Render()

	return nil
}

func schemaAction(ctx context.Context, cmd *cli.Command) error {
	engineConfig := engine.DefaultConfig()
	engineSchema, err := engineConfig.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	searchConfig := optimizer.DefaultConfig()
	searchSchema, err := searchConfig.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	fmt.Println(engineSchema)
	fmt.Println(searchSchema)

	return nil
}

func main() {
	configFlag := &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "Path to the YAML run config",
		Required: true,
	}
	dataFlag := &cli.StringFlag{
		Name:    "data",
		Aliases: []string{"d"},
		Usage:   "Candle file (.parquet or .csv); overrides the config",
	}

	cmd := &cli.Command{
		Name:  "qteasy",
		Usage: "Backtest trading strategies and search their parameter spaces",
		Commands: []*cli.Command{
			{
				Name:  "backtest",
				Usage: "Run one simulation with fixed strategy parameters",
				Flags: []cli.Flag{
					configFlag,
					dataFlag,
					&cli.BoolFlag{
						Name:  "daily",
						Usage: "Expand the trace to every trading day",
					},
				},
				Action: backtestAction,
			},
			{
				Name:  "optimize",
				Usage: "Search the strategy's parameter space",
				Flags: []cli.Flag{
					configFlag,
					dataFlag,
					&cli.IntFlag{
						Name:    "workers",
						Aliases: []string{"w"},
						Usage:   "Parallel evaluators; overrides the config",
					},
				},
				Action: optimizeAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schemas of the config sections",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
