package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/circadianlabs/tempo/adapter/api"
	"github.com/circadianlabs/tempo/internal/engine/refine"
	"github.com/circadianlabs/tempo/internal/scheduling/application"
	"github.com/circadianlabs/tempo/internal/scheduling/domain"
	"github.com/circadianlabs/tempo/pkg/config"
	"github.com/circadianlabs/tempo/pkg/timeutil"
)

var (
	generateInput  string
	generateAsJSON bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a daily schedule from a request file",
	Long: `Generate reads a schedule request (the same JSON the HTTP API
accepts) from a file and prints the resulting day plan.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateInput, "input", "i", "", "path to the schedule request JSON (required)")
	generateCmd.Flags().BoolVar(&generateAsJSON, "json", false, "print the raw schedule as JSON")
	_ = generateCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(generateInput)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	input, warnings, err := api.ParseScheduleRequest(data)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("failed to load config, using defaults", "error", err)
		cfg = &config.Config{}
	}

	generator := newGenerator(ctx, cfg)
	schedule, err := generator.Generate(ctx, input)
	if err != nil {
		return err
	}
	schedule.Warnings = append(warnings, schedule.Warnings...)

	if generateAsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(schedule)
	}

	printSchedule(cmd, schedule)
	return nil
}

// newGenerator wires the orchestrator from the loaded configuration,
// attaching the LLM refiner when it is enabled and a key is present.
func newGenerator(ctx context.Context, cfg *config.Config) *application.Generator {
	gcfg := application.DefaultGeneratorConfig()
	if cfg.SolverTimeLimit > 0 {
		gcfg.SolverTimeLimit = cfg.SolverTimeLimit
	}
	if cfg.DayEndMinutes > 0 {
		gcfg.DayStart = cfg.DayStartMinutes
		gcfg.DayEnd = cfg.DayEndMinutes
	}
	generator := application.NewGenerator(gcfg, logger)

	if cfg.LLMEnabled {
		rcfg := refine.DefaultConfig()
		rcfg.APIKey = cfg.GeminiAPIKey
		rcfg.Model = cfg.GeminiModel
		engine, err := refine.New(ctx, rcfg, logger)
		if err != nil {
			logger.Warn("llm refinement disabled", "error", err)
		} else {
			generator.WithRefiner(engine)
		}
	}
	return generator
}

func printSchedule(cmd *cobra.Command, schedule domain.GeneratedSchedule) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Schedule for %s (%s)\n\n", schedule.TargetDate.Format("2006-01-02"), schedule.Metrics.Status)
	for _, item := range schedule.Items {
		fmt.Fprintf(out, "  %s-%s  %-8s  %s\n", item.StartTime(), item.EndTime(), item.Type, item.Name)
	}

	m := schedule.Metrics
	fmt.Fprintf(out, "\nTasks: %.0f%% scheduled, %d left over\n",
		m.TaskCompletionPct, m.UnscheduledTasks)
	fmt.Fprintf(out, "Productive %s, personal %s, rest %s (balance %.1f)\n",
		timeutil.FormatDuration(m.ProductiveMinutes),
		timeutil.FormatDuration(m.PersonalMinutes),
		timeutil.FormatDuration(m.RestMinutes),
		m.WorkLifeBalance)

	if len(schedule.Warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range schedule.Warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}
}
