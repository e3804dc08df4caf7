// Package cmd provides the root command and CLI setup for mutflow.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"mutflow.dev/pkg/mutflow/internal/adapter"
	"mutflow.dev/pkg/mutflow/internal/controller"
	"mutflow.dev/pkg/mutflow/internal/domain"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

// workflow is built on first use unless a test installed its own.
var workflow domain.Workflow
var metrics *adapter.Metrics

var (
	projectsFlag    string
	workspaceFlag   string
	resetFlag       string
	parallelFlag    int
	ledgerFlag      string
	mutantsDirFlag  string
	reportsDirFlag  string
	majorDirFlag    string
	modelFlags      []string
	focusTestsFlag  bool
	testTimeoutFlag time.Duration
	verboseFlag     bool
)

const rootLongDescription = `mutflow runs mutation testing experiments on Defects4J Java projects.

It checks out every project listed in the projects CSV, compiles it, applies
single-line mutants (proposed by a language model, produced by Major, or loaded
from a generated mutants file) one at a time, runs the tests and appends one
verdict per mutant to a CSV ledger. Reports of PIT and Major can be imported
into the same ledger and scored with the same formula.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mutflow",
		Short:        "Mutation testing workflows for Defects4J projects",
		Long:         rootLongDescription,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringVarP(&projectsFlag, projectsFlagName, "P", viper.GetString(projectsKey), "projects CSV file")
	bindFlagToConfig(flags.Lookup(projectsFlagName), projectsKey)

	flags.StringVarP(&workspaceFlag, workspaceFlagName, "w", viper.GetString(workspaceRootKey), "directory holding the per-worker workspaces")
	bindFlagToConfig(flags.Lookup(workspaceFlagName), workspaceRootKey)

	flags.StringVar(&resetFlag, resetFlagName, viper.GetString(workspaceResetKey), "workspace reset strategy (checkout|snapshot)")
	bindFlagToConfig(flags.Lookup(resetFlagName), workspaceResetKey)

	flags.IntVarP(&parallelFlag, parallelFlagName, "p", viper.GetInt(parallelKey), "number of projects processed in parallel")
	bindFlagToConfig(flags.Lookup(parallelFlagName), parallelKey)

	flags.StringVarP(&ledgerFlag, ledgerFlagName, "l", viper.GetString(ledgerKey), "results ledger CSV file")
	bindFlagToConfig(flags.Lookup(ledgerFlagName), ledgerKey)

	flags.StringVar(&mutantsDirFlag, mutantsDirFlagName, viper.GetString(mutantsDirKey), "directory of generated mutant files")
	bindFlagToConfig(flags.Lookup(mutantsDirFlagName), mutantsDirKey)

	flags.StringVar(&reportsDirFlag, reportsDirFlagName, viper.GetString(reportsDirKey), "directory where tool reports are kept")
	bindFlagToConfig(flags.Lookup(reportsDirFlagName), reportsDirKey)

	flags.StringVar(&majorDirFlag, majorDirFlagName, viper.GetString(majorDirKey), "directory of Major logs, one <project>_<bug> folder each")
	bindFlagToConfig(flags.Lookup(majorDirFlagName), majorDirKey)

	flags.StringArrayVarP(&modelFlags, modelFlagName, "m", viper.GetStringSlice(llmModelsKey), "model used to propose mutants (can be repeated)")
	bindFlagToConfig(flags.Lookup(modelFlagName), llmModelsKey)

	flags.BoolVar(&focusTestsFlag, focusTestsFlagName, viper.GetBool(focusTestsKey), "run only <Class>Test for each mutant")
	bindFlagToConfig(flags.Lookup(focusTestsFlagName), focusTestsKey)

	flags.DurationVar(&testTimeoutFlag, testTimeoutFlagName, viper.GetDuration(testTimeoutKey), "wall-clock bound of one test run")
	bindFlagToConfig(flags.Lookup(testTimeoutFlagName), testTimeoutKey)

	flags.BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(flags.Lookup(verboseFlagName), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

func setup(cmd *cobra.Command) error {
	configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey))

	if workflow != nil {
		return nil
	}

	wf, mt, err := newWorkflow(cmd)
	if err != nil {
		return err
	}

	workflow, metrics = wf, mt

	return nil
}

// newWorkflow wires the local adapters into a workflow using the current configuration.
func newWorkflow(cmd *cobra.Command) (domain.Workflow, *adapter.Metrics, error) {
	strategy, err := domain.ParseResetStrategy(viper.GetString(workspaceResetKey))
	if err != nil {
		return nil, nil, err
	}

	java, err := adapter.NewLocalJavaFileAdapter()
	if err != nil {
		return nil, nil, err
	}

	runner := adapter.NewLocalCommandRunner()
	mt := adapter.NewMetrics()
	provider := viper.GetString(llmProviderKey)

	clients := func(model string) (adapter.LLMClient, error) {
		return adapter.NewLLMClient(adapter.LLMConfig{
			Provider:    provider,
			Model:       model,
			BaseURL:     viper.GetString(llmBaseURLKey),
			Keys:        apiKeys(provider),
			KeyMaxUsage: viper.GetInt(llmKeyMaxUsageKey),
			PerMinute:   viper.GetFloat64(llmRateKey),
			Temperature: float32(viper.GetFloat64(llmTemperatureKey)),
		})
	}

	wf := domain.NewWorkflow(domain.WorkflowDeps{
		FS:      adapter.NewLocalSourceFSAdapter(),
		Build:   adapter.NewLocalDefects4JAdapter(runner, viper.GetString(defects4jBinaryKey)),
		PIT:     adapter.NewLocalPITAdapter(runner, viper.GetString(mavenBinaryKey)),
		Java:    java,
		Ledger:  adapter.NewCSVLedgerStore(),
		Mutants: adapter.NewYAMLMutantStore(),
		UI:      controller.NewUI(cmd, controller.IsTTY(cmd.OutOrStdout())),
		Metrics: mt,
		Clients: clients,
		Workspace: domain.WorkspaceConfig{
			Strategy:        strategy,
			CheckoutTimeout: viper.GetDuration(checkoutTimeoutKey),
			CompileTimeout:  viper.GetDuration(compileTimeoutKey),
			TestTimeout:     viper.GetDuration(testTimeoutKey),
		},
		LLM: domain.LLMSourceConfig{
			Rounds:    viper.GetInt(llmRoundsKey),
			PerRound:  viper.GetInt(llmPerRoundKey),
			WithTests: viper.GetBool(llmWithTestsKey),
		},
		Focus: viper.GetBool(focusTestsKey),
	})

	slog.Debug("Workflow configured", "reset", strategy, "provider", provider, "focus", viper.GetBool(focusTestsKey))

	return wf, mt, nil
}

// flushMetrics writes the metrics textfile when one is configured.
func flushMetrics() {
	if err := metrics.WriteTextfile(viper.GetString(metricsTextfileKey)); err != nil {
		slog.Error("Failed to write metrics", "error", err)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

func configuredPath(key string) m.Path {
	return m.Path(viper.GetString(key))
}
