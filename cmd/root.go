// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mgrotte/treexport/internal/browser"
	"github.com/mgrotte/treexport/internal/config"
	"github.com/mgrotte/treexport/internal/expander"
	"github.com/mgrotte/treexport/internal/exporter"
	"github.com/mgrotte/treexport/internal/observability"
	"github.com/mgrotte/treexport/internal/orchestrator"
)

// NewRootCommand builds a fresh root command instance. Each invocation gets
// its own command and viper so flag state never leaks between executions.
func NewRootCommand() *cobra.Command {
	var (
		cfgFile string
		dryRun  bool
		cfg     *config.Config
	)

	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "treexport <workspace-name>",
		Short: "Bulk-exports every item of a workspace tree to PDF through a signed-in browser.",
		Long: `treexport drives a locally installed browser, using its existing signed-in
profile, to open the named workspace, expand its navigation tree completely,
and export every item to PDF through the host's own print flow.

The workspace name is matched as a substring against the directory listing;
the first match wins.`,
		Args:    cobra.ExactArgs(1),
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(v, cfgFile); err != nil {
				return err
			}

			loaded, err := config.Load(v)
			if err != nil {
				// Fall back to a console logger so the failure is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "treexport"})
				return err
			}
			cfg = loaded

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Info("Starting treexport.", zap.String("version", Version))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, cfg, args[0], dryRun)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "enumerate the fully expanded tree without exporting anything")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.SilenceUsage = true

	return rootCmd
}

// runExport wires the session, expansion engine, export pipeline, and run
// controller together and executes one run.
func runExport(cmd *cobra.Command, cfg *config.Config, workspaceName string, dryRun bool) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	session, err := browser.NewSession(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser session: %w", err)
	}
	// The run controller closes the session at the end of Run; this close
	// covers any wiring failure between here and there. Close is idempotent,
	// so the second invocation on the normal path is a no-op.
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if cerr := session.Close(closeCtx); cerr != nil {
			logger.Warn("Error during session teardown.", zap.Error(cerr))
		}
	}()

	engine := expander.New(session, logger, cfg.Timeouts.SettleInterval, cfg.Timeouts.AffordanceWait)
	pipeline := exporter.New(session, logger, exporter.Config{
		MenuWait:  cfg.Timeouts.MenuWait,
		PopupWait: cfg.Timeouts.PopupWait,
		PrintWait: cfg.Timeouts.PrintWait,
		PDFToken:  cfg.Workspace.PDFMenuToken,
	})

	controller, err := orchestrator.New(cfg, logger, session, engine, pipeline)
	if err != nil {
		return err
	}
	controller.SetDryRun(dryRun)

	summary, err := controller.Run(ctx, workspaceName)
	if err != nil {
		return err
	}

	if !dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d item(s), skipped %d.\n", summary.Exported, summary.Skipped)
	}
	return nil
}

// initializeConfig reads the config file and environment variables into v.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("TREEXPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment variables apply.
	}
	return nil
}
