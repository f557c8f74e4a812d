// File: cmd/run.go
package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/erppilot/api/schemas"
	"github.com/xkilldash9x/erppilot/internal/browser"
	"github.com/xkilldash9x/erppilot/internal/engine"
	"github.com/xkilldash9x/erppilot/internal/observability"
	"github.com/xkilldash9x/erppilot/internal/synth"
)

var (
	runScriptPath     string
	runTaskText       string
	runConnectionPath string
	runOutputPath     string
	runScreenshotDir  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute an automation script against a connection.",
	Long: `Run executes an automation script against the portal described by the
connection file. The script comes either from --script (a JSON file) or is
synthesized from a natural-language --task description. The resulting
TaskResult is printed as JSON, or written to --out when given.`,
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVarP(&runScriptPath, "script", "s", "", "path to the automation script JSON file")
	runCmd.Flags().StringVarP(&runTaskText, "task", "t", "", "natural-language task to synthesize a script from")
	runCmd.Flags().StringVarP(&runConnectionPath, "connection", "n", "", "path to the connection JSON file (required)")
	runCmd.Flags().StringVarP(&runOutputPath, "out", "o", "", "write the TaskResult JSON to this file instead of stdout")
	runCmd.Flags().StringVar(&runScreenshotDir, "screenshot-dir", "", "also decode captured screenshots into this directory as PNG files")
	runCmd.MarkFlagRequired("connection")
	runCmd.MarkFlagsMutuallyExclusive("script", "task")
	rootCmd.AddCommand(runCmd)
}

func runTask(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()

	conn, err := loadConnection(runConnectionPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	script, err := resolveScript(ctx, conn)
	if err != nil {
		return err
	}

	factory := browser.NewFactory(cfg, logger)
	result := engine.New(cfg, logger, factory).Execute(ctx, script, conn)

	if err := emitResult(result); err != nil {
		return err
	}
	if runScreenshotDir != "" {
		if err := dumpScreenshots(result, runScreenshotDir); err != nil {
			return err
		}
	}
	if !result.Success {
		return fmt.Errorf("task failed: %s", result.ErrorMessage)
	}
	return nil
}

// resolveScript loads the script file, or synthesizes one when only a task
// description was given.
func resolveScript(ctx context.Context, conn schemas.Connection) (*schemas.AutomationScript, error) {
	logger := observability.GetLogger()

	switch {
	case runScriptPath != "":
		return loadScript(runScriptPath)
	case runTaskText != "":
		client, err := synth.NewClient(cfg.Synthesizer, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Synthesizing script from task description.", zap.String("connection", conn.Name))
		return client.Synthesize(ctx, runTaskText, conn)
	default:
		return nil, fmt.Errorf("either --script or --task is required")
	}
}

// dumpScreenshots decodes the run's base64 screenshots into numbered PNG
// files under dir.
func dumpScreenshots(result *schemas.TaskResult, dir string) error {
	if len(result.Screenshots) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	for i, encoded := range result.Screenshots {
		img, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("screenshot %d is not valid base64: %w", i+1, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("screenshot-%02d.png", i+1))
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

func emitResult(result *schemas.TaskResult) error {
	if runOutputPath == "" {
		return printJSON(result)
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(runOutputPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return nil
}
