// File: cmd/probe.go
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/erppilot/api/schemas"
	"github.com/xkilldash9x/erppilot/internal/browser"
	"github.com/xkilldash9x/erppilot/internal/observability"
	"github.com/xkilldash9x/erppilot/internal/probe"
)

// probeConcurrency caps simultaneous browser sessions during a multi-target
// probe so a long connection list does not exhaust the host.
const probeConcurrency = 4

var probeCmd = &cobra.Command{
	Use:   "probe <connection.json> [connection.json...]",
	Short: "Check that connections are reachable and look like login pages.",
	Long: `Probe opens each connection's base URL in its own browser session and
reports whether the target responds and whether a login form is present. No
script steps are executed and no credentials are submitted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory := browser.NewFactory(cfg, logger)
	prober := probe.New(cfg, logger, factory)

	type namedReport struct {
		Connection string               `json:"connection"`
		Report     *schemas.ProbeReport `json:"report"`
	}

	var (
		mu      sync.Mutex
		reports = make([]namedReport, 0, len(args))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for _, path := range args {
		g.Go(func() error {
			conn, err := loadConnection(path)
			if err != nil {
				return err
			}
			report := prober.Probe(gctx, conn)
			mu.Lock()
			reports = append(reports, namedReport{Connection: conn.Name, Report: report})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := printJSON(reports); err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if !r.Report.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d connections failed the probe", failed, len(reports))
	}
	return nil
}
