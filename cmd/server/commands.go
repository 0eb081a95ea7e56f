package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/cogserver/internal/api"
	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/Harshitk-cp/cogserver/internal/buildconfig"
	"github.com/Harshitk-cp/cogserver/internal/config"
	"github.com/Harshitk-cp/cogserver/internal/request/atomfile"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "cogserver",
	Short:         "Cognitive server: an atom table driven by a cycle loop, mind agents and a command console",
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Load()
	},
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cognitive loop and serve the REST and console API",
	RunE:  runServe,
}

var (
	runCycles int
	runLoad   []string
	runExec   []string
	runThen   []string
	runPrint  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load atom files, run a fixed number of cycles and exit",
	Example: `  cogserver run --load taxonomy.yaml --cycles 20 --print
  cogserver run --exec "cache-open ./atoms" --exec cache-load --cycles 100 --then cache-store`,
	RunE: runBatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the server version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), buildconfig.String())
	},
}

func init() {
	runCmd.Flags().IntVar(&runCycles, "cycles", 1, "number of cycles to run, 0 to run until interrupted")
	runCmd.Flags().StringSliceVar(&runLoad, "load", nil, "atom file to load before the first cycle (repeatable)")
	runCmd.Flags().StringArrayVar(&runExec, "exec", nil, "console command to run before the first cycle (repeatable)")
	runCmd.Flags().StringArrayVar(&runThen, "then", nil, "console command to run after the last cycle (repeatable)")
	runCmd.Flags().BoolVar(&runPrint, "print", false, "print the atom table after the last cycle")

	rootCmd.AddCommand(serveCmd, runCmd, versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(config.LogLevel())
	if err != nil {
		return errors.Wrap(err, "create logger")
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, logger)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		return err
	}

	app := api.NewApp(rt.srv, rt.proc, api.Options{
		APIKey:         config.APIKey(),
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
		RequestTimeout: config.RequestTimeout(),
		Agents:         rt.agents,
	}, logger.Named("http"))

	addr := config.ServerAddr()
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	defer cancelLoop()
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- rt.srv.ServerLoop(loopCtx)
	}()

	httpErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErr <- err
		}
	}()

	// A shutdown command stops the loop; a signal or a dead listener stops
	// it here.
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
		rt.srv.Stop()
		cancelLoop()
		runErr = <-loopDone
	case runErr = <-loopDone:
		logger.Info("cognitive loop stopped, shutting down server")
	case err := <-httpErr:
		logger.Error("server failed", zap.Error(err))
		rt.srv.Stop()
		cancelLoop()
		<-loopDone
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	rt.close()
	logger.Info("server stopped", zap.Int64("cycles", rt.srv.CycleCount()))
	return runErr
}

func runBatch(cmd *cobra.Command, args []string) error {
	if runCycles < 0 {
		return errors.Newf("--cycles must not be negative, got %d", runCycles)
	}
	logger, err := newLogger(config.LogLevel())
	if err != nil {
		return errors.Wrap(err, "create logger")
	}
	defer func() { _ = logger.Sync() }()

	rt, err := newRuntime(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer rt.close()

	table := rt.srv.AtomSpace()
	for _, path := range runLoad {
		f, err := atomfile.ParseFile(path)
		if err != nil {
			return err
		}
		added, err := f.Apply(table)
		if err != nil {
			return errors.Wrapf(err, "load %s", path)
		}
		logger.Info("loaded atom file", zap.String("path", path), zap.Int("new_atoms", added))
	}

	if err := execAll(rt, runExec); err != nil {
		return err
	}
	if err := runCyclesUntilInterrupted(cmd.Context(), rt, runCycles); err != nil {
		return err
	}
	if err := execAll(rt, runThen); err != nil {
		return err
	}

	if runPrint {
		return table.Print(cmd.OutOrStdout(), atomspace.TypeAtom, true)
	}
	return nil
}

// runCyclesUntilInterrupted runs n cycles. With n of 0 it runs until an
// interrupt, a cancelled ctx or a shutdown issued on the loop.
func runCyclesUntilInterrupted(ctx context.Context, rt *runtime, n int) error {
	if n > 0 {
		return rt.srv.RunCycles(n)
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finished := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		select {
		case <-ctx.Done():
			rt.srv.Stop()
		case <-finished:
		}
	}()

	err := rt.srv.RunCycles(0)
	close(finished)
	<-watched
	return err
}

// execAll runs each console command in its own cycle and waits for any bulk
// operation it starts.
func execAll(rt *runtime, lines []string) error {
	for _, line := range lines {
		rt.srv.PushRequest(rt.proc.Command(line, printer{}))
		if err := rt.srv.RunCycles(1); err != nil {
			return err
		}
		rt.srv.WaitBulk()
	}
	return nil
}
