package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	nativert "github.com/wippyai/native-runtime"
	"github.com/wippyai/native-runtime/platform"
	"github.com/wippyai/native-runtime/runtime"
)

func main() {
	root := &cobra.Command{
		Use:          "run",
		Short:        "Exercise the native-runtime lifecycle core",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetBool("interactive") {
				return runInteractive()
			}
			return runDemo(
				viper.GetInt("workers"),
				viper.GetDuration("work"),
				viper.GetString("log-level"),
			)
		},
	}

	flags := root.Flags()
	flags.Int("workers", 4, "number of worker threads, one instance each")
	flags.Duration("work", 2*time.Second, "how long each worker runs")
	flags.String("log-level", "info", "zap log level (debug, info, warn, error)")
	flags.BoolP("interactive", "i", false, "interactive registry inspector")

	viper.SetEnvPrefix("NATIVERT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// runDemo attaches one instance per worker thread, streams interrupts at
// every live instance through the dispatcher, and relies on the thread-exit
// hook for implicit detach.
func runDemo(workers int, work time.Duration, level string) error {
	log, err := newLogger(level)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	nativert.SetLogger(log)
	core := runtime.New(runtime.Config{Logger: log})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			platform.RunPinned(func() {
				st := core.AttachOrCreate()

				var hits atomic.Int32
				st.SetInterruptHandler(func(*runtime.State) {
					hits.Add(1)
				})

				deadline := time.Now().Add(work)
				for time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}

				log.Info("worker done",
					zap.Int("worker", n),
					zap.Uint64("instance", st.ID()),
					zap.Int32("interrupts", hits.Load()),
					zap.Bool("main", core.IsMainThread()))
				// RunPinned's exit hooks perform the implicit detach.
			})
		}(w)
	}

	stop := make(chan struct{})
	go func() {
		tick := time.NewTicker(200 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				for _, tid := range liveThreads(core) {
					core.Interrupt(tid)
				}
			}
		}
	}()

	wg.Wait()
	close(stop)

	log.Info("all workers detached", zap.Int("alive", core.AliveCount()))
	return core.Close()
}

// liveThreads collects the creating-thread ids of all live instances from
// the registry snapshot, keeping the registry lock out of the ticker path.
func liveThreads(core *runtime.Core) []uint64 {
	snap := core.Snapshot()
	tids := make([]uint64, 0, len(snap))
	for _, s := range snap {
		tids = append(tids, s.CreatingThread())
	}
	return tids
}
