//go:build !tinygo

package main

import (
	"flag"
	"os"
	"strconv"

	"github.com/golang/glog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"stm32zero-go/boards"
	"stm32zero-go/hal/sim"
	"stm32zero-go/trace"
)

var rootCmd = &cobra.Command{
	Use:   "siosim",
	Short: "Run sio ports over simulated UART lines.",
	Long: `siosim wires sio ports to goroutine-driven UART/DMA simulators. ` +
		`Defaults can be set in .env (SIOSIM_BOARD, SIOSIM_BAUD, SIOSIM_TRACE).`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("board")
		if _, ok := boards.Lookup(name); !ok {
			return &unknownBoard{name}
		}
		return nil
	},
}

type unknownBoard struct{ name string }

func (e *unknownBoard) Error() string { return "unknown board " + strconv.Quote(e.name) }

// Execute loads .env, then runs the selected command. Trace writers are
// flushed through atexit on every exit path.
func Execute() {
	// A missing .env is normal.
	_ = godotenv.Load()

	pf := rootCmd.PersistentFlags()
	pf.String("board", env("SIOSIM_BOARD", boards.Host.Name), "board descriptor sizing the ports")
	pf.Uint32("baud", uint32(envInt("SIOSIM_BAUD", 0)), "line rate to simulate, 0 for unpaced")
	pf.String("trace", os.Getenv("SIOSIM_TRACE"), "record simulator events to this SQLite file (no extension)")
	pf.AddGoFlagSet(flag.CommandLine)

	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	glog.Flush()
	atexit.Exit(0)
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

// setup resolves the common flags into a board, endpoint options and an
// optional tracer.
func setup(cmd *cobra.Command, name string) (boards.Board, sim.Options, *trace.Writer, error) {
	bn, _ := cmd.Flags().GetString("board")
	baud, _ := cmd.Flags().GetUint32("baud")
	path, _ := cmd.Flags().GetString("trace")
	b, _ := boards.Lookup(bn)
	opt := sim.Options{Name: name, Baud: baud}
	if path == "" {
		return b, opt, nil, nil
	}
	w := trace.NewWriter(path)
	if err := w.Init(); err != nil {
		return b, opt, nil, err
	}
	glog.Infof("tracing run %s to %s", w.RunID(), w.Path())
	opt.Tracer = w
	return b, opt, w, nil
}

func report(w *trace.Writer) {
	if w == nil {
		return
	}
	counts, err := w.Counts()
	if err != nil {
		glog.Warningf("trace counts: %v", err)
		return
	}
	for k, n := range counts {
		glog.Infof("trace %-9s %d", k, n)
	}
}
