//go:build !tinygo

package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"stm32zero-go/hal/sim"
	"stm32zero-go/selftest"
	"stm32zero-go/sio"
	"stm32zero-go/x/dmamem"
)

var errSuiteFailed = errors.New("self-test failed")

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the runtime check suite over a simulated loopback port",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		b, opt, w, err := setup(cmd, "loop")
		if err != nil {
			return err
		}
		t := sim.Loopback(4096, opt)
		defer t.Close()

		cfg := b.SIOConfig()
		cfg.Arena = dmamem.NewArena(32 * 1024)
		p, err := sio.New(t, cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		out := func(line []byte) {
			os.Stdout.Write(line)
			os.Stdout.WriteString("\n")
		}
		r := selftest.Run(p, out, selftest.Options{Loopback: true})
		if w != nil {
			_ = w.Flush()
			report(w)
		}
		if _, fail := r.Counts(); fail > 0 {
			return errSuiteFailed
		}
		return nil
	},
}

func init() { rootCmd.AddCommand(selftestCmd) }
