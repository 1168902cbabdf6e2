//go:build !tinygo

package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"stm32zero-go/hal/sim"
	"stm32zero-go/services/serialmon"
	"stm32zero-go/sio"
	"stm32zero-go/x/conv"
	"stm32zero-go/x/dmamem"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Send lines across a simulated pair and print what the far end sees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		count, _ := cmd.Flags().GetInt("count")
		every, _ := cmd.Flags().GetDuration("every")

		b, opt, w, err := setup(cmd, "dte")
		if err != nil {
			return err
		}
		far := opt
		far.Name = "dce"
		a, z := sim.Pair(1024, opt, far)
		defer a.Close()
		defer z.Close()

		arena := dmamem.NewArena(32 * 1024)
		cfg := b.SIOConfig()
		cfg.Arena = arena
		tx, err := sio.New(a, cfg)
		if err != nil {
			return err
		}
		defer tx.Close()
		rx, err := sio.New(z, cfg)
		if err != nil {
			return err
		}
		defer rx.Close()
		rx.OnError(func(f sio.Fault) {
			glog.Warningf("dce %s fault %s lost=%d", f.Dir, f.Code, f.Lost)
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		mon := serialmon.New(64)
		cancel, err := mon.Watch(ctx, serialmon.Config{Name: "dce", Source: rx, Mode: serialmon.Lines, IdleFlush: 50 * time.Millisecond})
		if err != nil {
			return err
		}
		defer cancel()

		go func() {
			for i := 0; i < count && ctx.Err() == nil; i++ {
				line := []byte("line " + conv.Itoa(i) + "\r\n")
				mon.EmitTX("dte", line)
				if _, err := tx.Write(line); err != nil {
					glog.Warningf("dte write: %v", err)
					return
				}
				time.Sleep(every)
			}
			time.Sleep(100 * time.Millisecond)
			stop()
		}()

		for {
			select {
			case <-ctx.Done():
				st := rx.Stats()
				glog.Infof("dce rx bytes=%d events=%d overruns=%d peak=%d dropped=%d",
					st.RxBytes, st.RxEvents, st.RxOverruns, st.RxPeak, mon.Dropped())
				if w != nil {
					_ = w.Flush()
					report(w)
				}
				return nil
			case ev := <-mon.Events():
				glog.Infof("%s %s %q", ev.Port, ev.Dir, ev.Data)
			}
		}
	},
}

func init() {
	monitorCmd.Flags().Int("count", 10, "lines to send")
	monitorCmd.Flags().Duration("every", 20*time.Millisecond, "gap between lines")
	rootCmd.AddCommand(monitorCmd)
}
