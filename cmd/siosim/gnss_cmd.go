//go:build !tinygo

package main

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"stm32zero-go/hal/sim"
	"stm32zero-go/services/gnss"
	"stm32zero-go/sio"
	"stm32zero-go/x/dmamem"
)

// Canned receiver output: a fix, satellites in view, a position report.
var nmea = []string{
	"$GPGGA,115739.00,4158.8441367,N,09147.4416929,W,4,13,0.9,255.747,M,-32.00,M,01,0000*6E",
	"$GPGSV,3,1,09,07,14,317,22,08,31,284,25,10,32,133,39,16,85,232,29*7F",
	"$GPRMC,203522.00,A,5109.0262308,N,11401.8407342,W,0.004,133.4,010622,0.0,E,D*2B",
}

var gnssCmd = &cobra.Command{
	Use:   "gnss",
	Short: "Feed NMEA sentences to the GNSS receiver over a simulated pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		rounds, _ := cmd.Flags().GetInt("rounds")

		b, opt, w, err := setup(cmd, "gps")
		if err != nil {
			return err
		}
		host := opt
		host.Name = "mcu"
		a, z := sim.Pair(1024, opt, host)
		defer a.Close()
		defer z.Close()

		cfg := b.SIOConfig()
		cfg.Arena = dmamem.NewArena(32 * 1024)
		dev, err := sio.New(a, cfg)
		if err != nil {
			return err
		}
		defer dev.Close()
		port, err := sio.New(z, cfg)
		if err != nil {
			return err
		}

		rcv := gnss.New(port, gnss.Config{LineTimeout: 200 * time.Millisecond})
		done := make(chan error, 1)
		go func() { done <- rcv.Run(context.Background()) }()

		for i := 0; i < rounds; i++ {
			for _, s := range nmea {
				if _, err := dev.WriteString(s + "\r\n"); err != nil {
					return err
				}
			}
		}
		dev.FlushWait(time.Second)
		time.Sleep(50 * time.Millisecond)
		port.Close()
		<-done

	drain:
		for {
			select {
			case f := <-rcv.Fixes():
				glog.Infof("%s valid=%t lat=%.5f lon=%.5f alt=%d sats=%d",
					f.Sentence, f.Valid, f.Latitude, f.Longitude, f.Altitude, f.Satellites)
			default:
				break drain
			}
		}
		st := rcv.Stats()
		glog.Infof("gnss lines=%d fixes=%d unsupported=%d bad=%d overlong=%d dropped=%d",
			st.Lines, st.Fixes, st.Unsupported, st.BadChecksum, st.Overlong, st.Dropped)
		if w != nil {
			_ = w.Flush()
			report(w)
		}
		return nil
	},
}

func init() {
	gnssCmd.Flags().Int("rounds", 3, "times to replay the canned sentences")
	rootCmd.AddCommand(gnssCmd)
}
