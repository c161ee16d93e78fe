// ABOUTME: serve and discover commands
// ABOUTME: Runs the HTTP speaker service or lists speakers found over mDNS
package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zenkiosk/kiosk-speaker/internal/discovery"
	"github.com/zenkiosk/kiosk-speaker/pkg/tts"
)

var (
	discoverTimeout time.Duration

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Accept utterances over HTTP and stream state changes on /events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			player, err := newPlayer()
			if err != nil {
				return err
			}
			defer player.Close()

			return player.Serve(cmd.Context(), tts.NewClient(cfg.TTS))
		},
	}

	discoverCmd = &cobra.Command{
		Use:   "discover",
		Short: "List kiosk speakers advertised on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			speakers, err := discovery.Browse(cmd.Context(), discoverTimeout)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(speakers) == 0 {
				fmt.Fprintln(out, "No speakers found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tADDRESS\tVERSION")
			for _, s := range speakers {
				fmt.Fprintf(w, "%s\t%s:%d\t%s\n", s.Name, s.Host, s.Port, s.Version)
			}
			return w.Flush()
		},
	}
)

func init() {
	serveCmd.Flags().Int("port", 8931, "listen port")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 3*time.Second, "how long to listen for answers")
}
