// ABOUTME: remote command group for driving another speaker over the network
// ABOUTME: Resolves the speaker by --addr or mDNS, then speaks, cancels, or watches events
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenkiosk/kiosk-speaker/internal/client"
	"github.com/zenkiosk/kiosk-speaker/internal/discovery"
	"github.com/zenkiosk/kiosk-speaker/internal/server"
)

var (
	remoteAddr string

	remoteCmd = &cobra.Command{
		Use:   "remote",
		Short: "Control a speaker running `serve` elsewhere on the network",
	}

	remoteSayCmd = &cobra.Command{
		Use:   "say TEXT...",
		Short: "Speak TEXT on the remote speaker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(cmd.Context())
			if err != nil {
				return err
			}
			id, err := c.Speak(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	remoteCancelCmd = &cobra.Command{
		Use:   "cancel",
		Short: "Stop whatever the remote speaker is saying",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := remoteClient(cmd.Context())
			if err != nil {
				return err
			}
			err = c.Cancel(cmd.Context())
			if errors.Is(err, client.ErrNothingPlaying) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing playing")
				return nil
			}
			return err
		},
	}

	remoteStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the remote speaker's current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := remoteClient(cmd.Context())
			if err != nil {
				return err
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state:   %s\n", st.State)
			if st.Session != "" {
				fmt.Fprintf(out, "session: %s\n", st.Session)
				fmt.Fprintf(out, "played:  %d/%d (dropped %d, underruns %d)\n", st.Played, st.Received, st.Dropped, st.Underruns)
			}
			if st.Error != "" {
				fmt.Fprintf(out, "error:   %s\n", st.Error)
			}
			return nil
		},
	}

	remoteWatchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print the remote speaker's session events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := remoteClient(ctx)
			if err != nil {
				return err
			}
			events, err := c.Watch(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for ev := range events {
				switch ev.Type {
				case server.EventState:
					fmt.Fprintf(out, "%s %s %s -> %s\n", ev.Time.Format(time.TimeOnly), short(ev.Session), ev.From, ev.To)
				case server.EventError:
					fmt.Fprintf(out, "%s %s error: %s\n", ev.Time.Format(time.TimeOnly), short(ev.Session), ev.Error)
				default:
					fmt.Fprintf(out, "%s %s %s %s\n", ev.Time.Format(time.TimeOnly), short(ev.Session), ev.Type, ev.Text)
				}
			}
			return nil
		},
	}
)

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteAddr, "addr", "", "speaker host:port (default: first speaker found over mDNS)")
	remoteCmd.AddCommand(remoteSayCmd, remoteCancelCmd, remoteStatusCmd, remoteWatchCmd)
	rootCmd.AddCommand(remoteCmd)
}

func remoteClient(ctx context.Context) (*client.Client, error) {
	addr := remoteAddr
	if addr == "" {
		speakers, err := discovery.Browse(ctx, 3*time.Second)
		if err != nil {
			return nil, err
		}
		if len(speakers) == 0 {
			return nil, errors.New("no speaker found on the network; pass --addr")
		}
		addr = fmt.Sprintf("%s:%d", speakers[0].Host, speakers[0].Port)
	}
	return client.NewClient(client.Config{Addr: addr}), nil
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
