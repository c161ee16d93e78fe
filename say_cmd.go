// ABOUTME: Commands that speak a single utterance
// ABOUTME: say (TTS), ask (chat backend then TTS) and play (local encoded file)
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/zenkiosk/kiosk-speaker/internal/app"
	"github.com/zenkiosk/kiosk-speaker/pkg/chat"
	"github.com/zenkiosk/kiosk-speaker/pkg/tts"
)

var (
	emotion   string
	playCodec string

	sayCmd = &cobra.Command{
		Use:   "say TEXT...",
		Short: "Synthesize TEXT and play it as it streams",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return speak(cmd.Context(), strings.Join(args, " "))
		},
	}

	askCmd = &cobra.Command{
		Use:   "ask MESSAGE...",
		Short: "Send MESSAGE to the chat backend and speak the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reply, err := chat.NewClient(cfg.Chat).Reply(ctx, strings.Join(args, " "), emotion)
			if err != nil {
				return err
			}
			if !useTUI {
				fmt.Fprintln(cmd.OutOrStdout(), reply)
			}
			return speak(ctx, reply)
		},
	}

	playCmd = &cobra.Command{
		Use:   "play FILE|-",
		Short: "Play an encoded audio file (or stdin) through the streaming pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			codec := playCodec
			if codec == "" {
				codec = codecFromPath(name)
			}
			if codec != "" {
				cfg.Audio.Codec = codec
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return run(cmd.Context(), name, func(ctx context.Context) (io.ReadCloser, error) {
				if name == "-" {
					return io.NopCloser(cmd.InOrStdin()), nil
				}
				return os.Open(name)
			})
		},
	}
)

func init() {
	askCmd.Flags().StringVarP(&emotion, "emotion", "e", "neutral", "emotion detected on the visitor's face")
	playCmd.Flags().StringVar(&playCodec, "codec", "", "stream codec (default: from the file extension, else audio.codec)")
}

func speak(ctx context.Context, text string) error {
	client := tts.NewClient(cfg.TTS)
	return run(ctx, text, func(ctx context.Context) (io.ReadCloser, error) {
		return client.Stream(ctx, text)
	})
}

func run(ctx context.Context, label string, open app.OpenFunc) error {
	player, err := newPlayer()
	if err != nil {
		return err
	}
	defer func() {
		if err := player.Close(); err != nil {
			log.Warn("Close failed", "error", err)
		}
	}()

	err = player.Play(ctx, label, open)
	player.Wait(ctx)
	return finish(err)
}

func codecFromPath(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "mp3"
	case ".flac":
		return "flac"
	case ".opus", ".ogg":
		return "ogg-opus"
	case ".pcm", ".raw":
		return "pcm"
	default:
		return ""
	}
}
