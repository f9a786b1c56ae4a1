package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/genricoloni/spotline/internal/config"
	"github.com/genricoloni/spotline/internal/domain"
	"github.com/genricoloni/spotline/internal/fetcher"
	"github.com/genricoloni/spotline/internal/lrc"
	"github.com/genricoloni/spotline/internal/monitor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const oneShotTimeout = 10 * time.Second

// withBus opens the session bus for a one-shot command
func withBus(flags *globalFlags, fn func(ctx context.Context, logger *zap.Logger, conn monitor.DBusClient) error) error {
	logger, err := newLogger(flags.debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client, err := monitor.NewStdDBusClient()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
	defer cancel()
	return fn(ctx, logger, client)
}

func newPlayersCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "List supported players on the session bus",
		Long: `List the supported MPRIS players currently on the session bus with
their playback status. The player the daemon would follow is marked with *.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBus(flags, func(ctx context.Context, logger *zap.Logger, conn monitor.DBusClient) error {
				candidates, err := monitor.NewWatcher(logger, conn).ListCandidates(ctx)
				if err != nil {
					return err
				}
				return printPlayers(cmd.OutOrStdout(), monitor.Rank(candidates, ""))
			})
		},
	}
}

// printPlayers writes ranked candidates as a table, marking the first one
func printPlayers(out io.Writer, ranked []domain.PlayerCandidate) error {
	if len(ranked) == 0 {
		_, err := fmt.Fprintln(out, domain.NoMusicLabel)
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, candidate := range ranked {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", marker, candidate.Name, candidate.Status)
	}
	return tw.Flush()
}

func newControlCmd(flags *globalFlags) *cobra.Command {
	var player string

	cmd := &cobra.Command{
		Use:       "control <play|pause|playpause|next|prev>",
		Short:     "Send a transport command to a player",
		Long:      `Send a transport command to the player the daemon would follow, or to --player.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"play", "pause", "playpause", "next", "prev"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, ok := domain.ParseAction(args[0])
			if !ok {
				return fmt.Errorf("unknown action %q", args[0])
			}

			return withBus(flags, func(ctx context.Context, logger *zap.Logger, conn monitor.DBusClient) error {
				name := player
				if name == "" {
					selected, err := monitor.NewWatcher(logger, conn).SelectPlayer(ctx)
					if err != nil {
						return err
					}
					name = selected.Name
				} else if !strings.HasPrefix(name, monitor.MprisPrefix) {
					name = monitor.MprisPrefix + name
				}

				if err := monitor.NewConnector(logger, conn).Invoke(ctx, name, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", action, name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&player, "player", "", "bus name of the player (e.g. spotify)")
	return cmd
}

func newLyricsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lyrics <artist> <title>",
		Short: "Fetch and print lyrics for a track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(flags.debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := config.NewAppConfig(logger, flags.options())
			if err != nil {
				return err
			}

			client := fetcher.NewLRCLibClient(logger, cfg.GetLyricsURL(), cfg.GetHTTPTimeout())
			track := domain.TrackMetadata{Artist: args[0], Title: args[1]}

			result, err := client.Fetch(cmd.Context(), track.Artist, track.Title)
			if err != nil && !errors.Is(err, domain.ErrLyricsNotFound) {
				return err
			}
			return printLyrics(cmd.OutOrStdout(), track, result)
		},
	}
}

// printLyrics writes synced lines with their timestamps, else the plain
// lyrics, else the track label
func printLyrics(out io.Writer, track domain.TrackMetadata, result domain.LyricsResult) error {
	if lines := lrc.Parse(result.Synced); len(lines) > 0 {
		for _, line := range lines {
			if _, err := fmt.Fprintf(out, "%s %s\n", formatTimestamp(line.TimeMs), line.Text); err != nil {
				return err
			}
		}
		return nil
	}

	if plain := strings.TrimSpace(result.Plain); plain != "" {
		_, err := fmt.Fprintln(out, plain)
		return err
	}

	_, err := fmt.Fprintln(out, track.Label())
	return err
}

// formatTimestamp renders milliseconds as [mm:ss.cc]
func formatTimestamp(ms int64) string {
	return fmt.Sprintf("[%02d:%02d.%02d]", ms/60000, ms/1000%60, ms%1000/10)
}
