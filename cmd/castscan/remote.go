package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/castscan/internal/discovery"
	"github.com/muurk/castscan/internal/rpc"
	"github.com/muurk/castscan/internal/ui"
	"github.com/muurk/castscan/internal/urls"
)

// Remote-control flags, shared by play, stop, pause and players
var (
	remoteTimeout  time.Duration
	remoteUser     string
	remotePassword string
	remoteRetries  int
)

func init() {
	for _, c := range []*cobra.Command{playCmd, stopCmd, pauseCmd, playersCmd} {
		c.Flags().DurationVar(&remoteTimeout, "timeout", rpc.DefaultTimeout, "Request timeout")
		c.Flags().StringVar(&remoteUser, "username", "", "HTTP username if the player's web server requires one")
		c.Flags().StringVar(&remotePassword, "password", "", "HTTP password")
		c.Flags().IntVar(&remoteRetries, "retries", rpc.DefaultMaxRetries, "Retries on timeouts and refused connections")
		rootCmd.AddCommand(c)
	}
}

var playCmd = &cobra.Command{
	Use:   "play <url>",
	Short: "Play a media URL on the selected device",
	Example: `  castscan play http://192.168.1.10:8000/movie.mkv
  castscan play https://example.com/stream.m3u8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mediaURL := strings.TrimSpace(args[0])
		if mediaURL == "" {
			return fmt.Errorf("url is required")
		}
		return withRemote(cmd, "Play", func(ctx context.Context, c *rpc.Client, d *discovery.Device, p *ui.Printer) error {
			if err := c.PlayURL(ctx, mediaURL); err != nil {
				return err
			}
			p.PrintSuccess("Playback started",
				ui.Param{Key: "Device", Value: d.Name()},
				ui.Param{Key: "URL", Value: mediaURL},
			)
			return nil
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback on the selected device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRemote(cmd, "Stop", func(ctx context.Context, c *rpc.Client, d *discovery.Device, p *ui.Printer) error {
			if err := c.Stop(ctx); err != nil {
				return err
			}
			p.PrintSuccess("Playback stopped", ui.Param{Key: "Device", Value: d.Name()})
			return nil
		})
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Toggle pause on the selected device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRemote(cmd, "Pause", func(ctx context.Context, c *rpc.Client, d *discovery.Device, p *ui.Printer) error {
			speed, err := c.Pause(ctx)
			if err != nil {
				return err
			}
			state := "Resumed"
			if speed == 0 {
				state = "Paused"
			}
			p.PrintSuccess(state, ui.Param{Key: "Device", Value: d.Name()})
			return nil
		})
	},
}

var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "List active players on the selected device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRemote(cmd, "Players", func(ctx context.Context, c *rpc.Client, d *discovery.Device, p *ui.Printer) error {
			players, err := c.GetActivePlayers(ctx)
			if err != nil {
				return err
			}
			if len(players) == 0 {
				p.PrintWarning("Nothing is playing", ui.Param{Key: "Device", Value: d.Name()})
				return nil
			}
			result := ui.NewSuccessResult(fmt.Sprintf("%d active player(s)", len(players))).SetWidth(p.Width())
			for _, pl := range players {
				result.AddDetail("Player "+strconv.Itoa(pl.PlayerID), pl.Type)
			}
			p.Println(result.Render())
			return nil
		})
	},
}

// withRemote runs fn against a client for the selected device and prints a
// failure box with the short message and hint on error.
func withRemote(cmd *cobra.Command, action string, fn func(context.Context, *rpc.Client, *discovery.Device, *ui.Printer) error) error {
	a, err := newApp(scanOverrides{})
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.selectedDevice()
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())

	client, err := rpc.NewClientForDevice(d)
	if err != nil {
		p.PrintError(action+" failed on "+d.Name(), errors.New(rpc.GetShortErrorMessage(err)), hintLines(err)...)
		return reportedError{err}
	}
	client.SetTimeout(remoteTimeout)
	client.SetRetry(remoteRetries, rpc.DefaultRetryDelay)
	if remoteUser != "" {
		client.SetAuth(remoteUser, remotePassword)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), remoteTimeout*time.Duration(remoteRetries+1)+rpc.DefaultMaxRetryDelay)
	defer cancel()

	if err := fn(ctx, client, d, p); err != nil {
		p.PrintError(action+" failed on "+d.Name(), errors.New(rpc.GetShortErrorMessage(err)), hintLines(err)...)
		return reportedError{err}
	}
	return nil
}

// hintLines keeps the bullet points of a troubleshooting hint
func hintLines(err error) []string {
	if errors.Is(err, rpc.ErrNoActivePlayer) {
		return nil
	}
	if errors.Is(err, rpc.ErrUnsupportedDevice) {
		return []string{
			"Only remote-control players accept play, stop and pause",
			"Run 'castscan scan' and select a device of kind remote-control",
		}
	}
	var tips []string
	for _, line := range strings.Split(rpc.GetTroubleshootingHint(err), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "Troubleshooting:" {
			continue
		}
		tips = append(tips, strings.TrimSpace(strings.TrimPrefix(line, "•")))
	}
	if rpc.IsRemoteError(err) {
		tips = append(tips, "API reference: "+urls.JSONRPCReference)
	} else {
		tips = append(tips, "Player setup: "+urls.RemoteControlSettings)
	}
	return tips
}
