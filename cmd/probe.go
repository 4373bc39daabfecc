package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/smazurov/smartcam/internal/api/models"
	"github.com/smazurov/smartcam/internal/logging"
	"github.com/spf13/cobra"
)

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var url, dev, username, password string
	var logLines int

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Print the state of a running endpoint",
		Long:  `Queries a running smartcam server for capabilities, formats, streaming parameters and counters, then prints recent log lines.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := newAPIClient(url, dev, username, password)
			return runProbe(cmd.Context(), client, cmd.OutOrStdout(), logLines)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&url, "url", "http://localhost:8090", "smartcam server URL")
	flags.StringVarP(&dev, "device", "d", "video0", "Endpoint name")
	flags.StringVar(&username, "username", "admin", "Basic auth username")
	flags.StringVar(&password, "password", "password", "Basic auth password")
	flags.IntVarP(&logLines, "logs", "l", 20, "Recent log lines to print, 0 to skip")
	return cmd
}

func runProbe(ctx context.Context, c *apiClient, out io.Writer, logLines int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var caps models.CapabilityData
	if err := c.do(ctx, http.MethodGet, c.devicePath("/capabilities"), nil, &caps); err != nil {
		return err
	}
	fmt.Fprintf(out, "Device:       %s\n", c.device)
	fmt.Fprintf(out, "Driver:       %s %s (%s)\n", caps.Driver, caps.Version, caps.BusInfo)
	fmt.Fprintf(out, "Capabilities: %s\n", strings.Join(caps.CapabilityNames, ", "))

	var active models.FormatData
	if err := c.do(ctx, http.MethodGet, c.devicePath("/format"), nil, &active); err != nil {
		return err
	}
	fmt.Fprintln(out, "Formats:")
	for i := 0; ; i++ {
		var desc models.FormatDescData
		if err := c.do(ctx, http.MethodGet, c.devicePath("/formats/"+strconv.Itoa(i)), nil, &desc); err != nil {
			break
		}
		marker := " "
		if desc.FourCC == active.Pix.FourCC {
			marker = "*"
		}
		fmt.Fprintf(out, "  %s [%d] %s\n", marker, desc.Index, desc.FourCC)
	}
	fmt.Fprintf(out, "Active:       %dx%d %s, %d bytes/line, %d bytes/frame\n",
		active.Pix.Width, active.Pix.Height, active.Pix.FourCC, active.Pix.BytesPerLine, active.Pix.SizeImage)

	var parm models.ParmData
	if err := c.do(ctx, http.MethodGet, c.devicePath("/params"), nil, &parm); err == nil {
		fmt.Fprintf(out, "Interval:     %d/%d s\n", parm.TimePerFrame.Numerator, parm.TimePerFrame.Denominator)
	}

	var stats models.DeviceStatsData
	if err := c.do(ctx, http.MethodGet, c.devicePath("/stats"), nil, &stats); err == nil {
		fmt.Fprintf(out, "Sequence:     %d (%d frames, %d bytes submitted)\n",
			stats.Sequence, stats.FramesSubmitted, stats.BytesSubmitted)
		fmt.Fprintf(out, "Deliveries:   %d fresh, %d stale\n", stats.FreshDeliveries, stats.StaleDeliveries)
		fmt.Fprintf(out, "Sessions:     %d\n", stats.Sessions)
	}

	if logLines <= 0 {
		return nil
	}
	var logs models.LogsData
	if err := c.do(ctx, http.MethodGet, "/api/logs?lines="+strconv.Itoa(logLines), nil, &logs); err != nil {
		fmt.Fprintf(os.Stderr, "logs unavailable: %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "Recent logs (%d):\n", logs.Count)
	for _, entry := range logs.Entries {
		fmt.Fprintln(out, "  "+logging.FormatLogLine(entry))
	}
	return nil
}
