package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/smartcam/internal/device"
	"github.com/smazurov/smartcam/internal/logging"
	"github.com/smazurov/smartcam/internal/pattern"
	"github.com/spf13/cobra"
)

// patternOptions holds the pattern command flags.
type patternOptions struct {
	url      string
	device   string
	username string
	password string
	kind     string
	color    []int
	fps      float64
	count    int
}

// CreatePatternCmd creates the pattern command.
func CreatePatternCmd() *cobra.Command {
	opts := patternOptions{}

	cmd := &cobra.Command{
		Use:   "pattern",
		Short: "Feed test frames into a running endpoint",
		Long: `Opens a session on a running smartcam server and submits RGB24 test frames at a fixed rate ` +
			`until interrupted or until --count frames have been sent. Frames are converted to YUYV by the ` +
			`endpoint while YUYV is the active format.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPattern(ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.url, "url", "http://localhost:8090", "smartcam server URL")
	flags.StringVarP(&opts.device, "device", "d", "video0", "Endpoint name")
	flags.StringVar(&opts.username, "username", "admin", "Basic auth username")
	flags.StringVar(&opts.password, "password", "password", "Basic auth password")
	flags.StringVarP(&opts.kind, "pattern", "p", string(pattern.KindBars), "Pattern: bars, gradient or solid")
	flags.IntSliceVar(&opts.color, "color", []int{255, 0, 0}, "RGB color for the solid pattern")
	flags.Float64Var(&opts.fps, "fps", 10, "Frames per second")
	flags.IntVarP(&opts.count, "count", "n", 0, "Frames to send, 0 for unlimited")
	return cmd
}

func runPattern(ctx context.Context, opts patternOptions) error {
	logging.Initialize(logging.Config{Level: "info", Format: "text"})
	logger := logging.GetLogger("pattern").With("device", opts.device)

	kind, err := pattern.ParseKind(opts.kind)
	if err != nil {
		return err
	}
	if len(opts.color) != 3 {
		return fmt.Errorf("--color needs three components, got %d", len(opts.color))
	}
	if opts.fps <= 0 {
		return fmt.Errorf("--fps must be positive")
	}
	color := [3]byte{byte(opts.color[0]), byte(opts.color[1]), byte(opts.color[2])}

	client := newAPIClient(opts.url, opts.device, opts.username, opts.password)
	sess, err := client.openSession(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.closeSession(closeCtx, sess.ID); err != nil {
			logger.Warn("Failed to close session", "error", err)
		}
	}()

	gen := pattern.NewGenerator(kind, device.FrameWidth, device.FrameHeight, color)
	interval := time.Duration(float64(time.Second) / opts.fps)
	logger.Info("Sending test pattern", "pattern", kind, "interval", interval, "session", sess.ID)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
loop:
	for {
		w, err := client.writeFrame(ctx, sess.ID, gen.Next())
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("write frame %d: %w", gen.Frame(), err)
		}
		logger.Debug("Frame sent", "sequence", w.Sequence, "bytes", w.Bytes)
		if opts.count > 0 && gen.Frame() >= opts.count {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
	}
	logger.Info("Test pattern stopped", "frames", gen.Frame())
	return nil
}
