// Package cli wires the capture client's cobra commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/varvasar/double-adviser/internal/capture"
	"github.com/varvasar/double-adviser/internal/config"
	"github.com/varvasar/double-adviser/internal/domain"
)

// Options holds dependencies the commands share. Zero values select the
// real clipboard, screen and stderr.
type Options struct {
	Sensor capture.Sensor
	Out    io.Writer
	Err    io.Writer
}

type flags struct {
	configPath   string
	server       string
	textTimeout  time.Duration
	imageTimeout time.Duration
	verbose      bool
}

// NewRootCmd builds the advise command tree.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Sensor == nil {
		opts.Sensor = capture.NewSystemSensor()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}

	f := &flags{}
	root := &cobra.Command{
		Use:   "advise",
		Short: "Send clipboard text or a screenshot to the adviser receiver",
		Long: "advise captures the clipboard (or, when it is empty, the screen) and posts it once\n" +
			"to the receiver's /process endpoint. Bind `advise send` to a desktop hotkey.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", config.DefaultFile, "Path to the YAML config file (optional)")
	pf.StringVarP(&f.server, "server", "s", "", "Receiver URL, e.g. http://192.168.1.100:5000/process (default from config)")
	pf.DurationVar(&f.textTimeout, "text-timeout", 0, "Timeout for text submissions (default from config)")
	pf.DurationVar(&f.imageTimeout, "image-timeout", 0, "Timeout for image submissions (default from config)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newSendCommand(f, opts))
	root.AddCommand(newTextCommand(f, opts))
	root.AddCommand(newImageCommand(f, opts))
	return root
}

func (f *flags) client(opts Options) (*capture.Client, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	url := cfg.Client.ServerURL
	if f.server != "" {
		url = f.server
	}
	textTimeout, imageTimeout := cfg.Client.TextTimeout, cfg.Client.ImageTimeout
	if f.textTimeout > 0 {
		textTimeout = f.textTimeout
	}
	if f.imageTimeout > 0 {
		imageTimeout = f.imageTimeout
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(opts.Err, &slog.HandlerOptions{Level: level}))
	logger.Debug("using receiver", "url", url)

	return capture.NewClient(url, capture.Options{
		TextTimeout:  textTimeout,
		ImageTimeout: imageTimeout,
		Logger:       logger,
	}), nil
}

func newSendCommand(f *flags, opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Send the clipboard text, or a screenshot if the clipboard is empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := f.client(opts)
			if err != nil {
				return err
			}
			res, err := capture.CaptureAndSend(cmd.Context(), opts.Sensor, client)
			if err != nil {
				return fmt.Errorf("send %s: %w", res.Kind, err)
			}
			return printReply(cmd, res.Kind, res.Reply)
		},
	}
}

func newTextCommand(f *flags, opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "text [words...]",
		Short: "Send the given text (or stdin when no words are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			client, err := f.client(opts)
			if err != nil {
				return err
			}
			reply, err := client.SendText(cmd.Context(), text, domain.SourceClipboard)
			if err != nil {
				return err
			}
			return printReply(cmd, domain.KindText, reply)
		},
	}
}

func newImageCommand(f *flags, opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "image <file>",
		Short: "Send an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			client, err := f.client(opts)
			if err != nil {
				return err
			}
			reply, err := client.SendImage(cmd.Context(), data, domain.SourceScreenshot)
			if err != nil {
				return err
			}
			return printReply(cmd, domain.KindImage, reply)
		},
	}
}

func printReply(cmd *cobra.Command, kind domain.Kind, reply capture.Reply) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sent %s, entry #%d (%s)\n", kind, reply.ID, reply.Status)
	if reply.PersistError != "" {
		fmt.Fprintf(out, "warning: receiver could not persist the entry: %s\n", reply.PersistError)
	}
	if reply.ResultPreview != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, reply.ResultPreview)
	}
	return nil
}
