// Package cli implements the s3desk command-line tool.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/s3desk/s3desk"
	"github.com/s3desk/s3desk/internal/config"
	"github.com/s3desk/s3desk/internal/logging"
	"github.com/s3desk/s3desk/internal/save"
	"github.com/s3desk/s3desk/s3types"
)

// ClientFactory builds the client a command runs against.
type ClientFactory func(cfg *config.Config, logger *slog.Logger) (*s3desk.Client, error)

// app is the state shared by every command of one invocation.
type app struct {
	configFile string
	bucket     string
	quiet      bool

	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
	client *s3desk.Client

	newClient ClientFactory
	out       io.Writer
	errOut    io.Writer
}

// New returns the root command. Output goes to out, logs and progress to errOut.
func New(out, errOut io.Writer) *cobra.Command {
	return newRoot(&app{
		newClient: DefaultClient,
		out:       out,
		errOut:    errOut,
	})
}

// NewWithFactory is New with a custom client constructor.
func NewWithFactory(out, errOut io.Writer, factory ClientFactory) *cobra.Command {
	return newRoot(&app{
		newClient: factory,
		out:       out,
		errOut:    errOut,
	})
}

func newRoot(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "s3desk [command]",
		Short:             "Move files between this machine and an S3 bucket",
		Example:           "s3desk upload ./photos photos --exclude '*.tmp'",
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.HasParent() {
				return nil
			}
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file path")
	flags.StringVarP(&a.bucket, "bucket", "b", "", "bucket to work on, overrides the config")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "hide progress bars")

	cmd.AddCommand(
		newListCmd(a),
		newUploadCmd(a),
		newDownloadCmd(a),
		newDownloadFolderCmd(a),
		newRenameCmd(a),
		newRemoveCmd(a),
		newRestoreCmd(a),
		newStatusCmd(a),
		newStatsCmd(a),
		newHistoryCmd(a),
	)
	return cmd
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.bucket != "" {
		cfg.Bucket = a.bucket
	}
	a.cfg = cfg

	a.logger, a.closer = logging.New(a.errOut, logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	client, err := a.newClient(cfg, a.logger)
	if err != nil {
		return err
	}
	a.client = client
	return nil
}

func (a *app) teardown() error {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// DefaultClient builds a client from the loaded configuration.
func DefaultClient(cfg *config.Config, logger *slog.Logger) (*s3desk.Client, error) {
	return s3desk.New(ClientOptions(cfg, logger)...)
}

// ClientOptions translates the configuration into client options.
func ClientOptions(cfg *config.Config, logger *slog.Logger) []s3types.Option {
	opts := []s3types.Option{
		s3desk.WithBucket(cfg.Bucket),
		s3desk.WithRegion(cfg.Region),
		s3desk.WithLogger(logger),
		s3desk.WithTransferConfig(cfg.TransferSettings()),
		s3desk.WithDisableActivity(cfg.DisableActivity),
		s3desk.WithSaver(save.NewOS(cfg.DownloadDir)),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, s3desk.WithEndpoint(cfg.Endpoint))
	}
	if cfg.PathStyle {
		opts = append(opts, s3desk.WithForcePathStyle(true))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, s3desk.WithCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken))
	}
	return opts
}
