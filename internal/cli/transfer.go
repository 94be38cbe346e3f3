package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/s3desk/s3desk"
	"github.com/s3desk/s3desk/internal/validation"
	"github.com/s3desk/s3desk/s3types"
)

// progress starts the bars unless --quiet was given.
func (a *app) progress() func() {
	if a.quiet {
		return func() {}
	}
	return watch(a.client.Registry(), a.errOut)
}

func newUploadCmd(a *app) *cobra.Command {
	var (
		contentType  string
		storageClass string
		metadata     map[string]string
		include      []string
		exclude      []string
	)

	cmd := &cobra.Command{
		Use:   "upload <local path> [key or folder]",
		Short: "Upload a file or a directory",
		Long: `Upload a local file or directory.

A file is stored under the given key, or under its own name at the bucket
root. A directory is uploaded file by file under the given folder, keeping
its layout.

Examples:
  s3desk upload report.pdf docs/report.pdf
  s3desk upload ./site web --exclude 'tmp/**' --exclude '*.log'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := args[0]
			target := ""
			if len(args) == 2 {
				target = args[1]
			}

			var opts []s3types.UploadOption
			if contentType != "" {
				opts = append(opts, s3desk.WithContentType(contentType))
			}
			if storageClass != "" {
				opts = append(opts, s3desk.WithStorageClass(s3types.StorageClass(storageClass)))
			}
			if len(metadata) > 0 {
				opts = append(opts, s3desk.WithMetadata(validation.SanitizeMetadata(metadata)))
			}

			info, err := os.Stat(local)
			if err != nil {
				return err
			}

			stop := a.progress()
			if info.IsDir() {
				result, err := a.client.UploadDirectory(cmd.Context(), local, target,
					s3desk.WithInclude(include...),
					s3desk.WithExclude(exclude...),
					s3desk.WithFileOptions(opts...),
				)
				stop()
				if err != nil {
					return err
				}
				for rel, ferr := range result.Failed {
					pterm.Error.WithWriter(a.errOut).Printfln("%s: %v", rel, ferr)
				}
				fmt.Fprintf(a.out, "uploaded %d files (%s) in %s\n",
					len(result.Uploaded), formatBytes(result.Bytes), result.Duration.Round(time.Millisecond))
				if len(result.Failed) > 0 {
					return fmt.Errorf("%d files failed", len(result.Failed))
				}
				return nil
			}

			key := target
			if key == "" || isFolderArg(key) {
				key = validation.JoinKey(key, filepath.Base(local))
			}
			result, err := a.client.UploadFile(cmd.Context(), key, local, opts...)
			stop()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "uploaded %s (%s) in %s\n", result.Key, formatBytes(result.Size), result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&contentType, "content-type", "", "content type, detected when empty")
	flags.StringVar(&storageClass, "storage-class", "", "storage class, e.g. STANDARD_IA or GLACIER")
	flags.StringToStringVar(&metadata, "meta", nil, "user metadata as key=value")
	flags.StringSliceVar(&include, "include", nil, "only upload files matching these globs")
	flags.StringSliceVar(&exclude, "exclude", nil, "skip files matching these globs")
	return cmd
}

func newDownloadCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <key>",
		Short: "Download one object into the download directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []s3types.DownloadOption
			if output != "" {
				opts = append(opts, s3desk.WithFileName(output))
			}

			stop := a.progress()
			result, err := a.client.Download(cmd.Context(), args[0], opts...)
			stop()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "saved %s (%s) in %s\n", result.FileName, formatBytes(result.Size), result.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file name to save as")
	return cmd
}

func newDownloadFolderCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download-folder [folder]",
		Short: "Download a folder as one ZIP file",
		Long: `Download every object under a folder as one ZIP file named after the
folder. Without a folder the whole bucket is archived. Archived objects that
have not been restored are left out.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 1 {
				folder = args[0]
			}
			var opts []s3types.DownloadOption
			if output != "" {
				opts = append(opts, s3desk.WithFileName(output))
			}

			stop := a.progress()
			result, err := a.client.DownloadFolder(cmd.Context(), folder, opts...)
			stop()
			if err != nil {
				return err
			}

			for _, key := range result.Skipped {
				pterm.Warning.WithWriter(a.errOut).Printfln("skipped %s: archived and not restored", key)
			}
			for _, key := range result.Failed {
				pterm.Error.WithWriter(a.errOut).Printfln("left out %s: download failed", key)
			}
			fmt.Fprintf(a.out, "saved %s with %d files (%s) in %s\n",
				result.FileName, result.Files, formatBytes(result.ArchiveSize), result.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "archive file name")
	return cmd
}

func isFolderArg(s string) bool {
	return len(s) > 0 && (s[len(s)-1] == '/' || s[len(s)-1] == '\\')
}
