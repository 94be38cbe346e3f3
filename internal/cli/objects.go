package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/s3desk/s3desk"
	"github.com/s3desk/s3desk/s3types"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "ls [folder]",
		Aliases: []string{"list"},
		Short:   "List one folder, sub-folders first",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 1 {
				folder = args[0]
			}
			objects, err := a.client.List(cmd.Context(), folder)
			if err != nil {
				return err
			}
			if len(objects) == 0 {
				fmt.Fprintln(a.out, "empty")
				return nil
			}

			data := pterm.TableData{{"Name", "Size", "Modified", "Class"}}
			for _, obj := range objects {
				if obj.IsFolder() {
					data = append(data, []string{obj.Name + "/", "", "", ""})
					continue
				}
				data = append(data, []string{
					obj.Name,
					formatBytes(obj.Size),
					obj.LastModified.Local().Format(time.DateTime),
					storageLabel(obj),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithWriter(a.out).WithData(data).Render()
		},
	}
}

func storageLabel(obj s3types.Object) string {
	switch {
	case obj.Restored:
		return string(obj.StorageClass) + " (restored)"
	case obj.Restoring:
		return string(obj.StorageClass) + " (restoring)"
	default:
		return string(obj.StorageClass)
	}
}

func newRenameCmd(a *app) *cobra.Command {
	var folder bool

	cmd := &cobra.Command{
		Use:   "rename <key or folder> <new name>",
		Short: "Rename an object or, with --folder, a folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				result *s3types.RenameResult
				err    error
			)
			if folder {
				result, err = a.client.RenameFolder(cmd.Context(), args[0], args[1])
			} else {
				result, err = a.client.Rename(cmd.Context(), args[0], args[1])
			}
			if err != nil {
				return err
			}
			if result.From == result.To {
				fmt.Fprintln(a.out, "name unchanged")
				return nil
			}
			fmt.Fprintf(a.out, "renamed %s to %s\n", result.From, result.To)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&folder, "folder", "f", false, "rename a folder and everything under it")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:     "rm <key or folder>",
		Aliases: []string{"delete"},
		Short:   "Delete an object or, with -r, a folder",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !recursive {
				if err := a.client.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "deleted %s\n", args[0])
				return nil
			}

			result, err := a.client.DeleteFolder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, e := range result.Errors {
				pterm.Error.WithWriter(a.errOut).Printfln("%s: %s %s", e.Key, e.Code, e.Message)
			}
			fmt.Fprintf(a.out, "deleted %d objects in %s\n", len(result.Deleted), result.Duration.Round(time.Millisecond))
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d objects not deleted", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete a folder and everything under it")
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	var (
		tier string
		days int32
	)

	cmd := &cobra.Command{
		Use:   "restore <key>",
		Short: "Request a readable copy of an archived object",
		Long: `Request a temporary readable copy of an object in an archival storage
class. Expedited restores take minutes, Standard hours and Bulk up to a
day or two. Use "s3desk status" to follow the request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []s3types.RestoreOption{s3desk.WithTier(s3types.RetrievalTier(tier))}
			if days > 0 {
				opts = append(opts, s3desk.WithDays(days))
			}
			if err := a.client.Restore(cmd.Context(), args[0], opts...); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "restore of %s requested (%s)\n", args[0], tier)
			return nil
		},
	}
	cmd.Flags().StringVar(&tier, "tier", string(s3types.TierStandard), "retrieval tier: Expedited, Standard or Bulk")
	cmd.Flags().Int32Var(&days, "days", 0, "days the restored copy stays readable, the configured default when 0")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <key>",
		Short: "Show whether an object can be downloaded now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := a.client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			state := "available"
			switch {
			case status.Restored:
				state = "restored"
				if !status.RestoreExpiry.IsZero() {
					state += " until " + status.RestoreExpiry.Local().Format(time.DateTime)
				}
			case status.Restoring:
				state = "restoring"
			case status.Archived:
				state = "archived, restore needed"
			}
			fmt.Fprintf(a.out, "%s\t%s\t%s\n", args[0], status.StorageClass, state)
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [folder]",
		Short: "Count the objects of a folder by storage state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 1 {
				folder = args[0]
			}
			stats, err := a.client.ArchiveStats(cmd.Context(), folder)
			if err != nil {
				return err
			}

			data := pterm.TableData{
				{"Objects", "Size", "Standard", "Archived", "Restoring", "Restored"},
				{
					strconv.Itoa(stats.Total),
					formatBytes(stats.Bytes),
					strconv.Itoa(stats.Standard),
					strconv.Itoa(stats.Archived),
					strconv.Itoa(stats.Restoring),
					strconv.Itoa(stats.Restored),
				},
			}
			return pterm.DefaultTable.WithHasHeader().WithWriter(a.out).WithData(data).Render()
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var clearLog bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the bucket's upload and download log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearLog {
				if err := a.client.ClearHistory(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "history cleared")
				return nil
			}

			entries, err := a.client.History(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.out, "no activity")
				return nil
			}

			data := pterm.TableData{{"Date", "Action", "Item", "Size", "Files"}}
			for _, e := range entries {
				data = append(data, []string{
					e.Date.Local().Format(time.DateTime),
					string(e.Action),
					e.ItemName,
					formatBytes(e.Size),
					strconv.Itoa(e.FileCount),
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithWriter(a.out).WithData(data).Render()
		},
	}
	cmd.Flags().BoolVar(&clearLog, "clear", false, "empty the log")
	return cmd
}
