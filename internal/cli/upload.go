package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dmitrijs2005/mediaingest/internal/config"
	"github.com/dmitrijs2005/mediaingest/internal/models"
	"github.com/spf13/cobra"
)

func newUploadCmd(cfg *config.Config) *cobra.Command {
	var target models.UploadTarget

	cmd := &cobra.Command{
		Use:   "upload [flags] FILE...",
		Short: "Upload media files and ZIP archives",
		Long: `Uploads every FILE as one batch. ZIP archives are expanded into a new
folder under --category; other files attach to --folder when it names a real
folder. Press Ctrl-C once to cancel the remaining transfers.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, cfg, target, args)
		},
	}

	cmd.Flags().StringVar(&target.ContainerID, "container", "", "owning container (creator) id")
	cmd.Flags().StringVar(&target.CurrentFolderID, "folder", "", `destination folder id, or "all"/"unsorted"`)
	cmd.Flags().StringVar(&target.ArchiveCategoryID, "category", "", "category for folders created from ZIP archives")
	cmd.Flags().StringVar(&target.Actor, "actor", "", "uploader email reported in the completion notification")
	_ = cmd.MarkFlagRequired("container")

	return cmd
}

func runUpload(cmd *cobra.Command, cfg *config.Config, target models.UploadTarget, paths []string) error {
	selection, err := selectFiles(paths)
	if err != nil {
		return err
	}

	rt, err := open(cmd, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if line := newProgressLine(out); line != nil {
		rt.Uploader.Tracker().Subscribe(line.Render)
		defer line.Done()
	}

	ctx := cmd.Context()
	stop := cancelOnInterrupt(ctx, out, rt.Uploader)
	res, err := rt.Uploader.HandleFileChange(ctx, selection, target)
	stop()

	printResult(out, res)
	return err
}

// selectFiles turns paths into a selection named by base name.
func selectFiles(paths []string) ([]models.RawFile, error) {
	out := make([]models.RawFile, 0, len(paths))
	for _, p := range paths {
		f, err := models.LocalFile(filepath.Base(p), p)
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", p, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// cancelOnInterrupt turns the first SIGINT/SIGTERM into a cancel-all so the
// batch can finish with per-file statuses. The returned func stops watching.
func cancelOnInterrupt(ctx context.Context, out io.Writer, u Uploader) func() {
	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	finished := make(chan struct{})

	go func() {
		select {
		case <-sigCtx.Done():
			if ctx.Err() == nil {
				fmt.Fprintln(out, "\ncancelling uploads...")
				u.CancelUpload("")
			}
		case <-finished:
		}
	}()

	return func() {
		close(finished)
		stopSignals()
	}
}

func printResult(out io.Writer, res *models.BatchResult) {
	if res == nil {
		return
	}
	for _, w := range res.Rejected {
		fmt.Fprintf(out, "skipped: %s\n", w)
	}
	for _, st := range res.FileStatuses {
		if st.State == models.StateError {
			fmt.Fprintf(out, "failed: %s: %s\n", st.Name, st.Error)
		}
	}
	for _, n := range res.Notices {
		fmt.Fprintln(out, n)
	}
	if res.Failure != "" {
		fmt.Fprintf(out, "error: %s\n", res.Failure)
	}
	if res.Summary != "" {
		fmt.Fprintln(out, res.Summary)
	}
}
