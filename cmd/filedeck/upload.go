package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gobwas/glob"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forscht/filedeck/internal/manager"
)

func newUploadCmd(a *app) *cobra.Command {
	var (
		in    string
		match string
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "upload PATH...",
		Short: "Upload files into a folder",
		Long: `Upload files into a folder, the root by default.

A PATH may be a file, a directory or a glob pattern. A directory uploads the
files directly inside it. --match keeps only the files whose name matches.

Example:
  filedeck upload ./report.pdf
  filedeck upload ./photos --match '*.{jpg,png}' --in 42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := collectFiles(afero.NewOsFs(), args, match)
			if err != nil {
				return err
			}

			var total int64
			for _, f := range files {
				total += f.Size
			}
			bar := progressbar.NewOptions64(total,
				progressbar.OptionSetDescription(fmt.Sprintf("uploading %d files", len(files))),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetVisibility(!quiet),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)

			notifier := newCLINotifier(cmd.ErrOrStderr())
			ctrl := a.controller(a.client(), in, manager.Options{Notifier: notifier})
			defer ctrl.Close()

			res := ctrl.UploadFiles(cmd.Context(), trackProgress(files, bar))
			_ = bar.Finish()

			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d files uploaded\n", res.Succeeded, res.Total)
			switch {
			case res.Cancelled:
				return errors.New("upload cancelled")
			case len(res.Failures) > 0:
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "destination folder id, the root by default")
	cmd.Flags().StringVarP(&match, "match", "m", "", "glob the file names must match, e.g. '*.{jpg,png}'")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

// collectFiles expands paths and keeps the files whose base name matches
// pattern. An empty pattern keeps everything.
func collectFiles(fs afero.Fs, paths []string, pattern string) ([]manager.Upload, error) {
	var g glob.Glob
	if pattern != "" {
		var err error
		if g, err = glob.Compile(pattern); err != nil {
			return nil, fmt.Errorf("invalid --match pattern: %w", err)
		}
	}

	var files []manager.Upload
	for _, p := range paths {
		found, err := manager.CollectUploads(fs, p)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if g == nil || g.Match(f.Name) {
				files = append(files, f)
			}
		}
	}
	if len(files) == 0 {
		return nil, errors.New("nothing to upload")
	}
	return files, nil
}

// trackProgress makes every upload report the bytes read to w.
func trackProgress(files []manager.Upload, w io.Writer) []manager.Upload {
	out := make([]manager.Upload, len(files))
	for i, f := range files {
		open := f.Open
		f.Open = func() (io.ReadCloser, error) {
			rc, err := open()
			if err != nil {
				return nil, err
			}
			return struct {
				io.Reader
				io.Closer
			}{io.TeeReader(rc, w), rc}, nil
		}
		out[i] = f
	}
	return out
}
