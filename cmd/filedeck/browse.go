package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forscht/filedeck/internal/manager"
	"github.com/forscht/filedeck/internal/tui"
)

func newBrowseCmd(a *app) *cobra.Command {
	var in, view string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Open the interactive file browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if view == "" {
				view = a.cfg.UI.ViewMode
			}
			mode, err := manager.ParseViewMode(view)
			if err != nil {
				return err
			}

			fs := afero.NewOsFs()
			client := a.client()
			changes := tui.NewChanges()
			notices := manager.NewNoticeQueue(20)
			notifier := changes.Notifier(notices)

			ctrl := a.controller(client, in, manager.Options{
				Notifier: notifier,
				Saver:    manager.NewFileSaver(fs, a.cfg.Download.Dir, client, notifier),
				ViewMode: mode,
				OnChange: changes.Notify,
			})
			defer ctrl.Close()

			model := tui.New(cmd.Context(), ctrl, notices, changes, fs)
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err = p.Run(); err != nil {
				return err
			}

			log.Debug().Str("c", "browse").Msg("waiting for downloads")
			ctrl.WaitDownloads()
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "folder id to start in, the root by default")
	cmd.Flags().StringVar(&view, "view", "", "grid or list (default ui.view_mode)")
	return cmd
}
