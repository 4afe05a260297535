package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/forscht/filedeck/internal/manager"
)

func newLsCmd(a *app) *cobra.Command {
	var (
		search string
		long   bool
	)

	cmd := &cobra.Command{
		Use:   "ls [FOLDER_ID]",
		Short: "List a folder, the root by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 1 {
				folder = args[0]
			}
			ctrl := a.controller(a.client(), folder, manager.Options{Notifier: newCLINotifier(cmd.ErrOrStderr())})
			defer ctrl.Close()

			if !ctrl.Refresh(cmd.Context()) {
				return fmt.Errorf("list: %s", ctrl.ListingError())
			}
			ctrl.SetSearchTerm(search)
			return printEntries(cmd.OutOrStdout(), ctrl.VisibleEntries(), long)
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "only show names containing this text")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show size, type and creation time")
	return cmd
}

func newMkdirCmd(a *app) *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "mkdir NAME",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := a.controller(a.client(), in, manager.Options{Notifier: newCLINotifier(cmd.ErrOrStderr())})
			defer ctrl.Close()

			if !ctrl.CreateFolder(cmd.Context(), args[0]) {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "parent folder id, the root by default")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	var (
		in  string
		yes bool
	)

	cmd := &cobra.Command{
		Use:   "rm ID...",
		Short: "Delete files or folders with everything in them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			notifier := newCLINotifier(cmd.ErrOrStderr())
			ctrl := a.controller(a.client(), in, manager.Options{Notifier: notifier})
			defer ctrl.Close()

			if !ctrl.Refresh(cmd.Context()) {
				return fmt.Errorf("list: %s", ctrl.ListingError())
			}

			stdin := bufio.NewReader(cmd.InOrStdin())
			failed := false
			for _, id := range args {
				if !ctrl.RequestDelete(id) {
					failed = true
					continue
				}
				target, _ := ctrl.Pending(manager.KindDelete)
				if !yes && !confirm(stdin, cmd.ErrOrStderr(), deleteQuestion(target)) {
					ctrl.Cancel(manager.KindDelete)
					continue
				}
				if !ctrl.ConfirmDelete(cmd.Context()) {
					failed = true
				}
			}
			if failed {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "folder holding the entries, the root by default")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func deleteQuestion(t manager.Target) string {
	if t.IsDirectory {
		return fmt.Sprintf("Delete folder %q and everything in it?", t.Name)
	}
	return fmt.Sprintf("Delete %q?", t.Name)
}

func newGetCmd(a *app) *cobra.Command {
	var in, dir string

	cmd := &cobra.Command{
		Use:   "get ID...",
		Short: "Download files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Download.Dir
			}
			client := a.client()
			notifier := newCLINotifier(cmd.ErrOrStderr())
			ctrl := a.controller(client, in, manager.Options{
				Notifier: notifier,
				Saver:    manager.NewFileSaver(afero.NewOsFs(), dir, client, notifier),
			})
			defer ctrl.Close()

			if !ctrl.Refresh(cmd.Context()) {
				return fmt.Errorf("list: %s", ctrl.ListingError())
			}

			failed := false
			for _, id := range args {
				if !ctrl.RequestDownload(id) || !ctrl.ConfirmDownload(cmd.Context()) {
					failed = true
				}
			}
			ctrl.WaitDownloads()
			if failed || notifier.Errors() > 0 {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "folder holding the files, the root by default")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to save into (default download.dir)")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login USERNAME",
		Short: "Log in to the store and save the token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), passwordStdin)
			if err != nil {
				return err
			}

			var token string
			session := manager.NewSession(manager.RemoteAuth{
				Issuer:  a.client(),
				OnToken: func(t string) { token = t },
			})
			if err := session.Login(cmd.Context(), args[0], password); err != nil {
				return err
			}

			path, err := saveToken(a.v, token)
			if err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			user, _ := session.User()
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s, token saved to %s\n", user, path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin without prompting")
	return cmd
}

// readPassword reads one line from in when fromStdin is set. Otherwise in
// must be a terminal and the password is read with echo turned off.
func readPassword(in io.Reader, prompt io.Writer, fromStdin bool) (string, error) {
	if fromStdin {
		password, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(password, "\r\n"), nil
	}

	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", errors.New("stdin is not a terminal, pass the password with --password-stdin")
	}
	fmt.Fprint(prompt, "Password: ")
	password, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(password), nil
}
