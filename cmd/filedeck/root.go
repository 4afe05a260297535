package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	zl "github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forscht/filedeck/internal/manager"
	"github.com/forscht/filedeck/pkg/filestore"
)

// errReported is returned once the failure was already printed as a notice.
var errReported = errors.New("command failed")

type app struct {
	cfgFile string
	debug   bool
	logFile string

	v       *viper.Viper
	cfg     *Config
	closers []io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "filedeck",
		Short:         "Browse and manage a remote file store",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setupLogger(cmd); err != nil {
				return err
			}
			cfg, err := loadConfig(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			log.Debug().Str("c", "config").Str("url", cfg.Remote.BaseURL).Str("file", a.v.ConfigFileUsed()).Msg("config loaded")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			for _, c := range a.closers {
				_ = c.Close()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "path to filedeck configuration file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logs")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "write logs to this file instead of stderr")

	root.AddCommand(
		newLsCmd(a),
		newMkdirCmd(a),
		newUploadCmd(a),
		newRmCmd(a),
		newGetCmd(a),
		newLoginCmd(a),
		newBrowseCmd(a),
	)
	return root
}

// setupLogger sends logs to --log-file when given. The browser owns the
// terminal, so without a log file it logs nothing.
func (a *app) setupLogger(cmd *cobra.Command) error {
	var out io.Writer = cmd.ErrOrStderr()
	noColor := false
	switch {
	case a.logFile != "":
		f, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		out, noColor = f, true
	case cmd.Name() == "browse":
		out = io.Discard
	}

	log.Logger = zl.New(zl.ConsoleWriter{Out: out, NoColor: noColor, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	zl.SetGlobalLevel(zl.WarnLevel)
	if a.debug {
		zl.SetGlobalLevel(zl.DebugLevel)
	}
	return nil
}

func (a *app) client() *filestore.Client {
	return filestore.New(a.cfg.Remote)
}

// controller starts in folder when it is not empty.
func (a *app) controller(store manager.Store, folder string, opts manager.Options) *manager.Controller {
	if folder != "" {
		opts.Folder = &manager.Crumb{ID: &folder, Name: folder}
	}
	return manager.New(store, opts)
}

// cliNotifier prints notices as they come and counts the errors.
type cliNotifier struct {
	mu     sync.Mutex
	w      io.Writer
	errors int
}

func newCLINotifier(w io.Writer) *cliNotifier {
	return &cliNotifier{w: w}
}

func (n *cliNotifier) Notify(notice manager.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if notice.Level == manager.LevelError {
		n.errors++
	}
	text := notice.Title
	if notice.Message != "" {
		text += ": " + notice.Message
	}
	fmt.Fprintf(n.w, "%s %s\n", levelMark(notice.Level), text)
}

func (n *cliNotifier) Errors() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.errors
}

func levelMark(level manager.Level) string {
	switch level {
	case manager.LevelSuccess:
		return "✓"
	case manager.LevelWarning:
		return "!"
	case manager.LevelError:
		return "✗"
	default:
		return "·"
	}
}

func printEntries(w io.Writer, entries []filestore.FileEntry, long bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if long {
		fmt.Fprintln(tw, "ID\tNAME\tSIZE\tTYPE\tCREATED")
	}
	for _, e := range entries {
		name := e.Name
		if e.IsDirectory {
			name += "/"
		}
		if !long {
			fmt.Fprintf(tw, "%s\t%s\n", e.ID, name)
			continue
		}
		size, kind := "-", e.ContentType
		if e.Size != nil {
			size = humanize.IBytes(uint64(*e.Size))
		}
		if e.IsDirectory {
			kind = "folder"
		}
		created := "-"
		if !e.CreatedAt.IsZero() {
			created = e.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, name, size, kind, created)
	}
	return tw.Flush()
}

// confirm asks question on w and reads the answer from r. Only y or yes
// counts as consent.
func confirm(r *bufio.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N] ", question)
	line, _ := r.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
