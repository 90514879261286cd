package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"calorie-lens/api/internal/analysis"
	"calorie-lens/api/internal/auth"
	"calorie-lens/api/internal/client"
	"calorie-lens/api/internal/config"
	"calorie-lens/api/internal/imageprep"
	"calorie-lens/api/internal/logger"
	"calorie-lens/api/internal/session"
	"calorie-lens/api/internal/store"
)

var errNoCredential = errors.New("no password saved, run `foodcal login` first")

// app is built once per invocation in PersistentPreRunE.
type app struct {
	cfg *config.CLI
	log *zap.Logger
	kv  *store.SQLiteKV
}

func (a *app) machine(api *client.Client, gate *auth.Gate) *session.Machine {
	return session.New(gate, imageprep.New(), api, session.WithLogger(a.log))
}

func (a *app) close() {
	if a.kv != nil {
		_ = a.kv.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "foodcal",
		Short:         "Estimate calories in a food photo",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadCLI(cmd.Flags())
			if err != nil {
				return err
			}
			log, err := logger.Console(cfg.LogLevel)
			if err != nil {
				return err
			}
			kv, err := store.OpenSQLiteKV(cfg.StatePath)
			if err != nil {
				return err
			}
			a.cfg, a.log, a.kv = cfg, log, kv
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}
	root.PersistentFlags().String("url", "", "analysis service base URL (env FOODCAL_URL)")
	root.PersistentFlags().String("state", "", "path of the local state file (env FOODCAL_STATE)")
	root.PersistentFlags().String("log-level", "", "log level (env FOODCAL_LOG_LEVEL)")

	root.AddCommand(newLoginCmd(a), newAnalyzeCmd(a), newModelsCmd(a))

	return withErrorOutput(root, a)
}

// withErrorOutput prints a failing command's error to stderr and releases
// resources opened in PersistentPreRunE, which cobra skips on error.
func withErrorOutput(root *cobra.Command, a *app) *cobra.Command {
	for _, c := range root.Commands() {
		run := c.RunE
		c.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			if err != nil {
				a.close()
				a.kv, a.log = nil, nil
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			}
			return err
		}
	}
	return root
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login [password]",
		Short: "Save the app password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw string
			if len(args) == 1 {
				pw = args[0]
			} else {
				fmt.Fprint(cmd.ErrOrStderr(), "App password: ")
				sc := bufio.NewScanner(cmd.InOrStdin())
				if sc.Scan() {
					pw = sc.Text()
				}
				if err := sc.Err(); err != nil {
					return err
				}
			}
			gate := auth.NewGate(a.kv)
			m := a.machine(client.New(a.cfg.APIURL, gate, client.WithLogger(a.log)), gate)
			defer m.Close()
			if err := m.SaveCredential(cmd.Context(), pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password saved.")
			return nil
		},
	}
}

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <image>",
		Short: "Analyze a food photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			gate := auth.NewGate(a.kv)
			m := a.machine(client.New(a.cfg.APIURL, gate, client.WithLogger(a.log)), gate)
			defer m.Close()
			if err := m.Start(ctx); err != nil {
				return err
			}
			if m.Snapshot().State == session.Idle {
				return errNoCredential
			}

			m.SelectImage(data)
			m.Wait()
			snap := m.Snapshot()
			if snap.State != session.ImageReady {
				return errors.New(strings.TrimSpace(snap.Notice))
			}
			a.log.Debug("image prepared", zap.Int("width", snap.Width), zap.Int("height", snap.Height))

			fmt.Fprintln(cmd.ErrOrStderr(), "Analyzing...")
			m.Analyze()
			m.Wait()
			snap = m.Snapshot()
			switch snap.State {
			case session.ResultShown:
				fmt.Fprintln(cmd.OutOrStdout(), analysis.Format(snap.Result))
				return nil
			case session.ErrorShown:
				return errors.New(snap.Message())
			default:
				return fmt.Errorf("analysis did not finish (state %s)", snap.State)
			}
		},
	}
}

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the service can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gate := auth.NewGate(a.kv)
			models, err := client.New(a.cfg.APIURL, gate, client.WithLogger(a.log)).Models(cmd.Context())
			if err != nil {
				return errors.New(analysis.Describe(err))
			}
			for _, name := range models {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
