package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	aqua "github.com/baccigalupi/aqua-sub000"
	"github.com/baccigalupi/aqua-sub000/internal/config"
)

type app struct {
	v      *viper.Viper
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "aqua",
		Short:         "Inspect aqua databases",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	fs := root.PersistentFlags()
	fs.String("config", "", "config file (default .aqua.yaml)")
	fs.StringP("path", "p", "", "database file")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.BoolP("verbose", "v", false, "log every database operation")
	if err := config.BindFlags(a.v, fs); err != nil {
		panic(err)
	}

	root.AddCommand(
		a.getCmd(),
		a.idsCmd(),
		a.attachmentsCmd(),
		a.catCmd(),
		a.dumpCmd(),
		a.statsCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	file, _ := cmd.Flags().GetString("config")
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	if err := config.Setup(a.v, file, paths...); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), level)
	return nil
}

// open opens the configured database, which must already exist.
func (a *app) open() (*aqua.DB, error) {
	if _, err := os.Stat(a.cfg.Path); err != nil {
		return nil, fmt.Errorf("no database at %s: %w", a.cfg.Path, err)
	}
	opt, err := a.cfg.Options(a.logger)
	if err != nil {
		return nil, err
	}
	db, err := aqua.Open(a.cfg.Path, nil, opt)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("opened database", "path", a.cfg.Path)
	return db, nil
}

// withDB runs f with the configured database open.
func (a *app) withDB(f func(db *aqua.DB) error) error {
	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()
	return f(db)
}
