package main

import (
	"context"

	"github.com/pagekeep/pagekeep"
	"github.com/pagekeep/pagekeep/internal/common"
	"github.com/spf13/viper"
)

// app wires the store, trail, settings, engine, and backup manager for one
// command invocation. The store handle is constructed here and passed down
// explicitly; nothing reads it from ambient state.
type app struct {
	cfg     ConfigDoc
	store   *pagekeep.Store
	trail   *pagekeep.Trail
	sets    *pagekeep.Settings
	engine  *pagekeep.Engine
	backups *pagekeep.BackupManager
}

func newApp(ctx context.Context) (*app, error) {
	var cfg ConfigDoc
	if err := cfg.Load(viper.GetString("config")); err != nil {
		return nil, err
	}
	configureLogging(cfg.Logging)

	st, err := pagekeep.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	trail := pagekeep.NewTrail(st, cfg.Audit.FallbackDir)
	sets := pagekeep.NewSettings(st, trail)
	eng := pagekeep.NewEngine(st, sets, trail, pagekeep.EngineOptions{
		UnitTimeout: cfg.UnitTimeoutDuration(),
		LockPath:    cfg.Migration.LockPath,
	})
	if err := eng.Initialize(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		store:   st,
		trail:   trail,
		sets:    sets,
		engine:  eng,
		backups: pagekeep.NewBackupManager(st, trail, sets, cfg.Backup.Dir),
	}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
}

func configureLogging(lc LoggingConfig) {
	level := common.ParseLogLevel(lc.Level)
	if lc.Format == "json" {
		common.SetDefaultLogger(common.NewJSONLogger(level))
		return
	}
	common.SetDefaultLogger(common.NewLogger(level))
}
