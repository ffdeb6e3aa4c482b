package shieldscan

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/shieldscan/shieldscan/internal/checkout"
	"github.com/shieldscan/shieldscan/internal/config"
	"github.com/shieldscan/shieldscan/internal/engine"
	"github.com/shieldscan/shieldscan/internal/history"
	"github.com/shieldscan/shieldscan/internal/logging"
	"github.com/shieldscan/shieldscan/internal/session"
	"github.com/shieldscan/shieldscan/internal/store"
	"github.com/shieldscan/shieldscan/internal/validate"
)

// app is everything a command needs, wired from the resolved settings.
type app struct {
	settings config.Settings
	log      zerolog.Logger
	store    store.ResultStore
	client   *engine.Client
	history  *history.Log
	ctrl     *session.Controller
}

// loadSettings resolves flags, environment, local and global config.
func loadSettings() (config.Settings, error) {
	cwd, _ := os.Getwd()
	if err := config.LoadEnv(cwd); err != nil {
		return config.Settings{}, err
	}
	var gcfg, lcfg config.FileConfig
	if c, err := config.LoadGlobal(); err == nil {
		gcfg = c
	}
	if c, err := config.LoadLocal(cwd); err == nil {
		lcfg = c
	}
	return config.Resolve(config.Overrides{
		APIURL:     flagAPIURL,
		Timeout:    flagTimeout,
		Store:      flagStore,
		StorePath:  flagStorePath,
		ReturnAddr: flagReturnAddr,
		DenyHosts:  flagDenyHosts,
		LogLevel:   flagLogLevel,
		LogFile:    flagLogFile,
		NoColor:    flagNoColor,
		NoHistory:  flagNoHistory,
	}, lcfg, gcfg)
}

// newApp builds the app. quiet keeps log output off the terminal, for use
// while the TUI owns the screen.
func newApp(quiet bool) (*app, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logFile := s.LogFile
	if quiet && logFile == "" {
		logFile = filepath.Join(store.DefaultDir(), "shieldscan.log")
	}
	logger := logging.Init(logging.Config{Level: s.LogLevel, Format: "auto", FilePath: logFile, Quiet: quiet})

	st, err := store.Open(s.Store, s.StorePath)
	if err != nil {
		return nil, err
	}
	client := engine.NewClient(s.APIURL,
		engine.WithTimeout(s.Timeout),
		engine.WithUserAgent("shieldscan/"+version))

	a := &app{settings: s, log: logger, store: st, client: client}
	opts := []session.Option{
		session.WithTimeout(s.Timeout),
		session.WithLogger(logging.Component("session")),
		session.WithOpener(func(site string) error { return checkout.Open(client.CheckoutURL(site)) }),
	}
	if len(s.DenyHosts) > 0 {
		opts = append(opts, session.WithValidator(validate.Policy{DenyHosts: s.DenyHosts}.Validator()))
	}
	if s.History {
		a.history = history.NewLog(s.HistoryPath)
		hlog := logging.Component("history")
		opts = append(opts, session.WithAttemptHook(a.history.Hook(func(err error) {
			hlog.Warn().Err(err).Msg("record attempt")
		})))
	}
	a.ctrl = session.NewController(client, st, opts...)
	logger.Debug().Str("api_url", s.APIURL).Str("store", s.Store).Dur("timeout", s.Timeout).Msg("configured")
	return a, nil
}

func (a *app) Close() {
	if c, ok := a.store.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close result store")
		}
	}
	logging.Shutdown()
}

// historyLog returns the history even when recording is disabled, so it can
// still be inspected.
func (a *app) historyLog() *history.Log {
	if a.history != nil {
		return a.history
	}
	return history.NewLog(a.settings.HistoryPath)
}
