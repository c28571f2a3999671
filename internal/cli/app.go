package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/webstorage/storectl/internal/api"
	"github.com/webstorage/storectl/internal/config"
	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/events"
	"github.com/webstorage/storectl/internal/logging"
	"github.com/webstorage/storectl/internal/progress"
	"github.com/webstorage/storectl/internal/session"
	"github.com/webstorage/storectl/internal/workspace"
)

// app is everything one command invocation needs: the workspace, its bus
// and the renderer drawing transfers on out.
type app struct {
	cfg      *config.Config
	bus      *events.EventBus
	ws       *workspace.Workspace
	renderer *progress.Renderer
	logger   *logging.Logger
	logFile  io.Closer
}

// loadConfig reads the config file and applies the --url override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.ServerURL = strings.TrimSuffix(strings.TrimSpace(serverURL), "/")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openApp loads configuration and the persisted session and wires a
// workspace against the configured server. overrides adjust the loaded
// config for this invocation only.
func openApp(out io.Writer, overrides ...func(*config.Config)) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	for _, override := range overrides {
		override(cfg)
	}
	if cfg.NeedsProxyPassword() {
		password, err := newPrompter(nil, out).password(fmt.Sprintf("Proxy password for %s@%s: ", cfg.ProxyUser, cfg.ProxyHost))
		if err != nil {
			return nil, err
		}
		cfg.ProxyPassword = password
	}
	return newApp(cfg, session.NewFileStore(cfg.SessionStorePath), out)
}

// newApp wires a workspace from cfg with the given session store.
func newApp(cfg *config.Config, store session.Store, out io.Writer) (*app, error) {
	logFile := logging.EnableFileOutput(logging.FileOptions{Path: cfg.LogFile})
	log := GetLogger()
	if logFile != nil {
		log = logging.NewDefaultCLILogger()
	}
	if cfg.Debug {
		logging.SetGlobalLevel(zerolog.DebugLevel)
	}

	sess, err := session.New(store, log)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	bus := events.NewEventBus(0)
	client, err := api.NewClientFromConfig(cfg, sess, bus, log)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	ws := workspace.New(workspace.Options{
		Client:  client,
		Session: sess,
		Bus:     bus,
		Saver:   workspace.DirSaver{Dir: cfg.DownloadDir},
		Logger:  log,
	})

	renderer := progress.NewRenderer(bus, out)
	renderer.Start()

	log.Debug().Str("server", cfg.ServerURL).Bool("authenticated", sess.IsAuthenticated()).Msg("Workspace ready")

	return &app{
		cfg:      cfg,
		bus:      bus,
		ws:       ws,
		renderer: renderer,
		logger:   log,
		logFile:  logFile,
	}, nil
}

// Close stops the renderer, the workspace and the bus, in that order.
func (a *app) Close() {
	a.renderer.Stop()
	a.ws.Close()
	a.bus.Close()
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// requireLogin fails fast when no session token is stored.
func (a *app) requireLogin() error {
	if !a.ws.Session().IsAuthenticated() {
		return fmt.Errorf("not logged in: run '%s login' first", constants.AppName)
	}
	return nil
}
