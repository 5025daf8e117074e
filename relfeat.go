// Package relfeat is the orchestrating entry point: it owns the
// configured project root, wires a project.Manager to a
// server.Dispatcher, and registers the handlers the request protocol
// (spec.md §6) dispatches fit/transform/check/refresh/deploy requests
// to. Adapted from engine.go's Config/New/Close shape: a long-lived
// object an embedder constructs once and calls Close on to drain
// background resources.
package relfeat

import (
	"context"
	"encoding/json"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relfeat/engine/loss"
	"github.com/relfeat/engine/project"
	"github.com/relfeat/engine/relerr"
	"github.com/relfeat/engine/server"
)

// Config mirrors engine.go's Config struct, loadable from a TOML file
// per spec.md §6's "Environment" (configured project root, hardware
// thread override, temp directory, and the kernel's tunable defaults).
type Config struct {
	// ProjectRoot is the directory project.Manager resolves project
	// names against. Created if missing.
	ProjectRoot string `toml:"project_root"`

	// NumThreads overrides coordinator.NumThreads' hw_concurrency
	// probe in pipeline configs built by NewPipelineConfig. Zero means
	// "auto".
	NumThreads int `toml:"num_threads"`

	// TempDir is read from and written to the config file only: the
	// Engine does not pass it to column.NewPool or anywhere else, so it
	// does not decide where scratch files are created.
	TempDir string `toml:"temp_dir"`

	// DefaultLoss names the loss used by project.DefaultConfig when a
	// caller does not specify one explicitly ("square" or
	// "cross_entropy").
	DefaultLoss string `toml:"default_loss"`

	// DefaultNumTrees, DefaultShrinkage and DefaultMinLeafSupport seed
	// project.FitConfig for new pipelines.
	DefaultNumTrees       int     `toml:"default_num_trees"`
	DefaultShrinkage      float64 `toml:"default_shrinkage"`
	DefaultMinLeafSupport int     `toml:"default_min_leaf_support"`
}

// DefaultConfig returns the engine's built-in defaults, used when no
// TOML file is supplied.
func DefaultConfig() Config {
	return Config{
		ProjectRoot:           "./relfeat-projects",
		NumThreads:            0,
		DefaultLoss:           "square",
		DefaultNumTrees:       100,
		DefaultShrinkage:      0.1,
		DefaultMinLeafSupport: 50,
	}
}

// LoadConfig reads and decodes a TOML config file, starting from
// DefaultConfig for any field the file omits.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, relerr.WrapResource(errors.Wrap(err, "decoding config file"))
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating or truncating the file.
func (c Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return relerr.WrapResource(errors.Wrap(err, "creating config file"))
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return relerr.WrapResource(errors.Wrap(err, "encoding config file"))
	}
	return nil
}

// Engine is the long-lived orchestrator: one project.Manager plus a
// server.Dispatcher with handlers registered against it. Should call
// Close once the caller is done with it, mirroring engine.go's
// Engine.Close draining its BackgroundThreads.
type Engine struct {
	cfg        Config
	log        *logrus.Logger
	manager    *project.Manager
	dispatcher *server.Dispatcher
}

// New constructs an Engine rooted at cfg.ProjectRoot. A nil log falls
// back to logrus.StandardLogger(), matching project.NewManager's own
// default.
func New(cfg Config, log *logrus.Logger) (*Engine, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	manager, err := project.NewManager(cfg.ProjectRoot, log)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		log:        log,
		manager:    manager,
		dispatcher: server.NewDispatcher(),
	}
	e.registerHandlers()
	return e, nil
}

// NewPipelineConfig returns a project.Config for target seeded from
// e.cfg's ambient defaults (default_loss, default_num_trees,
// default_shrinkage, default_min_leaf_support, num_threads), rather than
// project.DefaultConfig's own hardcoded values. Callers who want the
// package defaults instead should call project.DefaultConfig directly.
func (e *Engine) NewPipelineConfig(target string) project.Config {
	cfg := project.DefaultConfig(target)
	if e.cfg.DefaultLoss == "cross_entropy" {
		cfg.Loss = loss.NewCrossEntropy()
	} else {
		cfg.Loss = loss.NewSquare()
	}
	if e.cfg.DefaultNumTrees > 0 {
		cfg.FitConfig.NumTrees = e.cfg.DefaultNumTrees
	}
	if e.cfg.DefaultShrinkage > 0 {
		cfg.FitConfig.Params.Shrinkage = e.cfg.DefaultShrinkage
	}
	if e.cfg.DefaultMinLeafSupport > 0 {
		cfg.FitConfig.Params.MinLeafSupport = e.cfg.DefaultMinLeafSupport
	}
	if e.cfg.NumThreads > 0 {
		cfg.FitConfig.NumWorkers = e.cfg.NumThreads
	}
	return cfg
}

// Manager returns the underlying project.Manager, for callers that
// need direct access (the CLI, tests) rather than going through the
// Dispatcher.
func (e *Engine) Manager() *project.Manager { return e.manager }

// Dispatcher returns the request router, for a caller-supplied
// transport loop to drive with server.Framer.
func (e *Engine) Dispatcher() *server.Dispatcher { return e.dispatcher }

// Close drains every open project container's resources. The Engine
// must not be used afterward.
func (e *Engine) Close() error {
	return e.manager.CloseAll()
}

// registerHandlers wires the handful of project-management request
// types spec.md §6 names onto e.dispatcher. Fit/Transform/Check
// themselves take richer arguments (a *placeholder.Placeholder schema,
// a map of data frames) than the flat Request.Payload can carry
// generically, so those remain direct project.Pipeline method calls
// from an embedder; this registers only the name-resolution surface
// (list/open/delete projects and data frames) that maps cleanly onto
// {type_, name_}.
func (e *Engine) registerHandlers() {
	e.dispatcher.Register("list_projects", server.HandlerFunc(e.handleListProjects))
	e.dispatcher.Register("open_project", server.HandlerFunc(e.handleOpenProject))
	e.dispatcher.Register("delete_project", server.HandlerFunc(e.handleDeleteProject))
	e.dispatcher.Register("list_data_frames", server.HandlerFunc(e.handleListDataFrames))
	e.dispatcher.Register("delete_data_frame", server.HandlerFunc(e.handleDeleteDataFrame))
	e.dispatcher.Register("refresh_all", server.HandlerFunc(e.handleRefreshAll))
}

func (e *Engine) handleListProjects(_ context.Context, _ server.Request) (server.Response, error) {
	names, err := e.manager.ListProjects()
	if err != nil {
		return server.Response{}, err
	}
	payload, err := marshalNames(names)
	if err != nil {
		return server.Response{}, err
	}
	return server.Response{Status: server.StatusFound, Frame: payload}, nil
}

func (e *Engine) handleOpenProject(_ context.Context, req server.Request) (server.Response, error) {
	if _, err := e.manager.Open(req.Name); err != nil {
		return server.Response{}, err
	}
	return server.Response{Status: server.StatusSuccess}, nil
}

func (e *Engine) handleDeleteProject(_ context.Context, req server.Request) (server.Response, error) {
	if err := e.manager.Delete(req.Name); err != nil {
		return server.Response{}, err
	}
	return server.Response{Status: server.StatusSuccess}, nil
}

func (e *Engine) handleListDataFrames(_ context.Context, req server.Request) (server.Response, error) {
	c, err := e.manager.Open(req.Name)
	if err != nil {
		return server.Response{}, err
	}
	payload, err := marshalNames(c.ListDataFrames())
	if err != nil {
		return server.Response{}, err
	}
	return server.Response{Status: server.StatusFound, Frame: payload}, nil
}

func (e *Engine) handleDeleteDataFrame(_ context.Context, req server.Request) (server.Response, error) {
	c, err := e.manager.Open(req.Name)
	if err != nil {
		return server.Response{}, err
	}
	if err := c.DeleteDataFrame(req.Name); err != nil {
		return server.Response{}, err
	}
	return server.Response{Status: server.StatusSuccess}, nil
}

func (e *Engine) handleRefreshAll(ctx context.Context, req server.Request) (server.Response, error) {
	c, err := e.manager.Open(req.Name)
	if err != nil {
		return server.Response{}, err
	}
	if _, err := c.RefreshAll(ctx); err != nil {
		return server.Response{}, err
	}
	return server.Response{Status: server.StatusSuccess}, nil
}

func marshalNames(names []string) ([]byte, error) {
	b, err := json.Marshal(names)
	if err != nil {
		return nil, relerr.Internal("marshaling name list: %s", err)
	}
	return b, nil
}
