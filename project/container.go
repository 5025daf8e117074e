package project

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relfeat/engine/column/encoding"
	"github.com/relfeat/engine/relerr"
	"github.com/relfeat/engine/warn"
)

var (
	frameBucket    = []byte("frames")
	pipelineBucket = []byte("pipelines")
)

// Manager resolves project names to Containers, mirroring
// driver.Driver's map of *sql.Catalog to its own *catalog wrapper: one
// Container per project directory, opened once and cached.
type Manager struct {
	root string
	log  *logrus.Entry

	mu         sync.Mutex
	containers map[string]*Container
}

// NewManager creates a Manager rooted at dir (spec §6's "configured
// project root directory"). dir is created if it does not exist.
func NewManager(dir string, log *logrus.Logger) (*Manager, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, relerr.WrapResource(errors.Wrap(err, "creating project root"))
	}
	return &Manager{
		root:       dir,
		log:        logrus.NewEntry(log).WithField("component", "project.Manager"),
		containers: make(map[string]*Container),
	}, nil
}

// ListProjects implements Project.list_projects: every subdirectory of
// the root, name-sorted.
func (m *Manager) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, relerr.WrapResource(errors.Wrap(err, "listing projects"))
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Open returns the Container for name, creating its on-disk directory
// and bolt catalog the first time it is opened.
func (m *Manager) Open(name string) (*Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.containers[name]; ok {
		return c, nil
	}

	dir := filepath.Join(m.root, name)
	if err := os.MkdirAll(filepath.Join(dir, "frames"), 0o755); err != nil {
		return nil, relerr.WrapResource(errors.Wrap(err, "creating frame directory"))
	}
	if err := os.MkdirAll(filepath.Join(dir, "pipelines"), 0o755); err != nil {
		return nil, relerr.WrapResource(errors.Wrap(err, "creating pipeline directory"))
	}

	db, err := bolt.Open(filepath.Join(dir, "catalog.bolt"), 0o600, nil)
	if err != nil {
		return nil, relerr.WrapResource(errors.Wrap(err, "opening project catalog"))
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(frameBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(pipelineBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, relerr.WrapResource(errors.Wrap(err, "initializing project catalog"))
	}

	c := &Container{
		name:      name,
		dir:       dir,
		catalog:   db,
		log:       m.log.WithField("project", name),
		Categorical: encoding.New(),
		JoinKeys:    encoding.New(),
		frames:      make(map[string]*DataFrame),
		pipelines:   make(map[string]*Pipeline),
	}
	m.containers[name] = c
	return c, nil
}

// Delete implements Project.delete: closes the container if open and
// removes its entire directory tree. Strong-write: callers must not
// hold any reference to a Container for name concurrently.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.containers[name]; ok {
		c.guard.StrongLock()
		_ = c.catalog.Close()
		c.guard.StrongUnlock()
		delete(m.containers, name)
	}

	if err := os.RemoveAll(filepath.Join(m.root, name)); err != nil {
		return relerr.WrapResource(errors.Wrap(err, "deleting project"))
	}
	return nil
}

// CloseAll closes every Container opened through this Manager, for use
// during engine shutdown.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for name, c := range m.containers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = relerr.WrapResource(errors.Wrap(err, "closing project "+name))
		}
		delete(m.containers, name)
	}
	return firstErr
}

// Container holds one project's published frames, pipelines, and the
// two dictionaries shared across every frame in the project (one for
// categorical values, one for join keys) — adapted from driver.go's
// per-catalog engine instance.
type Container struct {
	name string
	dir  string

	Categorical *encoding.Dictionary
	JoinKeys    *encoding.Dictionary

	catalog *bolt.DB
	log     *logrus.Entry

	guard     RWGuard
	frames    map[string]*DataFrame
	pipelines map[string]*Pipeline
}

func (c *Container) Name() string { return c.name }
func (c *Container) Dir() string  { return c.dir }

// ListDataFrames implements Project.list_data_frames.
func (c *Container) ListDataFrames() []string {
	c.guard.RLock()
	defer c.guard.RUnlock()
	names := make([]string, 0, len(c.frames))
	for n := range c.frames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ListPipelines implements Project.list_pipelines.
func (c *Container) ListPipelines() []string {
	c.guard.RLock()
	defer c.guard.RUnlock()
	names := make([]string, 0, len(c.pipelines))
	for n := range c.pipelines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DataFrame returns the published data frame named name, if any.
func (c *Container) DataFrame(name string) (*DataFrame, bool) {
	c.guard.RLock()
	defer c.guard.RUnlock()
	df, ok := c.frames[name]
	return df, ok
}

// Pipeline returns the published pipeline named name, if any.
func (c *Container) Pipeline(name string) (*Pipeline, bool) {
	c.guard.RLock()
	defer c.guard.RUnlock()
	p, ok := c.pipelines[name]
	return p, ok
}

// PublishDataFrame makes df visible under name: a strong write, since
// any reader already holding the old *DataFrame for name must not
// observe a half-swapped map.
func (c *Container) PublishDataFrame(name string, df *DataFrame) error {
	c.guard.WeakLock()
	defer c.guard.WeakUnlock()
	c.guard.StrongLock()
	defer c.guard.StrongUnlock()

	if err := c.catalog.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(frameBucket)
		return b.Put([]byte(name), []byte(df.frame.Name()))
	}); err != nil {
		return relerr.WrapResource(errors.Wrap(err, "publishing data frame"))
	}
	c.frames[name] = df
	c.log.WithField("data_frame", name).Info("data frame published")
	return nil
}

// PublishPipeline makes p visible under name.
func (c *Container) PublishPipeline(name string, p *Pipeline) error {
	c.guard.WeakLock()
	defer c.guard.WeakUnlock()
	c.guard.StrongLock()
	defer c.guard.StrongUnlock()

	if err := c.catalog.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pipelineBucket)
		return b.Put([]byte(name), []byte(p.id.String()))
	}); err != nil {
		return relerr.WrapResource(errors.Wrap(err, "publishing pipeline"))
	}
	c.pipelines[name] = p
	c.log.WithField("pipeline", name).Info("pipeline published")
	return nil
}

// DeleteDataFrame removes a published data frame from the catalog and
// on-disk directory.
func (c *Container) DeleteDataFrame(name string) error {
	c.guard.StrongLock()
	defer c.guard.StrongUnlock()

	if _, ok := c.frames[name]; !ok {
		return relerr.Validation("no data frame named %q", name)
	}
	delete(c.frames, name)
	if err := c.catalog.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(frameBucket).Delete([]byte(name))
	}); err != nil {
		return relerr.WrapResource(err)
	}
	return os.RemoveAll(filepath.Join(c.dir, "frames", name))
}

// DeletePipeline removes a published pipeline from the catalog and
// on-disk directory.
func (c *Container) DeletePipeline(name string) error {
	c.guard.StrongLock()
	defer c.guard.StrongUnlock()

	if _, ok := c.pipelines[name]; !ok {
		return relerr.Validation("no pipeline named %q", name)
	}
	delete(c.pipelines, name)
	if err := c.catalog.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(pipelineBucket).Delete([]byte(name))
	}); err != nil {
		return relerr.WrapResource(err)
	}
	return os.RemoveAll(filepath.Join(c.dir, "pipelines", name))
}

// RefreshAll implements Project.refresh_all: re-fits every published
// pipeline against the container's currently published data frames.
func (c *Container) RefreshAll(ctx context.Context) (map[string]*warn.Warner, error) {
	c.guard.RLock()
	pipelines := make(map[string]*Pipeline, len(c.pipelines))
	for name, p := range c.pipelines {
		pipelines[name] = p
	}
	frames := make(map[string]*DataFrame, len(c.frames))
	for name, df := range c.frames {
		frames[name] = df
	}
	c.guard.RUnlock()

	out := make(map[string]*warn.Warner, len(pipelines))
	for name, p := range pipelines {
		w, err := p.Refresh(ctx, frames)
		if err != nil {
			return out, relerr.Validation("refreshing pipeline %q: %s", name, err)
		}
		out[name] = w
	}
	return out, nil
}

// Close releases the project's bolt catalog handle.
func (c *Container) Close() error {
	return c.catalog.Close()
}
