package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jcdickinson/phpdomain/internal/build"
	"github.com/jcdickinson/phpdomain/internal/cas"
	"github.com/jcdickinson/phpdomain/internal/config"
	"github.com/jcdickinson/phpdomain/internal/db"
	"github.com/jcdickinson/phpdomain/internal/php"
	"github.com/jcdickinson/phpdomain/internal/rpc"
	"github.com/jcdickinson/phpdomain/internal/search"
)

// Service answers questions about one project. The daemon serves it over
// its socket and the watch command drives it in-process.
type Service struct {
	cfg     *config.Config
	logger  *slog.Logger
	builder *build.Builder
	dom     *php.Domain

	// buildMu serializes builds; buildGroup joins identical concurrent ones.
	buildMu    sync.Mutex
	buildGroup singleflight.Group

	// mu guards env and lastBuild. A published environment is never mutated;
	// every build produces a new one.
	mu        sync.RWMutex
	env       *build.Environment
	lastBuild time.Time

	dbOnce sync.Once
	db     *db.DB
	dbErr  error

	watching atomic.Bool
}

func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		logger:  logger,
		builder: build.New(cfg, logger),
		dom:     php.New(cfg.DomainOptions(), logger),
	}
}

func (s *Service) Config() *config.Config {
	return s.cfg
}

var errClosed = errors.New("service closed")

// Close releases the inventory database. Queries after Close fail.
func (s *Service) Close() error {
	s.dbOnce.Do(func() { s.dbErr = errClosed })
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Build runs an incremental build, or a full one when force is set.
// Concurrent calls with the same force flag share one build; progress is
// only reported to the caller that started it. The shared build does not
// stop when a caller gives up: ctx only bounds how long this caller waits.
func (s *Service) Build(ctx context.Context, force bool, progress func(string)) (*rpc.BuildResult, error) {
	key := "build"
	if force {
		key = "build-force"
	}

	// Progress must not reach a caller that has already returned.
	var progressMu sync.Mutex
	gone := false
	report := func(msg string) {
		progressMu.Lock()
		defer progressMu.Unlock()
		if !gone && progress != nil {
			progress(msg)
		}
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := s.buildGroup.DoChan(key, func() (interface{}, error) {
		s.buildMu.Lock()
		defer s.buildMu.Unlock()

		res, err := s.builder.Build(buildCtx, build.Options{Force: force, Progress: report})
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.env = res.Env
		s.lastBuild = time.Now()
		s.mu.Unlock()
		return &res.BuildResult, nil
	})

	select {
	case <-ctx.Done():
		progressMu.Lock()
		gone = true
		progressMu.Unlock()
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			s.logger.Debug("joined running build", "force", force)
		}
		return r.Val.(*rpc.BuildResult), nil
	}
}

// environment returns the current environment, loading the saved one or
// building the project when there is none yet.
func (s *Service) environment(ctx context.Context) (*build.Environment, error) {
	s.mu.RLock()
	env := s.env
	s.mu.RUnlock()
	if env != nil {
		return env, nil
	}

	if loaded, err := build.LoadEnvironment(s.cfg.EnvPath()); err == nil {
		s.mu.Lock()
		if s.env == nil {
			s.env = loaded
		}
		env = s.env
		s.mu.Unlock()
		return env, nil
	}

	if _, err := s.Build(ctx, false, nil); err != nil {
		return nil, fmt.Errorf("building project: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env, nil
}

func (s *Service) inventory(ctx context.Context) (*db.DB, error) {
	if _, err := s.environment(ctx); err != nil {
		return nil, err
	}
	s.dbOnce.Do(func() {
		s.db, s.dbErr = db.New(s.cfg.DBPath())
	})
	return s.db, s.dbErr
}

// Resolve looks a reference up in the project tables. Role "any" (or an
// empty role) tries every role.
func (s *Service) Resolve(ctx context.Context, req rpc.ResolveRequest) (*rpc.ResolveResponse, error) {
	env, err := s.environment(ctx)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = "any"
	}
	parseRole := role
	if role == "any" {
		parseRole = "obj"
	}
	ref, err := php.ParseReference(parseRole, req.Target)
	if err != nil {
		return &rpc.ResolveResponse{Message: err.Error()}, nil
	}
	q := ref.Query(php.AmbientState{
		Namespace:     strings.Trim(req.Namespace, php.NS),
		EnclosingType: strings.TrimPrefix(req.EnclosingType, php.NS),
	})

	var res php.Resolution
	if role == "any" {
		role, res, err = s.dom.ResolveAny(env.Tables, q)
	} else {
		res, err = s.dom.Resolve(env.Tables, q)
	}
	if err != nil {
		return &rpc.ResolveResponse{Title: ref.Title, Message: err.Error()}, nil
	}
	return &rpc.ResolveResponse{
		Found:    true,
		Role:     role,
		Name:     res.Name,
		Kind:     string(res.Kind),
		DocName:  res.DocName,
		Anchor:   res.Anchor,
		URI:      search.URI(res.Name),
		Title:    ref.Title,
		Fallback: res.Outcome == php.FallbackApplied,
		Message:  res.Title,
	}, nil
}

// Parse parses a single signature the way a directive would.
func (s *Service) Parse(req rpc.ParseRequest) *rpc.ParseResponse {
	kind, ok := php.ParseKind(req.Kind)
	if !ok {
		return &rpc.ParseResponse{Code: string(php.InvalidSignature), Error: fmt.Sprintf("unknown kind %q", req.Kind)}
	}
	st := php.AmbientState{
		Namespace:     strings.Trim(req.Namespace, php.NS),
		EnclosingType: strings.TrimPrefix(req.EnclosingType, php.NS),
		InClassBody:   req.InClassBody,
	}
	d, err := s.dom.ParseSignature(kind, req.Signature, st, req.Options)
	if err != nil {
		code := php.InvalidSignature
		var perr *php.Error
		if errors.As(err, &perr) {
			code = perr.Code
		}
		return &rpc.ParseResponse{Code: string(code), Error: err.Error()}
	}
	nodes := s.dom.Render(d)
	return &rpc.ParseResponse{
		Declaration: d,
		Nodes:       nodes,
		Text:        php.Text(nodes),
		IndexText:   s.dom.IndexText(d),
		TocName:     s.dom.TocEntryName(d, req.Options),
	}
}

func (s *Service) Search(ctx context.Context, req rpc.SearchRequest) (*rpc.SearchResponse, error) {
	database, err := s.inventory(ctx)
	if err != nil {
		return nil, err
	}
	results, err := search.NewSearcher(database).Search(req.Query, req.Kinds, req.Limit)
	if err != nil {
		return nil, err
	}
	return &rpc.SearchResponse{Results: results}, nil
}

func (s *Service) Objects(ctx context.Context, req rpc.ObjectsRequest) (*rpc.ObjectsResponse, error) {
	database, err := s.inventory(ctx)
	if err != nil {
		return nil, err
	}
	objs, err := database.ListObjects(req.Kinds, req.DocNames)
	if err != nil {
		return nil, err
	}
	resp := &rpc.ObjectsResponse{Objects: make([]rpc.ObjectResult, len(objs))}
	for i, o := range objs {
		resp.Objects[i] = search.Result(o)
	}
	return resp, nil
}

// Object returns the inventory record of a canonical name and the places
// that refer to it. Object is nil when the name is unknown.
func (s *Service) Object(ctx context.Context, name string) (*rpc.ObjectResponse, error) {
	database, err := s.inventory(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimPrefix(name, php.NS)
	obj, err := database.GetObject(name)
	if err != nil || obj == nil {
		return &rpc.ObjectResponse{}, err
	}
	res := search.Result(*obj)
	resp := &rpc.ObjectResponse{Object: &res}

	refs, err := database.RefsTo(name)
	if err != nil {
		return nil, err
	}
	for _, r := range refs {
		resp.References = append(resp.References, rpc.RefLocation{
			DocName: r.DocName, Line: r.Line, Role: r.Role, Target: r.Target,
		})
	}
	return resp, nil
}

func (s *Service) Namespaces(ctx context.Context) (*rpc.NamespacesResponse, error) {
	env, err := s.environment(ctx)
	if err != nil {
		return nil, err
	}
	return &rpc.NamespacesResponse{
		Index: php.BuildNamespaceIndex(env.Tables, s.cfg.ModIndexCommonPrefix, nil),
	}, nil
}

// Status reports on the project without building it.
func (s *Service) Status() *rpc.StatusResponse {
	resp := &rpc.StatusResponse{Root: s.cfg.Root, Watching: s.watching.Load()}

	s.mu.RLock()
	env, last := s.env, s.lastBuild
	s.mu.RUnlock()
	if env == nil {
		loaded, err := build.LoadEnvironment(s.cfg.EnvPath())
		if err != nil {
			return resp
		}
		env = loaded
		if info, err := os.Stat(s.cfg.EnvPath()); err == nil {
			last = info.ModTime()
		}
	}

	resp.Built = true
	if !last.IsZero() {
		resp.LastBuild = last.Format(time.RFC3339)
	}
	resp.Documents = len(env.Docs)
	resp.Objects = len(env.Tables.Objects)
	resp.Namespaces = len(env.Tables.Namespaces)
	if database, err := s.inventory(context.Background()); err == nil {
		if stats, err := database.Stats(); err == nil {
			resp.Unresolved = stats.Unresolved
		}
	}
	return resp
}

// ClearCache empties the doctree store and drops the saved environment, so
// the next build reads every source again.
func (s *Service) ClearCache() (*rpc.ClearCacheResponse, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	n, err := cas.Clear()
	if err != nil {
		return nil, fmt.Errorf("clearing store: %w", err)
	}
	if err := os.Remove(s.cfg.EnvPath()); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing environment: %w", err)
	}
	s.logger.Info("cache cleared", "entries", n)
	return &rpc.ClearCacheResponse{Removed: n}, nil
}
