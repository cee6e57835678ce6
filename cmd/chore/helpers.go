package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/joss/chore/internal/cache"
	"github.com/joss/chore/internal/config"
	"github.com/joss/chore/internal/exec"
	"github.com/joss/chore/internal/logging"
	"github.com/joss/chore/internal/runner"
	"github.com/joss/chore/internal/scm"
	"github.com/joss/chore/internal/workspace"
)

// app holds the wired collaborators for one command invocation.
type app struct {
	root     string
	cfg      *config.RootConfig
	paths    config.Paths
	packages *workspace.Graph
	cache    *cache.Manager
	runner   *runner.Runner

	log *logging.Logger
}

// newApp locates the workspace root and assembles the full stack.
func newApp() (*app, error) {
	cwd := flagCwd
	if cwd == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	root, err := config.FindRoot(cwd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	pkgs, err := workspace.Discover(root, cfg.Workspaces)
	if err != nil {
		return nil, err
	}
	graph, err := workspace.BuildGraph(pkgs)
	if err != nil {
		return nil, err
	}

	paths := config.NewPaths(root)
	execRunner := exec.Default
	src := scm.Detect(root, execRunner)
	log := logging.New("cli")

	var remote cache.RemoteClient
	if cfg.RemoteCache.Enabled {
		token := cfg.RemoteCache.Token
		if token == "" {
			token = os.Getenv("CHORE_REMOTE_CACHE_TOKEN")
		}
		remote = cache.NewHTTPClient(cfg.RemoteCache.URL, token)
	}

	// The index is advisory; a broken sqlite file shouldn't stop runs.
	idx, err := cache.OpenIndex(paths.CacheDir)
	if err != nil {
		log.Warn("index_open_failed", map[string]any{"dir": paths.CacheDir}, err)
		idx = nil
	}

	mgr := cache.NewManager(cache.Options{
		Root:   root,
		Dir:    paths.CacheDir,
		Remote: remote,
		Index:  idx,
	})

	snap := config.CaptureEnv()
	return &app{
		root:     root,
		cfg:      cfg,
		paths:    paths,
		packages: graph,
		cache:    mgr,
		runner:   runner.New(root, cfg, graph, src, execRunner, mgr, snap),
		log:      log,
	}, nil
}

// close releases the index handle.
func (a *app) close() {
	if idx := a.cache.Index(); idx != nil {
		idx.Close()
	}
}

// pretty reports whether colored human output should be used.
func pretty() bool {
	if flagNoColor || flagJSON {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// applyColorMode syncs the fatih/color global switch with our flags.
func applyColorMode() {
	if !pretty() {
		color.NoColor = true
	}
}
