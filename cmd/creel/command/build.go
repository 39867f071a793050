package command

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmilitzer/creel/pkg/creel"
	"github.com/mmilitzer/creel/pkg/creelconfig"
	"github.com/mmilitzer/creel/pkg/creelmodule"
	"github.com/mmilitzer/creel/pkg/creelrepo"
	"github.com/mmilitzer/creel/pkg/creelrepo/httprepo"
	"github.com/mmilitzer/creel/pkg/creelrepo/localrepo"
	"github.com/mmilitzer/creel/pkg/creelresolve"
)

// registry returns the default repository plugin registry: "local" and
// "http", the two technologies this module ships.
func registry(ctx context.Context) *creelrepo.Registry {
	r := creelrepo.NewRegistry()
	r.Register(localrepo.Technology, localrepo.Factory)
	r.Register(httprepo.Technology, httprepo.Factory(ctx))
	return r
}

// buildEngine wires a creel.Engine from a decoded configuration: registers
// repositories, explicit specifications, exclusions, and run options.
func buildEngine(ctx context.Context, cfg *creelconfig.Config, notifier creelresolve.Notifier) (*creel.Engine, error) {
	engine := creel.New()
	engine.SetRoot(cfg.Root)
	engine.SetStateFile(cfg.StateFile)
	engine.SetCacheDir(cfg.CacheDir)
	engine.SetWorkers(cfg.Workers)
	engine.SetOverwrite(cfg.Overwrite)
	engine.SetAlgorithm(cfg.Algorithm())
	engine.SetNotifier(notifier)
	engine.SetFetcher(creel.SchemeFetcher{HTTP: httprepo.Fetcher{Client: http.DefaultClient}})

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	engine.SetConflictPolicy(policy)

	reg := registry(ctx)
	for _, repoCfg := range cfg.Repositories {
		repo, err := reg.New(repoCfg.Type, repoCfg.ID, repoCfg.Options)
		if err != nil {
			return nil, fmt.Errorf("repository %q: %w", repoCfg.ID, err)
		}
		engine.AddRepository(repo)
	}

	for _, moduleCfg := range cfg.Modules {
		engine.AddModuleSpecification(
			creelmodule.NewSpecification(moduleCfg.RepositoryType, moduleCfg.Group, moduleCfg.Name, moduleCfg.VersionRange),
			true,
		)
	}
	for _, exclusionCfg := range cfg.Exclusions {
		engine.AddExclusion(
			creelmodule.NewSpecification(exclusionCfg.RepositoryType, exclusionCfg.Group, exclusionCfg.Name, exclusionCfg.VersionRange),
		)
	}

	return engine, nil
}
