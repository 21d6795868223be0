package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	ctxstore "github.com/dexterhq/dexter/internal/context"

	"github.com/dexterhq/dexter/internal/agent"
	"github.com/dexterhq/dexter/internal/agent/providers"
	"github.com/dexterhq/dexter/internal/config"
	"github.com/dexterhq/dexter/internal/memory"
	"github.com/dexterhq/dexter/internal/observability"
	"github.com/dexterhq/dexter/internal/sessions"
	"github.com/dexterhq/dexter/internal/skills"
	"github.com/dexterhq/dexter/internal/tools/browser"
	exectools "github.com/dexterhq/dexter/internal/tools/exec"
	"github.com/dexterhq/dexter/internal/tools/files"
	"github.com/dexterhq/dexter/internal/tools/websearch"
)

// buildResult bundles everything a process entry point needs to shut down
// cleanly alongside the runtime itself.
type buildResult struct {
	runtime     *agent.Runtime
	logger      *observability.Logger
	browserPool *browser.Pool
}

// workspaceBaseDir returns cfg.Workspace.Path, defaulting to ".dexter" when
// unset, as the root for the sessions/context/memory/scratchpad sub-dirs.
func workspaceBaseDir(cfg *config.Config) string {
	baseDir := strings.TrimSpace(cfg.Workspace.Path)
	if baseDir == "" {
		baseDir = ".dexter"
	}
	return baseDir
}

// openSessionStore opens just the session store, for inspection commands
// that don't need the full runtime (model credentials, tools, skills).
func openSessionStore(ctx context.Context, cfg *config.Config) (sessions.Store, error) {
	return sessions.Open(ctx, sessions.Config{
		Backend: sessions.BackendFile,
		BaseDir: filepath.Join(workspaceBaseDir(cfg), "sessions"),
	})
}

// openMemoryStore opens just the memory store, for inspection commands.
func openMemoryStore(cfg *config.Config) memory.Store {
	return memory.NewFileStore(filepath.Join(workspaceBaseDir(cfg), "memory"))
}

// buildRuntime constructs a fully wired Runtime from cfg: the model
// capability, the persistence trio, every built-in tool, and any eligible
// skill's tools. It is the one place cmd/dexter assembles the engine;
// run and serve both call it.
func buildRuntime(ctx context.Context, cfg *config.Config) (*buildResult, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:               cfg.Logging.Level,
		Format:              cfg.Logging.Format,
		File:                cfg.Logging.File,
		RotationMaxSizeMB:   cfg.Logging.RotationMaxSizeMB,
		RetentionDays:       cfg.Logging.RetentionDays,
		RetentionMaxBackups: cfg.Logging.RetentionMaxBackups,
		Compress:            cfg.Logging.Compression,
	})

	model, err := buildModel(cfg, cfg.LLM.DefaultProvider)
	if err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}

	baseDir := workspaceBaseDir(cfg)

	sessionStore, err := openSessionStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	toolCtxStore, err := ctxstore.NewStoreWithIndex(filepath.Join(baseDir, "context"))
	if err != nil {
		logger.Warn(ctx, "sqlite tool-context index unavailable, falling back to in-memory pointers", "error", err)
		toolCtxStore = ctxstore.NewStore(filepath.Join(baseDir, "context"))
	}
	memoryStore := openMemoryStore(cfg)

	runtime := agent.NewRuntime(agent.RuntimeOptions{
		Model:            model,
		ScratchpadDir:    filepath.Join(baseDir, "scratchpad"),
		MaxIterations:    cfg.Tools.Execution.MaxIterations,
		ToolTimeout:      cfg.Tools.Execution.Timeout,
		ToolMaxAttempts:  cfg.Tools.Execution.MaxAttempts,
		ToolRetryBackoff: cfg.Tools.Execution.RetryBackoff,
		Logger:           logger,
	}, sessionStore, toolCtxStore, memoryStore, nil)

	browserPool, err := registerTools(ctx, runtime, cfg, baseDir, logger)
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	return &buildResult{runtime: runtime, logger: logger, browserPool: browserPool}, nil
}

// buildModel resolves providerName against cfg.LLM.Providers and constructs
// the matching agent.ModelCapability. Only anthropic and openai are wired;
// other provider names fail with a clear error rather than silently
// degrading to a default.
func buildModel(cfg *config.Config, providerName string) (agent.ModelCapability, error) {
	providerName = strings.TrimSpace(strings.ToLower(providerName))
	if providerName == "" {
		providerName = "anthropic"
	}
	providerCfg := cfg.LLM.Providers[providerName]

	switch providerName {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       providerCfg.APIKey,
			BaseURL:      providerCfg.BaseURL,
			DefaultModel: providerCfg.DefaultModel,
		})
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       providerCfg.APIKey,
			DefaultModel: providerCfg.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", providerName)
	}
}

// registerTools builds every built-in tool plus any eligible skill's tools
// and registers them on runtime. It returns the browser pool (if the
// browser tool was enabled) so the caller can close it on shutdown.
func registerTools(ctx context.Context, runtime *agent.Runtime, cfg *config.Config, baseDir string, logger *observability.Logger) (*browser.Pool, error) {
	fileCfg := files.Config{Workspace: cfg.Workspace.Path}
	runtime.RegisterTool(files.NewReadTool(fileCfg))
	runtime.RegisterTool(files.NewWriteTool(fileCfg))
	runtime.RegisterTool(files.NewEditTool(fileCfg))
	runtime.RegisterTool(files.NewListDirTool(fileCfg))
	runtime.RegisterTool(files.NewGrepTool(fileCfg))
	runtime.RegisterTool(files.NewApplyPatchTool(fileCfg))

	execManager := exectools.NewManager(cfg.Workspace.Path)
	runtime.RegisterTool(exectools.NewExecTool("exec", execManager))
	runtime.RegisterTool(exectools.NewProcessTool(execManager))

	if cfg.Tools.WebSearch.Enabled {
		runtime.RegisterTool(websearch.NewWebSearchTool(&websearch.Config{
			SearXNGURL:  cfg.Tools.WebSearch.URL,
			BraveAPIKey: cfg.Tools.WebSearch.BraveAPIKey,
		}))
	}

	var pool *browser.Pool
	if cfg.Tools.Browser.Enabled {
		var err error
		pool, err = browser.NewPool(browser.PoolConfig{
			Headless:  cfg.Tools.Browser.Headless,
			RemoteURL: cfg.Tools.Browser.URL,
			Timeout:   30 * time.Second,
		})
		if err != nil {
			logger.Warn(ctx, "browser pool unavailable, browser tools disabled", "error", err)
		} else {
			runtime.RegisterTool(browser.NewBrowserTool(pool))
			runtime.RegisterTool(browser.NewNavigateTool(pool))
			runtime.RegisterTool(browser.NewReadTool(pool))
		}
	}

	skillManager, err := skills.NewManager(&cfg.Skills, cfg.Workspace.Path, nil)
	if err != nil {
		return pool, fmt.Errorf("create skill manager: %w", err)
	}
	if err := skillManager.Discover(ctx); err != nil {
		logger.Warn(ctx, "skill discovery failed", "error", err)
	} else {
		runtime.RegisterTool(skills.NewMetaTool(skillManager))
		for _, skill := range skillManager.ListEligible() {
			for _, tool := range skills.BuildSkillTools(skill, execManager) {
				runtime.RegisterTool(tool)
			}
		}
	}

	return pool, nil
}
