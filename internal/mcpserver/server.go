// Package mcpserver exposes the evaluation engine as an MCP tool
// server over stdio (§6): check_package and check_lockfile. The server
// must never write anything but protocol frames to stdout; all
// diagnostics go to stderr via slog.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/git-pkgs/safe-pkgs/internal/config"
	"github.com/git-pkgs/safe-pkgs/internal/core"
	"github.com/git-pkgs/safe-pkgs/internal/lockfile"
	"github.com/git-pkgs/safe-pkgs/internal/orchestrator"
)

const (
	serverName    = "safe-pkgs"
	serverVersion = "1.0.0"
)

// Server wires the orchestrator into MCP tool handlers.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	client       *core.Client
	config       *config.Config
	logger       *slog.Logger
}

// New creates a Server backed by orch, evaluating every request against
// cfg.
func New(orch *orchestrator.Orchestrator, client *core.Client, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{orchestrator: orch, client: client, config: cfg, logger: logger}
}

// CheckPackageInput is the input schema for the check_package tool.
type CheckPackageInput struct {
	Name     string `json:"name" jsonschema:"the package name to evaluate"`
	Version  string `json:"version,omitempty" jsonschema:"the version to evaluate; latest if omitted"`
	Registry string `json:"registry,omitempty" jsonschema:"the registry key, e.g. npm, cargo, pypi, gem, golang; npm if omitted"`
}

// CheckLockfileInput is the input schema for the check_lockfile tool.
type CheckLockfileInput struct {
	Path     string `json:"path,omitempty" jsonschema:"path to the project's manifest/lockfile; the registry's conventional filename if omitted"`
	Registry string `json:"registry,omitempty" jsonschema:"the registry key that owns this manifest format; npm if omitted"`
}

// CheckLockfileOutput wraps the ordered decisions produced by
// expanding a lockfile, since the MCP generic tool API returns a single
// structured value rather than a bare slice.
type CheckLockfileOutput struct {
	Decisions []core.Decision `json:"decisions"`
}

// NewMCPServer builds the underlying *mcp.Server with both tools
// registered.
func (s *Server) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_package",
		Description: "Evaluate a single package/version against safety checks and return a Decision.",
	}, s.handleCheckPackage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_lockfile",
		Description: "Expand a project manifest/lockfile and evaluate every declared package, sorted by name.",
	}, s.handleCheckLockfile)

	return server
}

// defaultRegistry is assumed when a tool call omits the optional
// registry parameter, matching the CLI's own --registry default
// (cmd/safe-pkgs/check.go, cmd/safe-pkgs/audit.go).
const defaultRegistry = "npm"

func (s *Server) handleCheckPackage(ctx context.Context, req *mcp.CallToolRequest, input CheckPackageInput) (*mcp.CallToolResult, core.Decision, error) {
	registry := input.Registry
	if registry == "" {
		registry = defaultRegistry
	}

	ref := core.PackageRef{Registry: registry, Name: input.Name, Version: input.Version}
	decision, err := s.orchestrator.Evaluate(ctx, ref, s.config)
	if err != nil {
		s.logger.Error("check_package failed", "name", input.Name, "registry", registry, "error", err)
		return nil, core.Decision{}, err
	}
	return nil, decision, nil
}

func (s *Server) handleCheckLockfile(ctx context.Context, req *mcp.CallToolRequest, input CheckLockfileInput) (*mcp.CallToolResult, CheckLockfileOutput, error) {
	registry := input.Registry
	if registry == "" {
		registry = defaultRegistry
	}
	path := input.Path
	if path == "" {
		path = lockfile.DefaultPath(registry)
	}

	refs, err := lockfile.Expand(s.client, registry, path)
	if err != nil {
		// §7: a malformed/unsupported lockfile aborts the expansion with
		// a single fail-closed decision, not a transport-level error.
		s.logger.Error("check_lockfile expansion failed", "path", path, "registry", registry, "error", err)
		return nil, CheckLockfileOutput{Decisions: []core.Decision{{
			Allow:   false,
			Risk:    core.RiskCritical,
			Reasons: []string{err.Error()},
		}}}, nil
	}

	decisions, errs := s.orchestrator.EvaluateAll(ctx, refs, s.config)
	for i, err := range errs {
		if err != nil {
			s.logger.Warn("check_lockfile entry failed", "package", refs[i].Name, "error", err)
		}
	}

	return nil, CheckLockfileOutput{Decisions: decisions}, nil
}

// Run serves MCP tool calls over stdio until the transport closes or
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := s.NewMCPServer()
	return server.Run(ctx, &mcp.StdioTransport{})
}
