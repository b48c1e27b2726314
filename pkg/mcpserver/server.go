// Package mcpserver exposes the catalog lookups as MCP tools so an agent
// host can discover plugins and pull entity bodies on demand.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/logger"
	"github.com/jingkaihe/pluginreg/pkg/version"
)

const serverName = "pluginreg"

const instructions = `Plugin marketplace registry. Call list_plugins to discover plugins,
entities_for to see which agents, commands and skills a plugin provides, and
load_entity_body only for the entity you are about to use.`

// Handler answers tool calls against the active catalog of a registry.
type Handler struct {
	registry *catalog.Registry
}

// NewHandler returns a tool handler over registry.
func NewHandler(registry *catalog.Registry) *Handler {
	return &Handler{registry: registry}
}

// New builds an MCP server with the catalog tools registered.
func New(registry *catalog.Registry) *server.MCPServer {
	h := NewHandler(registry)

	s := server.NewMCPServer(
		serverName,
		version.Resolved().Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	s.AddTool(mcp.NewTool("list_plugins",
		mcp.WithDescription("List marketplace plugins in declaration order"),
		mcp.WithString("category", mcp.Description("Only list plugins in this category")),
	), h.ListPlugins)

	s.AddTool(mcp.NewTool("resolve_plugin",
		mcp.WithDescription("Return the full record of one plugin"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Plugin identifier")),
	), h.ResolvePlugin)

	s.AddTool(mcp.NewTool("entities_for",
		mcp.WithDescription("List the agent, command and skill identifiers a plugin provides"),
		mcp.WithString("plugin", mcp.Required(), mcp.Description("Plugin identifier")),
	), h.EntitiesFor)

	s.AddTool(mcp.NewTool("load_entity_body",
		mcp.WithDescription("Load the definition of one entity"),
		mcp.WithString("ref", mcp.Required(),
			mcp.Description("Entity reference as plugin/category/entity, or plugin:command")),
	), h.LoadEntityBody)

	return s
}

// ServeStdio serves the tools over stdin and stdout until the client
// disconnects.
func ServeStdio(ctx context.Context, registry *catalog.Registry) error {
	logger.G(ctx).Info("serving catalog tools over stdio")
	if err := server.ServeStdio(New(registry)); err != nil {
		return errors.Wrap(err, "MCP server failed")
	}
	return nil
}

// ListPlugins handles list_plugins.
func (h *Handler) ListPlugins(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := h.registry.Active()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	category := stringArg(req, "category")
	plugins := make([]catalog.PluginSummary, 0, c.Len())
	for _, p := range c.Plugins() {
		if category != "" && p.Category != category {
			continue
		}
		plugins = append(plugins, p)
	}
	return jsonResult(plugins)
}

// ResolvePlugin handles resolve_plugin.
func (h *Handler) ResolvePlugin(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := requireArg(req, "id")
	if res != nil {
		return res, nil
	}
	c, err := h.registry.Active()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := c.Resolve(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(p)
}

// EntitiesFor handles entities_for.
func (h *Handler) EntitiesFor(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := requireArg(req, "plugin")
	if res != nil {
		return res, nil
	}
	c, err := h.registry.Active()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	set, err := c.EntitiesFor(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(set)
}

// LoadEntityBody handles load_entity_body. The result is the entity text
// with its frontmatter removed.
func (h *Handler) LoadEntityBody(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, res := requireArg(req, "ref")
	if res != nil {
		return res, nil
	}
	ref, err := catalog.ParseRef(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := h.registry.Active()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := c.LoadEntityBody(ctx, ref)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			logger.G(ctx).WithError(err).WithField("ref", ref.String()).Warn("failed to load entity body")
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(body.Text), nil
}

func stringArg(req mcp.CallToolRequest, name string) string {
	v, _ := req.GetArguments()[name].(string)
	return v
}

func requireArg(req mcp.CallToolRequest, name string) (string, *mcp.CallToolResult) {
	v := stringArg(req, name)
	if v == "" {
		return "", mcp.NewToolResultError(fmt.Sprintf("missing required argument %q", name))
	}
	return v, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode tool result")
	}
	return mcp.NewToolResultText(string(data)), nil
}
