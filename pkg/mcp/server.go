// Package mcp exposes the pipeline engine to agents over the Model Context
// Protocol: run a definition, answer its prompts, and inspect its progress.
package mcp

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/plexo/agentic/pkg/pipeline"
)

// AgenticServerDeps holds the dependencies for creating an AgenticServer.
type AgenticServerDeps struct {
	Engine *pipeline.Engine
	Logger *slog.Logger
}

// AgenticServer wraps an MCP server with pipeline tool handlers. Started
// runs are tracked in memory for later respond/status calls.
type AgenticServer struct {
	engine    *pipeline.Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer

	mu   sync.RWMutex
	runs map[string]*pipeline.Run
}

// NewAgenticServer creates a new AgenticServer with all 4 tools registered.
func NewAgenticServer(deps AgenticServerDeps) *AgenticServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &AgenticServer{
		engine: deps.Engine,
		logger: logger,
		runs:   make(map[string]*pipeline.Run),
	}

	mcpSrv := server.NewMCPServer(
		"agentic",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Agentic executes pipeline definitions: directed graphs of predict/find/ask/web/api/user actions over a shared context. Use agentic.run to start a pipeline, agentic.respond to answer a suspended user step, agentic.status to inspect progress, and agentic.validate to check a definition without running it."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *AgenticServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *AgenticServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 5 registered MCP tools as ServerTool entries.
func (s *AgenticServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: respondTool(), Handler: s.handleRespond},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: diagramTool(), Handler: s.handleDiagram},
	}
}

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("agentic.run",
		mcp.WithDescription("Start a pipeline run from a definition"),
		mcp.WithObject("definition", mcp.Required(), mcp.Description("Pipeline definition: step id -> step, with a START entry")),
		mcp.WithObject("initial", mcp.Description("Initial context bindings (e.g. {\"query\": \"...\"})")),
		mcp.WithBoolean("wait", mcp.Description("Block until the run finishes and return its result (default: false)")),
	)
}

func respondTool() mcp.Tool {
	return mcp.NewTool("agentic.respond",
		mcp.WithDescription("Answer a suspended user step of a running pipeline"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the target run")),
		mcp.WithString("prompt_id", mcp.Description("Correlation id of the prompt being answered")),
		mcp.WithString("step_id", mcp.Description("Step id of the prompt (used when prompt_id is omitted)")),
		mcp.WithObject("response", mcp.Required(), mcp.Description("Response envelope: {\"value\": <boolean|string|string[]>}")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("agentic.status",
		mcp.WithDescription("Get the status, context, pending prompts, and event history of a run"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the run to query")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("agentic.validate",
		mcp.WithDescription("Validate a pipeline definition without running it"),
		mcp.WithObject("definition", mcp.Required(), mcp.Description("Pipeline definition to check")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("agentic.diagram",
		mcp.WithDescription("Render a pipeline definition as a Mermaid flowchart"),
		mcp.WithObject("definition", mcp.Required(), mcp.Description("Pipeline definition to render")),
		mcp.WithString("title", mcp.Description("Optional diagram title")),
	)
}
