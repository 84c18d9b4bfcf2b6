package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/plexo/agentic/internal/diagram"
	"github.com/plexo/agentic/pkg/pipeline"
	"github.com/plexo/agentic/pkg/schema"
)

// handleRun starts a pipeline run from an inline definition.
func (s *AgenticServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, errResult := parseDefinition(req)
	if errResult != nil {
		return errResult, nil
	}

	initial := mcp.ParseStringMap(req, "initial", nil)
	wait := mcp.ParseBoolean(req, "wait", false)

	run, runErr := s.engine.Run(ctx, def, initial)
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run rejected: %v", runErr)), nil
	}

	s.mu.Lock()
	s.runs[run.ID()] = run
	s.mu.Unlock()

	if wait {
		ok, waitErr := run.Wait(ctx)
		if waitErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("wait failed: %v", waitErr)), nil
		}
		return marshalResult(map[string]any{
			"run_id":  run.ID(),
			"status":  run.Status(),
			"result":  ok,
			"context": run.Context(),
		})
	}

	return marshalResult(map[string]any{
		"run_id": run.ID(),
		"status": run.Status(),
	})
}

// handleRespond routes a user response to a suspended step.
func (s *AgenticServer) handleRespond(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	run, found := s.getRun(runID)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("unknown run %q", runID)), nil
	}

	response := mcp.ParseStringMap(req, "response", nil)
	value, hasValue := response["value"]
	if !hasValue {
		return mcp.NewToolResultError("response must carry a \"value\" field"), nil
	}

	resp := schema.UserResponse{
		PromptID: req.GetString("prompt_id", ""),
		StepID:   req.GetString("step_id", ""),
		Value:    value,
	}
	if resp.PromptID == "" && resp.StepID == "" {
		return mcp.NewToolResultError("one of prompt_id or step_id is required"), nil
	}

	if respondErr := run.Respond(resp); respondErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("respond failed: %v", respondErr)), nil
	}

	return marshalResult(map[string]any{
		"ok":     true,
		"run_id": runID,
	})
}

// handleStatus returns a full snapshot of one run.
func (s *AgenticServer) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}

	run, found := s.getRun(runID)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("unknown run %q", runID)), nil
	}

	return marshalResult(map[string]any{
		"run_id":          runID,
		"status":          run.Status(),
		"context":         run.Context(),
		"pending_prompts": run.PendingPrompts(),
		"events":          run.History(),
	})
}

// handleValidate checks a definition without running it.
func (s *AgenticServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, errResult := parseDefinition(req)
	if errResult != nil {
		return errResult, nil
	}

	result := s.engine.Validate(def)
	return marshalResult(map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

// handleDiagram renders a definition as a Mermaid flowchart. The definition
// is validated first so the diagram never shows an unrunnable pipeline.
func (s *AgenticServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, errResult := parseDefinition(req)
	if errResult != nil {
		return errResult, nil
	}

	if result := s.engine.Validate(def); !result.Valid() {
		return marshalResult(map[string]any{
			"valid":  false,
			"errors": result.Errors,
		})
	}

	title := req.GetString("title", "")
	return marshalResult(map[string]any{
		"valid":   true,
		"mermaid": diagram.RenderMermaid(title, def),
	})
}

// parseDefinition decodes the "definition" argument into a typed definition.
// The JSON round-trip runs the tagged-union decoding, so unknown action
// types are rejected here rather than mid-run.
func parseDefinition(req mcp.CallToolRequest) (schema.PipelineDefinition, *mcp.CallToolResult) {
	raw := mcp.ParseStringMap(req, "definition", nil)
	if raw == nil {
		return nil, mcp.NewToolResultError("definition is required")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", err))
	}
	var def schema.PipelineDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", err))
	}
	return def, nil
}

func (s *AgenticServer) getRun(runID string) (*pipeline.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	return run, ok
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
