package validation

import (
	"fmt"
	"sort"

	"github.com/plexo/agentic/pkg/schema"
)

// validateSemantic performs the checks JSON Schema cannot express: the union
// invariant of each action, edge target existence, and graph shape.
func validateSemantic(def schema.PipelineDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if _, ok := def[schema.StartStepID]; !ok {
		result.AddError(schema.StartStepID, schema.ErrCodeValidation,
			fmt.Sprintf("definition has no %q entry step", schema.StartStepID))
	}

	ids := make([]string, 0, len(def))
	for id := range def {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		step := def[id]
		path := fmt.Sprintf("steps[%s]", id)
		if step == nil {
			result.AddError(path, schema.ErrCodeValidation, "step is null")
			continue
		}
		validateAction(step.Action, path+".action", result)

		for j, edge := range step.Next {
			if edge.StepID == "" {
				result.AddError(fmt.Sprintf("%s.next[%d]", path, j),
					schema.ErrCodeValidation, "edge has no target step id")
				continue
			}
			if _, ok := def[edge.StepID]; !ok {
				// A dangling edge fails its branch at runtime rather than
				// rejecting the definition, so it is only worth a warning.
				result.AddWarning(fmt.Sprintf("%s.next[%d]", path, j),
					schema.ErrCodeValidation,
					fmt.Sprintf("references non-existent step %q", edge.StepID))
			}
		}
	}

	result.Merge(validateGraph(def))
	return result
}

// validateAction enforces the tagged-union invariant: a known type with its
// matching params populated.
func validateAction(action *schema.Action, path string, result *schema.ValidationResult) {
	if action == nil {
		result.AddError(path, schema.ErrCodeValidation, "step has no action")
		return
	}

	switch action.Type {
	case schema.ActionPredict:
		p := action.Predict
		if p == nil || p.Query == "" {
			result.AddError(path, schema.ErrCodeValidation, "predict action requires a query")
			return
		}
		if len(p.Outputs) == 0 {
			result.AddError(path+".outputs", schema.ErrCodeValidation,
				"predict action requires at least one output")
		}
		for name, spec := range p.Outputs {
			validateOutputSpec(spec, fmt.Sprintf("%s.outputs[%s]", path, name), result)
		}
	case schema.ActionFind:
		if action.Find == nil || action.Find.Query == "" {
			result.AddError(path, schema.ErrCodeValidation, "find action requires a query")
		}
	case schema.ActionAsk:
		p := action.Ask
		if p == nil || p.Query == "" {
			result.AddError(path, schema.ErrCodeValidation, "ask action requires a query")
			return
		}
		for name, spec := range p.Outputs {
			validateOutputSpec(spec, fmt.Sprintf("%s.outputs[%s]", path, name), result)
		}
	case schema.ActionWeb:
		p := action.Web
		if p == nil || p.URL == "" {
			result.AddError(path, schema.ErrCodeValidation, "web action requires a url")
			return
		}
		if len(p.Outputs) == 0 {
			result.AddError(path+".outputs", schema.ErrCodeValidation,
				"web action requires at least one output selector")
		}
	case schema.ActionAPI:
		p := action.API
		if p == nil || p.URL == "" {
			result.AddError(path, schema.ErrCodeValidation, "api action requires a url")
			return
		}
		if p.Method != "GET" && p.Method != "POST" {
			result.AddError(path+".method", schema.ErrCodeValidation,
				fmt.Sprintf("api method must be GET or POST, got %q", p.Method))
		}
	case schema.ActionUser:
		p := action.User
		if p == nil || p.Label == "" {
			result.AddError(path, schema.ErrCodeValidation, "user action requires a label")
			return
		}
		switch p.InputType {
		case schema.UserInputBoolean, schema.UserInputChoice, schema.UserInputText:
		default:
			result.AddError(path+".input_type", schema.ErrCodeValidation,
				fmt.Sprintf("unknown user input type %q", p.InputType))
		}
	default:
		result.AddError(path+".type", schema.ErrCodeValidation,
			fmt.Sprintf("unknown action type %q", action.Type))
	}
}

func validateOutputSpec(spec *schema.OutputSpec, path string, result *schema.ValidationResult) {
	if spec == nil {
		result.AddError(path, schema.ErrCodeValidation, "output spec is null")
		return
	}
	switch spec.Type {
	case "string", "number", "boolean":
	case "array":
		if spec.Items == nil {
			result.AddError(path+".items", schema.ErrCodeValidation,
				"array output requires an items spec")
			return
		}
		validateOutputSpec(spec.Items, path+".items", result)
	default:
		result.AddError(path+".type", schema.ErrCodeValidation,
			fmt.Sprintf("unknown output type %q", spec.Type))
	}
}

// validateGraph performs cycle detection (Kahn's algorithm) over the edge
// set and warns about steps unreachable from the entry step. The execution
// context is write-once per step, so a cycle could never complete and is
// rejected outright.
func validateGraph(def schema.PipelineDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	// edges[id] = targets of id, inDegree counts incoming edges.
	edges := make(map[string][]string, len(def))
	inDegree := make(map[string]int, len(def))
	for id := range def {
		inDegree[id] = 0
	}
	for id, step := range def {
		if step == nil {
			continue
		}
		seen := make(map[string]bool, len(step.Next))
		for _, e := range step.Next {
			if _, ok := def[e.StepID]; !ok || seen[e.StepID] {
				continue // dangling refs already warned by semantic
			}
			seen[e.StepID] = true
			edges[id] = append(edges[id], e.StepID)
			inDegree[e.StepID]++
		}
	}

	queue := make([]string, 0, len(def))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, target := range edges[node] {
			inDegree[target]--
			if inDegree[target] == 0 {
				queue = append(queue, target)
			}
		}
	}

	if visited != len(def) {
		result.AddError("steps", schema.ErrCodeCycleDetected, "pipeline contains a cycle")
		return result // cycle makes reachability analysis meaningless
	}

	// Reachability: BFS from the entry step.
	reachable := map[string]bool{schema.StartStepID: true}
	bfs := []string{schema.StartStepID}
	for len(bfs) > 0 {
		node := bfs[0]
		bfs = bfs[1:]
		for _, target := range edges[node] {
			if !reachable[target] {
				reachable[target] = true
				bfs = append(bfs, target)
			}
		}
	}

	ids := make([]string, 0, len(def))
	for id := range def {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !reachable[id] {
			result.AddWarning(fmt.Sprintf("steps[%s]", id), schema.ErrCodeValidation,
				fmt.Sprintf("step %q is unreachable from %s", id, schema.StartStepID))
		}
	}

	return result
}
