// Package diagram renders pipeline definitions as Mermaid flowcharts for
// inspection by agents and humans.
package diagram

import (
	"fmt"
	"sort"
	"strings"

	"github.com/plexo/agentic/pkg/schema"
)

// RenderMermaid renders a pipeline definition as a Mermaid flowchart.
// Steps are emitted in deterministic order (entry step first, then sorted),
// node shapes follow the action type, and edge conditions become edge labels.
func RenderMermaid(title string, def schema.PipelineDefinition) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", title))
	}

	for _, id := range orderedStepIDs(def) {
		b.WriteString(fmt.Sprintf("    %s\n", nodeDef(id, def[id])))
	}

	for _, id := range orderedStepIDs(def) {
		for _, edge := range def[id].Next {
			label := ""
			if edge.If != "" {
				label = fmt.Sprintf("|%q|", escapeLabel(edge.If))
			}
			b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
				safeID(id), label, safeID(edge.StepID)))
		}
	}

	return b.String()
}

func orderedStepIDs(def schema.PipelineDefinition) []string {
	ids := make([]string, 0, len(def))
	for id := range def {
		if id != schema.StartStepID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if _, ok := def[schema.StartStepID]; ok {
		ids = append([]string{schema.StartStepID}, ids...)
	}
	return ids
}

// nodeDef returns a Mermaid node definition shaped by the step's action type:
// hexagons for model calls, stadiums for user gates, subroutine boxes for
// outbound requests, plain rectangles for retrieval.
func nodeDef(id string, step *schema.Step) string {
	sid := safeID(id)
	label := escapeLabel(fmt.Sprintf("%s: %s", id, step.Action.Type))

	switch step.Action.Type {
	case schema.ActionPredict:
		return fmt.Sprintf("%s{{%q}}", sid, label)
	case schema.ActionUser:
		return fmt.Sprintf("%s([%q])", sid, label)
	case schema.ActionWeb, schema.ActionAPI:
		return fmt.Sprintf("%s[[%q]]", sid, label)
	default: // find, ask
		return fmt.Sprintf("%s[%q]", sid, label)
	}
}

// safeID converts a step id to a Mermaid-safe identifier.
func safeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
