package actions

import (
	"context"

	"github.com/plexo/agentic/pkg/schema"
)

// UserHandler runs the "user" action: it publishes a prompt through the
// invocation's Prompter and suspends until a correlated response arrives.
type UserHandler struct{}

// NewUserHandler creates the user handler.
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

func (h *UserHandler) Type() schema.ActionType { return schema.ActionUser }

func (h *UserHandler) Run(ctx context.Context, inv Invocation) (any, error) {
	params := inv.Action.User
	if params == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "user action has no params").WithStep(inv.StepID)
	}
	if inv.Prompter == nil {
		return nil, schema.NewError(schema.ErrCodeExecution, "no prompter available for user input").WithStep(inv.StepID)
	}

	label, err := formatRequired(params.Label, inv.Context)
	if err != nil {
		return nil, err
	}
	help, err := formatRequired(params.Help, inv.Context)
	if err != nil {
		return nil, err
	}

	prompt := &schema.UserParams{
		Label:     label,
		Help:      help,
		InputType: params.InputType,
	}
	value, err := inv.Prompter.Prompt(ctx, inv.StepID, prompt)
	if err != nil {
		return nil, err
	}
	return value, nil
}
