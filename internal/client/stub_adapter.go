package client

import (
	"context"
	"strings"
)

// stubLogic is the canned plugin body returned by the stub backend.
var stubLogic = []string{
	`tracingService.Trace("Generating logic (stub)");`,
	`var target = (Entity)context.InputParameters["Target"];`,
	`var name = target.GetAttributeValue<string>("name") ?? "";`,
	`var task = new Entity("task");`,
	`task["subject"] = $"Follow-up with {name}";`,
	`task["regardingobjectid"] = target.ToEntityReference();`,
	`task["scheduledend"] = DateTime.UtcNow.AddDays(7);`,
	`service.Create(task);`,
}

// StubAdapter returns a fixed plugin body without any network call.
type StubAdapter struct{}

// NewStubAdapter creates a stub client.
func NewStubAdapter() *StubAdapter { return &StubAdapter{} }

// Name returns the backend name
func (a *StubAdapter) Name() string { return "stub" }

// Complete ignores the prompt apart from honoring cancellation.
func (a *StubAdapter) Complete(ctx context.Context, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.Join(stubLogic, "\n") + "\n", nil
}
