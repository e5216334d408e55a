package tools

import (
	"context"
	"fmt"
	"time"
)

// DatetimeTool reports the current date so limitation-period and
// deadline reasoning works off real time instead of the model's
// training cutoff.
type DatetimeTool struct {
	now func() time.Time
}

// NewDatetimeTool creates the datetime tool.
func NewDatetimeTool() *DatetimeTool {
	return &DatetimeTool{now: time.Now}
}

func (t *DatetimeTool) Name() string { return "datetime" }

func (t *DatetimeTool) Description() string {
	return `Get the current date and time.

USAGE: Call when computing limitation periods, notice deadlines, or
any duration relative to today.

Input: {}
Output: current date, time, and weekday.`
}

func (t *DatetimeTool) InputType() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *DatetimeTool) Run(_ context.Context, _ string) (string, error) {
	now := t.now()
	return fmt.Sprintf("Current time: %s (%s)",
		now.Format("2006-01-02 15:04:05"), now.Weekday()), nil
}
