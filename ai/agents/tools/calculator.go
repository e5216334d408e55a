package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// CalculatorTool evaluates arithmetic formulas for compensation,
// sentencing-range, and litigation-fee computations. Formulas are CEL
// expressions over named numeric variables, e.g.
// monthly_salary * years_of_service for statutory severance.
type CalculatorTool struct{}

// NewCalculatorTool creates the calculator tool.
func NewCalculatorTool() *CalculatorTool { return &CalculatorTool{} }

func (t *CalculatorTool) Name() string { return "calculator" }

func (t *CalculatorTool) Description() string {
	return `Evaluate an arithmetic formula with named variables.

USAGE: Express the legal computation as a formula, then supply the
extracted parameters as variables.
Example severance (N months of salary):
{"expression": "monthly_salary * years_of_service",
 "variables": {"monthly_salary": 8000, "years_of_service": 3}}

Input: {"expression": "...", "variables": {"name": number, ...}}
Output: the numeric result.`
}

func (t *CalculatorTool) InputType() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"expression": map[string]interface{}{"type": "string", "description": "arithmetic formula over the variables"},
			"variables":  map[string]interface{}{"type": "object", "description": "numeric variable bindings"},
		},
		"required": []string{"expression"},
	}
}

func (t *CalculatorTool) Run(_ context.Context, inputJSON string) (string, error) {
	var input struct {
		Expression string             `json:"expression"`
		Variables  map[string]float64 `json:"variables"`
	}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if strings.TrimSpace(input.Expression) == "" {
		return "", fmt.Errorf("expression is required")
	}

	opts := make([]cel.EnvOption, 0, len(input.Variables))
	for name := range input.Variables {
		opts = append(opts, cel.Variable(name, cel.DoubleType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return "", fmt.Errorf("build env: %w", err)
	}

	ast, issues := env.Compile(input.Expression)
	if issues != nil && issues.Err() != nil {
		return "", fmt.Errorf("invalid expression: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return "", fmt.Errorf("build program: %w", err)
	}

	vars := make(map[string]any, len(input.Variables))
	for name, v := range input.Variables {
		vars[name] = v
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}

	return fmt.Sprintf("%v", out.Value()), nil
}
