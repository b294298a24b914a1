package cel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Input is what an acceptance rule can see about a submission.
type Input struct {
	UUID     string
	Bundle   string
	Provider string
	Payload  map[string]interface{}
}

// Evaluator compiles and runs provider acceptance rules. Compiled programs are
// cached by expression since the same few rules run for every submission.
type Evaluator struct {
	env      *cel.Env
	programs sync.Map
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("uuid", cel.StringType),
		cel.Variable("bundle", cel.StringType),
		cel.Variable("provider", cel.StringType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// ValidateRule checks that expression compiles and yields a bool.
func (e *Evaluator) ValidateRule(expression string) error {
	_, err := e.compile(expression)
	return err
}

// Evaluate runs expression against in.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, in Input) (bool, error) {
	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	vars := map[string]interface{}{
		"uuid":     in.UUID,
		"bundle":   in.Bundle,
		"provider": in.Provider,
		"payload":  normalize(in.Payload),
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// FirstRejecting returns the first rule in.Payload does not satisfy, or "" when
// every rule passes.
func (e *Evaluator) FirstRejecting(ctx context.Context, rules []string, in Input) (string, error) {
	for _, rule := range rules {
		ok, err := e.Evaluate(ctx, rule, in)
		if err != nil {
			return rule, err
		}
		if !ok {
			return rule, nil
		}
	}
	return "", nil
}

func (e *Evaluator) program(expression string) (cel.Program, error) {
	if cached, ok := e.programs.Load(expression); ok {
		return cached.(cel.Program), nil
	}

	ast, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	e.programs.Store(expression, program)
	return program, nil
}

func (e *Evaluator) compile(expression string) (*cel.Ast, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule must return bool, got %v", ast.OutputType())
	}

	return ast, nil
}

// normalize converts json.Number values left by the queue decoder into int64
// or float64 so CEL can compare them.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return v
	}
}
