package executor

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Builtins returns the tools every agentd instance ships with
func Builtins() []Tool {
	return []Tool{currentTimeTool(time.Now), calculatorTool()}
}

func currentTimeTool(now func() time.Time) Tool {
	return FuncTool{
		Def: ToolDefinition{
			Name:        "current_time",
			Description: "Returns the current date and time in RFC 3339 format, optionally in an IANA time zone.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"timezone": map[string]interface{}{
						"type":        "string",
						"description": "IANA time zone name such as Europe/Berlin; defaults to UTC",
					},
				},
			},
			Timeout: 2 * time.Second,
		},
		Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			loc := time.UTC
			if tz, ok := args["timezone"].(string); ok && tz != "" {
				l, err := time.LoadLocation(tz)
				if err != nil {
					return "", fmt.Errorf("unknown timezone %q", tz)
				}
				loc = l
			}
			return now().In(loc).Format(time.RFC3339), nil
		},
	}
}

func calculatorTool() Tool {
	return FuncTool{
		Def: ToolDefinition{
			Name:        "calculator",
			Description: "Applies a basic arithmetic operation (add, subtract, multiply, divide, power) to two numbers.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"operation": map[string]interface{}{
						"type": "string",
						"enum": []string{"add", "subtract", "multiply", "divide", "power"},
					},
					"a": map[string]interface{}{"type": "number"},
					"b": map[string]interface{}{"type": "number"},
				},
				"required": []string{"operation", "a", "b"},
			},
			Timeout: 2 * time.Second,
		},
		Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			a, err := number(args, "a")
			if err != nil {
				return "", err
			}
			b, err := number(args, "b")
			if err != nil {
				return "", err
			}
			op, _ := args["operation"].(string)

			var result float64
			switch op {
			case "add":
				result = a + b
			case "subtract":
				result = a - b
			case "multiply":
				result = a * b
			case "divide":
				if b == 0 {
					return "", fmt.Errorf("division by zero")
				}
				result = a / b
			case "power":
				result = math.Pow(a, b)
			default:
				return "", fmt.Errorf("unsupported operation %q", op)
			}
			return strconv.FormatFloat(result, 'f', -1, 64), nil
		},
	}
}

func number(args map[string]interface{}, key string) (float64, error) {
	switch v := args[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q is not a number", key)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("missing argument %q", key)
	default:
		return 0, fmt.Errorf("argument %q is not a number", key)
	}
}
