// Package builtin provides small self-contained tools that do not require an
// external server: date/time, float arithmetic, and an HTML report reader.
// They are handy for smoke-testing an agent before wiring real database tools.
package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/datatalk-ai/datatalk/pkg/textproc"
	"github.com/datatalk-ai/datatalk/tool"
)

// maxReportBody bounds how much of a report page is read.
const maxReportBody = 2 << 20

// CurrentDatetime reports the current date and time.
func CurrentDatetime() *tool.Tool {
	return &tool.Tool{
		Name:        "current_datetime",
		Description: "Returns the current date and time. Use this when the user asks about the current date or time.",
		Parameters:  []tool.Parameter{},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			now := time.Now()
			return now.Format("Today is 2006-01-02 and the current time is 15:04:05"), nil
		},
	}
}

// Add adds two float numbers.
func Add() *tool.Tool {
	return arithmeticTool("add", "Add two float numbers.", func(a, b float64) float64 {
		return a + b
	})
}

// Subtract subtracts the second float number from the first.
func Subtract() *tool.Tool {
	return arithmeticTool("subtract", "Subtract two float numbers.", func(a, b float64) float64 {
		return a - b
	})
}

// Multiply multiplies two float numbers together.
func Multiply() *tool.Tool {
	return arithmeticTool("multiply", "Multiply two float numbers together.", func(a, b float64) float64 {
		return a * b
	})
}

// Divide divides the first float number by the second. Division by zero
// yields 0 rather than an error so the agent loop keeps moving.
func Divide() *tool.Tool {
	return arithmeticTool("divide", "Divide two float numbers.", func(a, b float64) float64 {
		if b == 0 {
			return 0
		}
		return a / b
	})
}

// ReadReportPage fetches an HTML report page and flattens it to text with
// tables rendered as markdown rows.
func ReadReportPage() *tool.Tool {
	return ReadReportPageWithClient(http.DefaultClient)
}

// ReadReportPageWithClient is like ReadReportPage with a caller-supplied HTTP
// client, mainly for tests and hosts with custom transports.
func ReadReportPageWithClient(client *http.Client) *tool.Tool {
	return &tool.Tool{
		Name:        "read_report_page",
		Description: "Fetches an HTML report page by URL and returns its readable text. Tables are converted to markdown rows.",
		Parameters: []tool.Parameter{
			{Name: "url", Type: "string", Description: "Absolute URL of the report page", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			url, _ := args["url"].(string)
			if url == "" {
				return "", fmt.Errorf("url must be a non-empty string")
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return "", fmt.Errorf("build request: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("fetch report page: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("fetch report page: unexpected status %s", resp.Status)
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBody))
			if err != nil {
				return "", fmt.Errorf("read report page: %w", err)
			}

			text, err := textproc.HTMLToText(string(body))
			if err != nil {
				return "", fmt.Errorf("flatten report page: %w", err)
			}
			return textproc.Normalize(text), nil
		},
	}
}

// Tools returns every builtin tool.
func Tools() []*tool.Tool {
	return []*tool.Tool{
		CurrentDatetime(),
		Add(),
		Subtract(),
		Multiply(),
		Divide(),
		ReadReportPage(),
	}
}

// RegisterAll registers every builtin tool with the registry.
func RegisterAll(registry *tool.Registry) error {
	for _, t := range Tools() {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("register builtin tool %s: %w", t.Name, err)
		}
	}
	return nil
}

func arithmeticTool(name, description string, op func(a, b float64) float64) *tool.Tool {
	return &tool.Tool{
		Name:        name,
		Description: description,
		Parameters: []tool.Parameter{
			{Name: "first", Type: "number", Description: "First operand", Required: true},
			{Name: "second", Type: "number", Description: "Second operand", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			first, err := floatArg(args, "first")
			if err != nil {
				return "", err
			}
			second, err := floatArg(args, "second")
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%g", op(first, second)), nil
		},
	}
}

func floatArg(args map[string]any, name string) (float64, error) {
	switch v := args[name].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("missing numeric argument %s", name)
	default:
		return 0, fmt.Errorf("argument %s must be a number, got %T", name, v)
	}
}
