package chat

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"net/url"

	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/graph/tool"
)

// ToolSpecs describes the tools Ask offers the model, matching the names
// CalculatorTool and WebSearchTool implement below (spec §4.6's
// "Calculator / web-search tools" supplement).
var ToolSpecs = []model.ToolSpec{
	{
		Name:        "calculator",
		Description: "Evaluate a basic arithmetic expression, e.g. for pricing or timeline math mentioned in the RFP.",
		Schema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"expression": map[string]interface{}{"type": "string"}},
			"required":   []string{"expression"},
		},
	},
	{
		Name:        "web_search",
		Description: "Search the web for information not present in the RFP context, such as current facts about a named competitor or technology.",
		Schema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
			"required":   []string{"query"},
		},
	},
}

// CalculatorTool evaluates a basic arithmetic expression. There is no
// expression-evaluation library anywhere in the example pack, so this parses
// the expression with the standard library's go/parser and walks the
// resulting AST rather than hand-rolling a tokenizer.
type CalculatorTool struct{}

func (CalculatorTool) Name() string { return "calculator" }

func (CalculatorTool) Call(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	expr, _ := input["expression"].(string)
	if expr == "" {
		return nil, fmt.Errorf("expression parameter required")
	}
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}
	result, err := evalExpr(node)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"result": result}, nil
}

func evalExpr(n ast.Expr) (float64, error) {
	switch e := n.(type) {
	case *ast.BasicLit:
		if e.Kind != token.INT && e.Kind != token.FLOAT {
			return 0, fmt.Errorf("unsupported literal %q", e.Value)
		}
		var v float64
		if _, err := fmt.Sscanf(e.Value, "%g", &v); err != nil {
			return 0, fmt.Errorf("invalid number %q", e.Value)
		}
		return v, nil
	case *ast.ParenExpr:
		return evalExpr(e.X)
	case *ast.UnaryExpr:
		v, err := evalExpr(e.X)
		if err != nil {
			return 0, err
		}
		if e.Op == token.SUB {
			return -v, nil
		}
		return v, nil
	case *ast.BinaryExpr:
		left, err := evalExpr(e.X)
		if err != nil {
			return 0, err
		}
		right, err := evalExpr(e.Y)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case token.ADD:
			return left + right, nil
		case token.SUB:
			return left - right, nil
		case token.MUL:
			return left * right, nil
		case token.QUO:
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return left / right, nil
		default:
			return 0, fmt.Errorf("unsupported operator %s", e.Op)
		}
	default:
		return 0, fmt.Errorf("unsupported expression")
	}
}

// WebSearchTool wraps the teacher's graph/tool.HTTPTool to query a
// configurable search endpoint. Endpoint is expected to accept a "q" query
// parameter and return plain text or JSON the model can read directly; no
// search provider SDK appears anywhere in the example pack, so this reuses
// the teacher's own HTTP tool adapter rather than introducing one.
type WebSearchTool struct {
	Endpoint string
	http     *tool.HTTPTool
}

// NewWebSearchTool builds a WebSearchTool against the given search endpoint.
func NewWebSearchTool(endpoint string) *WebSearchTool {
	return &WebSearchTool{Endpoint: endpoint, http: tool.NewHTTPTool()}
}

func (w *WebSearchTool) Name() string { return "web_search" }

func (w *WebSearchTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	query, _ := input["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query parameter required")
	}
	if w.Endpoint == "" {
		return map[string]interface{}{"result": "web search is not configured"}, nil
	}
	return w.http.Call(ctx, map[string]interface{}{
		"method": "GET",
		"url":    w.Endpoint + "?q=" + url.QueryEscape(query),
	})
}
