// Package mcp provides the MCP (Model Context Protocol) server for irfacts.
//
// The server exposes a fact store read-only: label lookup, relation dumps,
// lowered trees and Datalog queries as tools, plus an overview and the
// relation schema as resources.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/irfacts/internal/facts"
	"github.com/Benny93/irfacts/internal/graph"
	"github.com/Benny93/irfacts/internal/query"
	"github.com/Benny93/irfacts/internal/storage"
)

// Version is reported to clients.
const Version = "0.1.0"

// defaultFactLimit bounds irfacts_facts output when no limit is given.
const defaultFactLimit = 100

// Server represents the MCP server.
type Server struct {
	store  storage.FactStore
	server *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server over store.
func NewServer(store storage.FactStore) *Server {
	s := &Server{store: store}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "irfacts",
		Version: Version,
	}, nil)
	s.registerTools()
	s.registerResources()
	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "irfacts_label",
			Description: "Resolve a canonical key such as class;app.MainKt to its label, or a label such as #12 to its key.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"key":   {Type: "string", Description: "Canonical key to look up"},
					"label": {Type: "string", Description: "Label to resolve, as #n or n"},
				},
			},
		},
		{
			Name:        "irfacts_facts",
			Description: "List the stored facts of one relation, e.g. exprs or methods.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"kind":  {Type: "string", Description: "Relation name"},
					"limit": {Type: "integer", Description: "Maximum number of facts"},
				},
				Required: []string{"kind"},
			},
		},
		{
			Name:        "irfacts_tree",
			Description: "Print the lowered statement and expression tree under a label.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"label": {Type: "string", Description: "Root label, as #n or n"},
				},
				Required: []string{"label"},
			},
		},
		{
			Name:        "irfacts_query",
			Description: "Evaluate a Datalog program over the stored relations and return the facts of one predicate.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"program":   {Type: "string", Description: "Datalog rules"},
					"predicate": {Type: "string", Description: "Predicate to return; defaults to the last rule's head"},
				},
				Required: []string{"program"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "irfacts://overview",
			Name:        "Fact Store Overview",
			Description: "Label and fact counts plus recorded extraction runs",
			MimeType:    "text/plain",
		},
		{
			URI:         "irfacts://schema",
			Name:        "Relation Schema",
			Description: "Every relation with its columns",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "irfacts_label":
		key, _ := args["key"].(string)
		label, _ := args["label"].(string)
		return handleLabel(ctx, s.store, key, label)
	case "irfacts_facts":
		kind, _ := args["kind"].(string)
		limit, _ := args["limit"].(float64)
		if limit == 0 {
			limit = defaultFactLimit
		}
		return handleFacts(ctx, s.store, kind, int(limit))
	case "irfacts_tree":
		label, _ := args["label"].(string)
		return handleTree(ctx, s.store, label)
	case "irfacts_query":
		program, _ := args["program"].(string)
		predicate, _ := args["predicate"].(string)
		return handleQuery(ctx, s.store, program, predicate)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "irfacts://overview":
		return getOverview(ctx, s.store)
	case "irfacts://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves one session over stdin and stdout until the client
// disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return errors.New("stdin and stdout must not be nil")
	}
	return s.server.Run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(stdin),
		Writer: nopWriteCloser{stdout},
	})
}

// Connect serves a session over t and returns without waiting for it.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Tool Handlers

func handleLabel(ctx context.Context, store storage.FactStore, key, label string) (string, error) {
	switch {
	case key != "":
		l, ok, err := store.LookupLabel(ctx, key)
		if err != nil {
			return "", err
		}
		if !ok {
			return fmt.Sprintf("No label for key %q.", key), nil
		}
		return fmt.Sprintf("%s = %s", l, key), nil
	case label != "":
		l, err := facts.ParseLabel(label)
		if err != nil {
			return "", err
		}
		k, ok, err := store.KeyOf(ctx, l)
		if err != nil {
			return "", err
		}
		if !ok {
			return fmt.Sprintf("Label %s does not exist.", l), nil
		}
		return fmt.Sprintf("%s = %s", l, k), nil
	default:
		return "", errors.New("either key or label is required")
	}
}

func handleFacts(ctx context.Context, store storage.FactStore, kind string, limit int) (string, error) {
	if facts.Arity(kind) < 0 {
		return "", fmt.Errorf("unknown relation %q", kind)
	}
	fs, err := store.Facts(ctx, kind)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s(%s)\n\n", kind, strings.Join(facts.Schema[kind], ", "))
	for i, f := range fs {
		if i == limit {
			fmt.Fprintf(&sb, "... and %d more\n", len(fs)-limit)
			break
		}
		sb.WriteString(f.String())
		sb.WriteByte('\n')
	}
	if len(fs) == 0 {
		sb.WriteString("No facts.\n")
	}
	return sb.String(), nil
}

func handleTree(ctx context.Context, store storage.FactStore, label string) (string, error) {
	root, err := facts.ParseLabel(label)
	if err != nil {
		return "", err
	}
	all, err := store.AllFacts(ctx)
	if err != nil {
		return "", err
	}
	g := graph.FromFacts(all)
	if g.Node(root) == nil && len(g.Children(root)) == 0 {
		return fmt.Sprintf("No lowered nodes under %s.", root), nil
	}
	return g.Tree(root), nil
}

func handleQuery(ctx context.Context, store storage.FactStore, program, predicate string) (string, error) {
	if program == "" && predicate == "" {
		return "No program provided", nil
	}
	res, err := query.Eval(ctx, store, program, predicate, query.Options{})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s/%d: %d fact(s)\n\n", res.Predicate, res.Arity, len(res.Rows))
	for _, row := range res.Rows {
		fmt.Fprintf(&sb, "%s(%s)\n", res.Predicate, strings.Join(row, ", "))
	}
	return sb.String(), nil
}

// Resource Handlers

func getOverview(ctx context.Context, store storage.FactStore) (string, error) {
	stats, err := store.Stats(ctx)
	if err != nil {
		return "", err
	}
	runs, err := store.Runs(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# irfacts Overview\n\n")
	fmt.Fprintf(&sb, "**Labels:** %d\n", stats.Labels)
	fmt.Fprintf(&sb, "**Facts:** %d\n", stats.Facts)

	sb.WriteString("\n## Facts by Relation\n\n")
	for _, kind := range facts.Kinds() {
		if n := stats.ByKind[kind]; n > 0 {
			fmt.Fprintf(&sb, "- %s: %d\n", kind, n)
		}
	}

	sb.WriteString("\n## Runs\n\n")
	if len(runs) == 0 {
		sb.WriteString("No extraction runs recorded.\n")
	}
	for _, r := range runs {
		fmt.Fprintf(&sb, "- %s at %s: %d file(s), %d fact(s), %d error(s), %d warning(s)\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Files, r.Facts, r.Errors, r.Warnings)
	}
	return sb.String(), nil
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# irfacts Relation Schema\n\n")
	sb.WriteString("Labels render as #n. In queries they are plain numbers.\n\n")
	sb.WriteString("| Relation | Columns |\n")
	sb.WriteString("|----------|---------|\n")
	for _, kind := range facts.Kinds() {
		fmt.Fprintf(&sb, "| `%s` | %s |\n", kind, strings.Join(facts.Schema[kind], ", "))
	}
	return sb.String()
}

// registerTools registers tools with the MCP server.
func (s *Server) registerTools() {
	for _, tool := range s.ListTools() {
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args map[string]any
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return nil, fmt.Errorf("decoding arguments: %w", err)
				}
			}
			text, err := s.CallTool(ctx, tool.Name, args)
			if err != nil {
				return &mcp.CallToolResult{
					IsError: true,
					Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				}, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, nil
		})
	}
}

// registerResources registers resources with the MCP server.
func (s *Server) registerResources() {
	for _, res := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, req.Params.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: req.Params.URI, MIMEType: res.MimeType, Text: text}},
			}, nil
		})
	}
}
