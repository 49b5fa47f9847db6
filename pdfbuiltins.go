package agentrt

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/ledongthuc/pdf"
)

type readPDFArgs struct {
	Path string `json:"path"`
}

// ReadPDFDefinition is the read_pdf builtin (SPEC_FULL.md's domain-stack
// entry for ledongthuc/pdf), alongside fetch_url: an opt-in, read-only
// extension of §6's external-interfaces surface rather than a core
// C1-C10 component.
var ReadPDFDefinition = ToolDefinition{
	Name:        "read_pdf",
	Description: "Extract plain text from a PDF file at a host filesystem path.",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"path":{"type":"string"}
	},"required":["path"]}`),
}

// NewReadPDFFunc builds read_pdf. Unlike the fsbuiltins, read_pdf reads
// directly off the host filesystem rather than through a Backend: a PDF
// is a binary attachment, not a line-oriented virtual file, so State's
// string-lines model does not fit it.
func NewReadPDFFunc() ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a readPDFArgs
		if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
			return ToolResult{Success: false, Error: "invalid arguments: path is required"}, nil
		}
		f, r, err := pdf.Open(a.Path)
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		defer f.Close()

		reader, err := r.GetPlainText()
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(reader); err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		return ToolResult{Success: true, Output: buf.String()}, nil
	}
}

// RegisterReadPDFTool registers read_pdf. Opt-in: it opens arbitrary host
// paths, the same capability boundary as bash/execute_code.
func RegisterReadPDFTool(reg *ToolRegistry) {
	reg.Register(ReadPDFDefinition, NewReadPDFFunc(), WebToolsMetadata)
}
