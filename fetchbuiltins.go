package agentrt

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// WebToolsMetadata tags the opt-in builtins fetch_url (network-backed) and
// read_pdf (host-filesystem-backed) so ToolRegistry.Search/LoadMatching can select them as a
// group, mirroring FilesystemToolsMetadata and CodeToolsMetadata.
var WebToolsMetadata = ToolMetadata{Plugin: "web", Category: "web"}

type fetchURLArgs struct {
	URL string `json:"url"`
}

// fetchURLResult is fetch_url's JSON output: the article's readable text,
// stripped of surrounding chrome (nav, ads, footers) by go-readability.
type fetchURLResult struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	Text    string `json:"text"`
}

// FetchURLDefinition is the fetch_url builtin (SPEC_FULL.md's domain-stack
// entry for go-shiori/go-readability): not part of spec.md's core, a
// read-only extension of the §6 external-interfaces surface, opt-in like
// execute_code.
var FetchURLDefinition = ToolDefinition{
	Name:        "fetch_url",
	Description: "Fetch a URL and extract its readable article text (title, excerpt, body), discarding navigation/ads/boilerplate.",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"url":{"type":"string"}
	},"required":["url"]}`),
}

// NewFetchURLFunc builds fetch_url. timeout bounds the HTTP fetch;
// go-readability performs its own parse/extraction once the body is in
// hand, so no separate parse timeout is needed.
func NewFetchURLFunc(timeout time.Duration) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a fetchURLArgs
		if err := json.Unmarshal(args, &a); err != nil || a.URL == "" {
			return ToolResult{Success: false, Error: "invalid arguments: url is required"}, nil
		}
		parsed, err := url.Parse(a.URL)
		if err != nil {
			return ToolResult{Success: false, Error: "invalid url: " + err.Error()}, nil
		}
		article, err := readability.FromURL(parsed.String(), timeout)
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		out, _ := json.Marshal(fetchURLResult{
			Title:   article.Title,
			Excerpt: article.Excerpt,
			Text:    article.TextContent,
		})
		return ToolResult{Success: true, Output: string(out)}, nil
	}
}

// RegisterFetchURLTool registers fetch_url with the given fetch timeout.
// Callers opt in deliberately: letting an agent pull arbitrary URLs is a
// capability like execute_code's, not a default.
func RegisterFetchURLTool(reg *ToolRegistry, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reg.Register(FetchURLDefinition, NewFetchURLFunc(timeout), WebToolsMetadata)
}
