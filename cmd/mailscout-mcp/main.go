package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/mailscout/models"
)

// pollInterval is the wait between batch status requests.
var pollInterval = 2 * time.Second

func main() {
	apiURL := os.Getenv("MAILSCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("MAILSCOUT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "MAILSCOUT_API_KEY is required")
		os.Exit(1)
	}

	s := newServer(apiURL, apiKey)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(apiURL, apiKey string) *server.MCPServer {
	s := server.NewMCPServer(
		"mailscout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	findTool := mcp.NewTool("find_contact_emails",
		mcp.WithDescription("Find contact email addresses of an organization by browsing its website. Visits the home page, follows redirects, opens contact pages and returns the most relevant addresses (secretariat, office, info, contact) or, failing that, every address found."),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("The organization's domain, e.g. 'abc.example.com'"),
		),
		mcp.WithNumber("max_age_ms",
			mcp.Description("Accept a cached result younger than this many milliseconds (0 disables the cache)"),
		),
	)
	s.AddTool(findTool, handleFindContactEmails(apiURL, apiKey))

	batchTool := mcp.NewTool("batch_find_contact_emails",
		mcp.WithDescription("Find contact email addresses for up to 100 domains. Lookups run in parallel on the server; the tool waits until all are done."),
		mcp.WithArray("domains",
			mcp.Required(),
			mcp.Description("List of domains to look up"),
			mcp.WithStringItems(),
		),
	)
	s.AddTool(batchTool, handleBatchFindContactEmails(apiURL, apiKey))

	return s
}

// apiPost sends a POST request to the mailscout API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls endpoint until the job leaves "processing".
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("X-API-Key", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != "processing" {
				return body, nil
			}
		}
	}
}

func handleFindContactEmails(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 6 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}

		payload := models.LookupRequest{
			Domain: domain,
			MaxAge: request.GetInt("max_age_ms", 0),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/emails", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp models.LookupResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !resp.Success {
			return mcp.NewToolResultError(describeFailure(&resp)), nil
		}

		return mcp.NewToolResultText(formatLookup(&resp)), nil
	}
}

func handleBatchFindContactEmails(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 6 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domains, err := request.RequireStringSlice("domains")
		if err != nil {
			return mcp.NewToolResultError("domains is required and must be an array of strings"), nil
		}

		// POST to create batch job.
		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/batch/emails", models.BatchRequest{Domains: domains})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}

		var batchResp models.BatchResponse
		if err := json.Unmarshal(respBody, &batchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch response: %v", err)), nil
		}
		if batchResp.ID == "" {
			return mcp.NewToolResultError("batch job creation failed"), nil
		}

		// Poll for completion.
		resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/batch/"+batchResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
		}

		var statusResp models.BatchStatusResponse
		if err := json.Unmarshal(resultBody, &statusResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch status: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Batch %s: %s (%d/%d completed)\n\n", statusResp.ID, statusResp.Status, statusResp.Completed, statusResp.Total)
		for i, r := range statusResp.Results {
			if r == nil {
				fmt.Fprintf(&sb, "[%d] missing result\n", i+1)
				continue
			}
			if !r.Success {
				fmt.Fprintf(&sb, "[%d] %s FAILED: %s\n", i+1, r.Domain, describeFailure(r))
				continue
			}
			fmt.Fprintf(&sb, "[%d] %s", i+1, formatLookup(r))
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

// formatLookup renders one successful lookup as a single line.
func formatLookup(r *models.LookupResponse) string {
	if len(r.Emails) == 0 {
		return fmt.Sprintf("%s: no contact emails found (%d pages visited)\n", r.Domain, r.PagesVisited)
	}
	return fmt.Sprintf("%s: %s (%s, %d pages visited)\n", r.Domain, r.Result, r.Tier, r.PagesVisited)
}

func describeFailure(r *models.LookupResponse) string {
	if r.Error == nil {
		return "lookup failed"
	}
	return fmt.Sprintf("[%s] %s", r.Error.Code, r.Error.Message)
}
