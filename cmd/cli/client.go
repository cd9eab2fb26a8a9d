package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// apiError is returned for any non-2xx response.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.Status, truncate(strings.TrimSpace(e.Body), 200))
}

type apiClient struct {
	baseURL string
	userID  string
	http    *http.Client
}

func newAPIClient(opts *cliOptions) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(opts.baseURL, "/"),
		userID:  opts.userID,
		http:    &http.Client{Timeout: opts.timeout},
	}
}

// do sends the request and returns the response body. Non-2xx responses come
// back as *apiError together with the body.
func (c *apiClient) do(ctx context.Context, method, path string, payload any, headers map[string]string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, data, &apiError{Status: resp.StatusCode, Body: string(data)}
	}

	return resp.StatusCode, data, nil
}

// mutate sends a request on behalf of the configured user.
func (c *apiClient) mutate(ctx context.Context, method, path string, payload any, idempotencyKey string) (int, []byte, error) {
	if c.userID == "" {
		return 0, nil, fmt.Errorf("--user (or STOCKLEDGER_USER_ID) is required")
	}

	headers := map[string]string{"X-User-ID": c.userID}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	return c.do(ctx, method, path, payload, headers)
}

func printJSON(w io.Writer, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		_, werr := fmt.Fprintln(w, string(data))
		return werr
	}
	out.WriteByte('\n')

	_, err := out.WriteTo(w)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
