package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// GraphQLRequest is the body of a GraphQL POST
type GraphQLRequest struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// GraphQLError is one entry of a response's errors array
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns extensions.code, e.g. "UNAUTHENTICATED".
func (e GraphQLError) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// GraphQLErrors is returned when a response carries errors. Whatever data
// the server sent along is still decoded into the caller's output.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Message
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// HasCode reports whether any error carries the given extensions code.
func (e GraphQLErrors) HasCode(code string) bool {
	for _, err := range e {
		if err.Code() == code {
			return true
		}
	}
	return false
}

// HTTPError is returned for a non-2xx response without a GraphQL body.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed: HTTP %d", e.StatusCode)
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors GraphQLErrors   `json:"errors,omitempty"`
}

// Do sends a GraphQL request through the auth pipeline and decodes the data
// field into out (which may be nil).
func (c *AuthClient) Do(ctx context.Context, req GraphQLRequest, out any) error {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.GraphQLURL(), bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		return fmt.Errorf("invalid response from server: %w", err)
	}

	if out != nil && len(gqlResp.Data) > 0 && string(gqlResp.Data) != "null" {
		if err := json.Unmarshal(gqlResp.Data, out); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}
	}

	if len(gqlResp.Errors) > 0 {
		return gqlResp.Errors
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}
