// Package e2e drives a running drivematch server through its HTTP API with
// godog scenarios. Point DRIVEMATCH_E2E_URL at the server to enable it.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var scenarioSeq atomic.Int64

// TestContext carries the HTTP state shared by every step in a scenario.
type TestContext struct {
	BaseURL string

	client     *http.Client
	token      string
	clientIP   string
	lastStatus int
	lastBody   []byte
	lastHeader http.Header
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// Reset clears per-scenario state. Each scenario gets its own client
// address so session start budgets do not leak between scenarios.
func (tc *TestContext) Reset() {
	n := scenarioSeq.Add(1)
	tc.token = ""
	tc.clientIP = fmt.Sprintf("198.18.%d.%d", (n/250)%250, n%250+1)
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastHeader = nil
}

func (tc *TestContext) SetClientIP(ip string) { tc.clientIP = ip }
func (tc *TestContext) SetToken(token string) { tc.token = token }
func (tc *TestContext) Token() string         { return tc.token }

// Do sends a JSON request and records the response for later assertions.
func (tc *TestContext) Do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	if tc.clientIP != "" {
		req.Header.Set("X-Forwarded-For", tc.clientIP)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	return nil
}

func (tc *TestContext) Status() int { return tc.lastStatus }

func (tc *TestContext) Body() []byte { return tc.lastBody }

func (tc *TestContext) Header(name string) string {
	if tc.lastHeader == nil {
		return ""
	}
	return tc.lastHeader.Get(name)
}

// Field resolves a dotted path such as "steps.0.status" in the last JSON
// response body.
func (tc *TestContext) Field(path string) (any, error) {
	var cur any
	if err := json.Unmarshal(tc.lastBody, &cur); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", part, tc.lastBody)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range", part)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q", part)
		}
	}
	return cur, nil
}
