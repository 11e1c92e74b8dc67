package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
)

// TestContext drives the portal like a browser that does not follow
// redirects, so each step can assert where the wizard sends it.
type TestContext struct {
	baseURL  string
	client   *http.Client
	status   int
	location string
	body     []byte
}

func NewTestContext(baseURL string) *TestContext {
	tc := &TestContext{baseURL: strings.TrimRight(baseURL, "/")}
	tc.Reset()
	return tc
}

// Reset drops the session cookie and the last response.
func (tc *TestContext) Reset() {
	jar, _ := cookiejar.New(nil)
	tc.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	tc.status, tc.location, tc.body = 0, "", nil
}

func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return tc.do(req)
}

func (tc *TestContext) POSTForm(path string, form url.Values) error {
	return tc.POSTBody(path, "application/x-www-form-urlencoded", form.Encode())
}

func (tc *TestContext) POSTBody(path, contentType, body string) error {
	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.status = resp.StatusCode
	tc.location = resp.Header.Get("Location")
	tc.body = body
	return nil
}

func (tc *TestContext) Status() int      { return tc.status }
func (tc *TestContext) Location() string { return tc.location }

// ExpectRedirect fails unless the last response was a 303 to location.
func (tc *TestContext) ExpectRedirect(location string) error {
	if tc.status != http.StatusSeeOther || tc.location != location {
		return fmt.Errorf("expected redirect to %s, got %d %q: %s", location, tc.status, tc.location, tc.body)
	}
	return nil
}

// GetResponseField reads a dotted path such as "return.sites.0.wastes" from
// the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.body, &doc); err != nil {
		return nil, fmt.Errorf("response is not json: %w", err)
	}
	cur := doc
	for _, part := range strings.Split(field, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found at %q", field, part)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("field %q: bad index %q", field, part)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("field %q: cannot descend into %q", field, part)
		}
	}
	return cur, nil
}
