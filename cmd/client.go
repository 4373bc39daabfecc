package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smazurov/smartcam/internal/api/models"
)

// apiClient talks to a running smartcam server.
type apiClient struct {
	baseURL  string
	device   string
	username string
	password string
	http     *http.Client
}

func newAPIClient(baseURL, device, username, password string) *apiClient {
	return &apiClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		device:   device,
		username: username,
		password: password,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) devicePath(suffix string) string {
	return "/api/devices/" + c.device + suffix
}

// do sends a request and decodes a JSON response into out when non-nil.
// body is sent raw when it is a []byte and as JSON otherwise.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
		contentType = "application/octet-stream"
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var problem struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&problem)
		return fmt.Errorf("%s %s: %d %s %s", method, path, resp.StatusCode, problem.Title, problem.Detail)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) openSession(ctx context.Context) (models.SessionData, error) {
	var sess models.SessionData
	err := c.do(ctx, http.MethodPost, c.devicePath("/sessions"), models.OpenSessionData{}, &sess)
	return sess, err
}

func (c *apiClient) closeSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.devicePath("/sessions/"+id), nil, nil)
}

func (c *apiClient) writeFrame(ctx context.Context, id string, frame []byte) (models.FrameWriteData, error) {
	var w models.FrameWriteData
	err := c.do(ctx, http.MethodPut, c.devicePath("/sessions/"+id+"/frame"), frame, &w)
	return w, err
}
