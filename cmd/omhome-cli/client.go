package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/joshp123/omhome/internal/api"
	"github.com/joshp123/omhome/internal/entity"
)

// apiClient calls the omhome HTTP API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{base: base, http: &http.Client{Timeout: flagTimeout}}
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *apiClient) post(ctx context.Context, path string, payload, out any) error {
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *apiClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr api.Error
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%s (%s)", apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	switch out := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*out = data
		return nil
	default:
		return json.Unmarshal(data, out)
	}
}

func (c *apiClient) entities(ctx context.Context, platform entity.Platform) ([]entity.State, error) {
	path := "/api/v1/entities/"
	if platform != "" {
		path += "?platform=" + url.QueryEscape(string(platform))
	}
	var states []entity.State
	err := c.get(ctx, path, &states)
	return states, err
}

// act resolves input to an entity of platform and runs the action on it.
func (c *apiClient) act(ctx context.Context, platform entity.Platform, input string, action entity.Action) (entity.State, error) {
	states, err := c.entities(ctx, platform)
	if err != nil {
		return entity.State{}, err
	}
	key, err := resolveEntity(platform, input, states)
	if err != nil {
		return entity.State{}, err
	}
	var state entity.State
	err = c.post(ctx, "/api/v1/entities/"+url.PathEscape(key)+"/"+action.Name, action, &state)
	return state, err
}
