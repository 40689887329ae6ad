// Package client reads the state of a run from a status server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raphi011/gauntlet/internal/model"
)

type Run = model.RunHTTP
type Case = model.CaseHTTP

type Client struct {
	http *http.Client
	host string
}

type RequestError struct {
	ResponseCode int
}

func (e RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.ResponseCode)
}

func New(host string, c *http.Client) Client {
	if c == nil {
		c = http.DefaultClient
	}

	return Client{http: c, host: host}
}

// GetRun returns the latest run of the server.
func (c Client) GetRun(ctx context.Context) (Run, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/run"), nil)
	if err != nil {
		return Run{}, err
	}

	var run Run

	if err = c.do(req, &run); err != nil {
		return Run{}, err
	}

	return run, nil
}

// GetCase returns a test case of the latest run.
func (c Client) GetCase(ctx context.Context, id uint64) (Case, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/cases/%d", id), nil)
	if err != nil {
		return Case{}, err
	}

	var cs Case

	if err = c.do(req, &cs); err != nil {
		return Case{}, err
	}

	return cs, nil
}

func (c Client) url(path string, args ...any) string {
	return fmt.Sprintf(c.host+path, args...)
}

func (c Client) do(req *http.Request, body any) error {
	req.Header.Add("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return RequestError{res.StatusCode}
	}

	if body != nil {
		d := json.NewDecoder(res.Body)

		if err = d.Decode(body); err != nil {
			return err
		}
	}

	return nil
}
