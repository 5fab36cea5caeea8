package egress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

// NewClient builds an HTTP Controller. The timeout bounds every call to the
// controller; the service must never block indefinitely on it.
func NewClient(baseURL, apiKey, apiSecret string, timeout time.Duration) Controller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: timeout},
	}
}

func (c *client) StartRecording(ctx context.Context, req StartRecordingRequest) (*RecordingInfo, error) {
	var info RecordingInfo
	if err := c.do(ctx, http.MethodPost, "/egress/start", req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *client) StopRecording(ctx context.Context, egressId string) error {
	body := map[string]string{"egressId": egressId}
	return c.do(ctx, http.MethodPost, "/egress/stop", body, nil)
}

func (c *client) GetRecording(ctx context.Context, egressId string) (*RecordingInfo, error) {
	var infos []RecordingInfo
	path := "/egress/list?egressId=" + url.QueryEscape(egressId)
	if err := c.do(ctx, http.MethodGet, path, nil, &infos); err != nil {
		if IsGoneErr(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(infos) == 0 {
		return nil, nil
	}
	return &infos[0], nil
}

func (c *client) GetTrackResolution(ctx context.Context, roomName, trackId string) (*TrackResolution, error) {
	var res TrackResolution
	path := fmt.Sprintf("/rooms/%s/tracks/%s", url.PathEscape(roomName), url.PathEscape(trackId))
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiKey, c.apiSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("egress controller %s %s: not found: %s", method, path, string(data))
		}
		return fmt.Errorf("egress controller %s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
