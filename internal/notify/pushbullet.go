package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PushChannel posts notes to a Pushbullet-compatible push endpoint.
type PushChannel struct {
	hc       *http.Client
	endpoint string
	token    string
}

func NewPushChannel(endpoint, token string) *PushChannel {
	return &PushChannel{
		hc:       &http.Client{Timeout: 10 * time.Second},
		endpoint: endpoint,
		token:    token,
	}
}

func (c *PushChannel) Name() string { return "pushbullet" }

type pushNote struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (c *PushChannel) Post(ctx context.Context, ev Event) error {
	body, err := json.Marshal(pushNote{
		Type:  "note",
		Title: ev.title(),
		Body:  fmt.Sprintf("%s (%s)", ev.Message, ev.Timestamp.Format(time.RFC3339)),
	})
	if err != nil {
		return err
	}

	status, resp, err := c.do(ctx, body)
	if err != nil {
		return err
	}
	if status >= 400 {
		var r struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(resp, &r)
		if r.Error.Message != "" {
			return fmt.Errorf("push failed: %s (status=%d)", r.Error.Message, status)
		}
		return fmt.Errorf("push failed (status=%d)", status)
	}
	return nil
}

func (c *PushChannel) do(ctx context.Context, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Add("content-type", "application/json")
	req.Header.Add("access-token", c.token)

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}
