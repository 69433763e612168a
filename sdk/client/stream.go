package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"nhooyr.io/websocket"

	"signescrow/core/events"
)

// Subscribe streams committed events from the node websocket. Empty contract
// or kind match everything. The channel closes when ctx ends or the stream
// fails.
func (c *Client) Subscribe(ctx context.Context, contract, kind string) (<-chan events.Committed, error) {
	target := *c.endpoint
	switch strings.ToLower(target.Scheme) {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}
	target.Path = strings.TrimSuffix(target.Path, "/") + "/ws/events"
	q := url.Values{}
	if contract != "" {
		q.Set("contract", contract)
	}
	if kind != "" {
		q.Set("type", kind)
	}
	target.RawQuery = q.Encode()

	opts := &websocket.DialOptions{}
	// The websocket handshake rejects clients with an overall timeout.
	if c.httpClient.Timeout == 0 {
		opts.HTTPClient = c.httpClient
	}
	if c.token != "" {
		opts.HTTPHeader = map[string][]string{"Authorization": {"Bearer " + c.token}}
	}
	conn, _, err := websocket.Dial(ctx, target.String(), opts)
	if err != nil {
		return nil, fmt.Errorf("dial event stream: %w", err)
	}
	out := make(chan events.Committed, 64)
	go func() {
		defer close(out)
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var evt events.Committed
			if err := json.Unmarshal(data, &evt); err != nil {
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
