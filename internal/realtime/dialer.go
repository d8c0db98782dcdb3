package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Dialer opens realtime sessions.
type Dialer struct {
	URL    string
	Model  string
	APIKey string

	// WS defaults to a dialer with a 10s handshake timeout.
	WS *websocket.Dialer
}

func (d *Dialer) endpoint() (string, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	if d.Model != "" {
		q := u.Query()
		q.Set("model", d.Model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (d *Dialer) Dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := d.endpoint()
	if err != nil {
		return nil, err
	}

	ws := d.WS
	if ws == nil {
		ws = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+d.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := ws.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	return conn, nil
}
