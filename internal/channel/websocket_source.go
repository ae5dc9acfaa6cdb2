package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
)

// WebSocketSource dials <base>/ws/job/<id> on the render backend.
type WebSocketSource struct {
	baseURL string
	apiKey  string
	dialer  *websocket.Dialer
}

// NewWebSocketSource accepts http(s) or ws(s) base URLs.
func NewWebSocketSource(baseURL, apiKey string) *WebSocketSource {
	return &WebSocketSource{
		baseURL: toWebSocketURL(baseURL),
		apiKey:  apiKey,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func toWebSocketURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

// jobURL builds the job socket address. The id is escaped as one path segment.
func (s *WebSocketSource) jobURL(jobID string) string {
	return fmt.Sprintf("%s/ws/job/%s", s.baseURL, url.PathEscape(jobID))
}

func (s *WebSocketSource) Connect(ctx context.Context, jobID string) (Stream, error) {
	header := http.Header{}
	if s.apiKey != "" {
		header.Set("Authorization", "Bearer "+s.apiKey)
	}

	target := s.jobURL(jobID)
	conn, resp, err := s.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: status %d: %w", target, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", target, err)
	}
	return &wsStream{conn: conn, closed: make(chan struct{})}, nil
}

type wsStream struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func (s *wsStream) Next(ctx context.Context) ([]byte, error) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.isClosed() {
				return nil, ErrStreamClosed
			}
			return nil, err
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (s *wsStream) Heartbeat(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	} else {
		_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	return s.conn.WriteMessage(websocket.TextMessage, []byte("ping"))
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *wsStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
