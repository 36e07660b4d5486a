package worldagent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/coder/websocket"
)

// PTY message types, mirroring spec.md §4.F's WebSocket PTY channel.
const (
	ptyTypeStart  = "start"
	ptyTypeStdin  = "stdin"
	ptyTypeResize = "resize"
	ptyTypeSignal = "signal"
	ptyTypeStdout = "stdout"
	ptyTypeExit   = "exit"
	ptyTypeError  = "error"
)

// PTYStartFrame is the client's first text frame on the WebSocket channel.
type PTYStartFrame struct {
	Type   string            `json:"type"`
	Cmd    string            `json:"cmd"`
	Cwd    string            `json:"cwd,omitempty"`
	Env    map[string]string `json:"env,omitempty"`
	SpanID string            `json:"span_id,omitempty"`
	Cols   int               `json:"cols"`
	Rows   int               `json:"rows"`
}

type ptyFrame struct {
	Type    string `json:"type"`
	DataB64 string `json:"data_b64,omitempty"`
	Cols    int    `json:"cols,omitempty"`
	Rows    int    `json:"rows,omitempty"`
	Sig     string `json:"sig,omitempty"`
	Exit    *int32 `json:"exit,omitempty"`
	Message string `json:"message,omitempty"`
}

// Signal names the client may forward, translated from the host's own signal
// handling (spec.md §4.F).
type Signal string

const (
	SigINT  Signal = "INT"
	SigTERM Signal = "TERM"
	SigHUP  Signal = "HUP"
	SigQUIT Signal = "QUIT"
)

// PTYSession is a live WebSocket connection to a world-agent PTY channel.
type PTYSession struct {
	conn *websocket.Conn

	writeMu sync.Mutex
}

// PTYExit is the terminal outcome of a PTY session.
type PTYExit struct {
	Exit int32
}

// DialPTY upgrades to the world-agent's WebSocket PTY endpoint and sends the
// initial start frame.
func (c *Client) DialPTY(ctx context.Context, start PTYStartFrame) (*PTYSession, error) {
	start.Type = ptyTypeStart
	conn, _, err := websocket.Dial(ctx, c.wsURL+"/v1/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("dial world agent pty: %w", err)
	}

	s := &PTYSession{conn: conn}
	if err := s.writeJSON(ctx, start); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("send pty start: %w", err)
	}
	return s, nil
}

// WriteStdin forwards raw bytes read from the host's stdin.
func (s *PTYSession) WriteStdin(ctx context.Context, data []byte) error {
	return s.writeJSON(ctx, ptyFrame{Type: ptyTypeStdin, DataB64: base64.StdEncoding.EncodeToString(data)})
}

// Resize forwards a SIGWINCH-triggered terminal size change.
func (s *PTYSession) Resize(ctx context.Context, cols, rows int) error {
	return s.writeJSON(ctx, ptyFrame{Type: ptyTypeResize, Cols: cols, Rows: rows})
}

// SendSignal forwards a host signal (INT/TERM/HUP/QUIT) to the remote PTY.
func (s *PTYSession) SendSignal(ctx context.Context, sig Signal) error {
	return s.writeJSON(ctx, ptyFrame{Type: ptyTypeSignal, Sig: string(sig)})
}

// Run reads server frames until an exit or error frame arrives, writing
// decoded stdout bytes to w as they come in.
func (s *PTYSession) Run(ctx context.Context, w io.Writer) (PTYExit, error) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return PTYExit{}, fmt.Errorf("read pty frame: %w", err)
		}
		var f ptyFrame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		switch f.Type {
		case ptyTypeStdout:
			chunk, derr := base64.StdEncoding.DecodeString(f.DataB64)
			if derr != nil {
				continue
			}
			if _, werr := w.Write(chunk); werr != nil {
				return PTYExit{}, werr
			}
		case ptyTypeExit:
			exit := int32(0)
			if f.Exit != nil {
				exit = *f.Exit
			}
			s.Close()
			return PTYExit{Exit: exit}, nil
		case ptyTypeError:
			s.Close()
			return PTYExit{}, fmt.Errorf("world agent pty error: %s", f.Message)
		}
	}
}

// Close terminates the underlying WebSocket connection.
func (s *PTYSession) Close() error {
	return s.conn.CloseNow()
}

func (s *PTYSession) writeJSON(ctx context.Context, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.conn.Write(ctx, websocket.MessageText, data)
}
