package matcher

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleetbooks/recon/internal/model"
)

// JSON-RPC 2.0 message types.

// RPCRequest is a JSON-RPC 2.0 request or notification.
type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      any    `json:"id,omitempty"`
}

// RPCResponse is a JSON-RPC 2.0 response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      any             `json:"id"`
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ProcessConfig configures a ProcessMatcher.
type ProcessConfig struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // appended to the current environment
	Timeout time.Duration
}

// ProcessMatcher runs an external program per call and exchanges one
// "match" request over stdin/stdout as newline-delimited JSON-RPC 2.0.
// The program receives {"input": ..., "schema": ...} and must answer with a
// result that satisfies SuggestionSchema, then exit on "shutdown".
type ProcessMatcher struct {
	cfg ProcessConfig
	log *zap.Logger
}

// NewProcess creates a ProcessMatcher.
func NewProcess(cfg ProcessConfig, log *zap.Logger) (*ProcessMatcher, error) {
	if cfg.Command == "" {
		return nil, errors.New("process matcher: command is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProcessMatcher{cfg: cfg, log: log}, nil
}

// Suggest implements Matcher.
func (m *ProcessMatcher) Suggest(ctx context.Context, req Request) ([]model.MatchSuggestion, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, m.cfg.Command, m.cfg.Args...)
	cmd.Dir = m.cfg.Dir
	cmd.Env = append(os.Environ(), m.cfg.Env...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting %s: %v", ErrUnavailable, m.cfg.Command, err)
	}

	result, callErr := m.call(ctx, stdin, bufio.NewReader(stdout), RPCRequest{
		JSONRPC: "2.0",
		Method:  "match",
		Params:  map[string]any{"input": ToWire(req), "schema": json.RawMessage(SuggestionSchema)},
		ID:      1,
	})

	_ = send(stdin, RPCRequest{JSONRPC: "2.0", Method: "shutdown"})
	_ = stdin.Close()
	waitErr := cmd.Wait()

	if callErr != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			m.log.Warn("matcher process stderr", zap.String("command", m.cfg.Command), zap.String("stderr", s))
		}
		return nil, callErr
	}
	if waitErr != nil {
		m.log.Debug("matcher process exited with error", zap.Error(waitErr))
	}
	return DecodeSuggestions(result)
}

func (m *ProcessMatcher) call(ctx context.Context, w io.Writer, r *bufio.Reader, req RPCRequest) (json.RawMessage, error) {
	if err := send(w, req); err != nil {
		return nil, fmt.Errorf("%w: writing request: %v", ErrUnavailable, err)
	}

	type lineResult struct {
		line string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				ch <- lineResult{err: err}
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			ch <- lineResult{line: line}
			return
		}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case lr := <-ch:
		if lr.err != nil {
			return nil, fmt.Errorf("%w: process exited before replying: %v", ErrUnavailable, lr.err)
		}
		var resp RPCResponse
		if err := json.Unmarshal([]byte(lr.line), &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("%w: rpc error %d: %s", ErrUnavailable, resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

func send(w io.Writer, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
