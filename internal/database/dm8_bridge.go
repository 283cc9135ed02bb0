package database

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

const (
	bridgeReadyTimeout = 15 * time.Second
	bridgeKillTimeout  = 3 * time.Second
)

// bridgeRequest is one frame written to the JDBC bridge subprocess, newline
// delimited JSON on its stdin.
type bridgeRequest struct {
	ID       int64  `json:"id"`
	Op       string `json:"op"` // connect, query, exec, close
	URL      string `json:"url,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	SQL      string `json:"sql,omitempty"`
}

// bridgeResponse is one frame read from the bridge's stdout. The first frame
// after startup carries Ready; every later frame answers one request by ID.
type bridgeResponse struct {
	ID           int64    `json:"id"`
	Ready        bool     `json:"ready,omitempty"`
	OK           bool     `json:"ok"`
	Error        string   `json:"error,omitempty"`
	Columns      []string `json:"columns,omitempty"`
	Types        []string `json:"types,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	RowsAffected int64    `json:"rows_affected,omitempty"`
	Version      string   `json:"version,omitempty"`
	User         string   `json:"user,omitempty"`
}

// dm8Bridge manages one JDBC bridge subprocess: a JVM started with the DM
// driver and the bridge jar on its classpath, speaking line-oriented JSON.
// The process lives as long as the dm8 connection it backs.
type dm8Bridge struct {
	log    *slog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	frames chan bridgeResponse
	done   chan struct{}

	mu     sync.Mutex
	nextID int64
	closed bool
}

// startDM8Bridge launches the JVM and waits for its ready frame. The command
// is deliberately not bound to the caller's context: the process must outlive
// the connect call and die only on Close.
func startDM8Bridge(log *slog.Logger, javaPath, driverJar, bridgeJar string) (*dm8Bridge, error) {
	classpath := driverJar + string(os.PathListSeparator) + bridgeJar
	cmd := exec.Command(javaPath, "-cp", classpath, bridgeMainClass)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open bridge stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start bridge process: %w", err)
	}

	b := &dm8Bridge{
		log:    log,
		cmd:    cmd,
		stdin:  stdin,
		frames: make(chan bridgeResponse, 16),
		done:   make(chan struct{}),
	}

	go b.readFrames(stdout)
	go b.drainStderr(stderr)

	select {
	case resp, ok := <-b.frames:
		if !ok {
			b.kill()
			return nil, errors.New("bridge process exited before becoming ready")
		}
		if !resp.Ready {
			b.kill()
			return nil, fmt.Errorf("unexpected first bridge frame: %+v", resp)
		}
	case <-time.After(bridgeReadyTimeout):
		b.kill()
		return nil, fmt.Errorf("bridge did not become ready within %s", bridgeReadyTimeout)
	}

	log.Debug("database: dm8 bridge ready", "java", javaPath, "driver", driverJar)
	return b, nil
}

func (b *dm8Bridge) readFrames(stdout io.Reader) {
	defer close(b.frames)
	// Result rows can exceed bufio.Scanner's default line limit, so read
	// lines through a plain reader instead.
	r := bufio.NewReader(stdout)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			var resp bridgeResponse
			if jsonErr := json.Unmarshal(line, &resp); jsonErr != nil {
				b.log.Warn("database: dm8 bridge sent malformed frame", "error", jsonErr)
			} else {
				b.frames <- resp
			}
		}
		if err != nil {
			return
		}
	}
}

func (b *dm8Bridge) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		b.log.Debug("database: dm8 bridge stderr", "line", scanner.Text())
	}
}

// call sends one request and waits for its answer. Frames answering requests
// abandoned by earlier timeouts are discarded by ID so the stream never
// desynchronizes.
func (b *dm8Bridge) call(ctx context.Context, req bridgeRequest) (bridgeResponse, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return bridgeResponse{}, errors.New("bridge is closed")
	}
	b.nextID++
	req.ID = b.nextID
	payload, err := json.Marshal(req)
	if err != nil {
		b.mu.Unlock()
		return bridgeResponse{}, fmt.Errorf("failed to encode bridge request: %w", err)
	}
	payload = append(payload, '\n')
	if _, err := b.stdin.Write(payload); err != nil {
		b.mu.Unlock()
		return bridgeResponse{}, fmt.Errorf("failed to write to bridge: %w", err)
	}
	b.mu.Unlock()

	for {
		select {
		case resp, ok := <-b.frames:
			if !ok {
				return bridgeResponse{}, errors.New("bridge process exited")
			}
			if resp.ID != req.ID {
				continue
			}
			return resp, nil
		case <-ctx.Done():
			return bridgeResponse{}, ctx.Err()
		}
	}
}

// Close asks the bridge to exit, then closes stdin so the JVM sees EOF, and
// kills it if it lingers.
func (b *dm8Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.nextID++
	payload, _ := json.Marshal(bridgeRequest{ID: b.nextID, Op: "close"})
	_, _ = b.stdin.Write(append(payload, '\n'))
	_ = b.stdin.Close()
	b.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		_ = b.cmd.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(bridgeKillTimeout):
		b.log.Warn("database: dm8 bridge did not exit, killing it")
		_ = b.cmd.Process.Kill()
		<-waited
	}
	close(b.done)
	return nil
}

func (b *dm8Bridge) kill() {
	_ = b.stdin.Close()
	_ = b.cmd.Process.Kill()
	_ = b.cmd.Wait()
}
