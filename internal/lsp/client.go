package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/streekit/streekeeper/internal/logging"
)

// termGrace is how long a TERM signal gets to work before the process is
// killed outright.
const termGrace = 2 * time.Second

// Client is a connection to one running syntax_tree language server.
type Client struct {
	mu        sync.Mutex
	conn      *jsonrpcConn
	cmd       *exec.Cmd
	inv       Invocation
	rootDir   string
	openFiles map[string]int // URI -> version
	done      chan struct{}
	waitErr   error
}

// jsonrpcConn manages JSON-RPC communication over the server's stdio.
type jsonrpcConn struct {
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	nextID  int64
	mu      sync.Mutex
	pending map[int64]chan *JSONRPCMessage
	closed  bool
}

// Spawn starts the server described by inv and performs the LSP initialize
// handshake. ctx bounds the handshake only; the spawned process outlives
// it. On handshake failure the process is killed before the error is
// returned.
func Spawn(ctx context.Context, inv Invocation, rootDir string) (*Client, error) {
	if inv.Executable == "" {
		return nil, fmt.Errorf("empty executable")
	}
	if rootDir == "" {
		rootDir, _ = os.Getwd()
	}

	cmd := exec.Command(inv.Executable, inv.Args...)
	if inv.WorkingDirectory != "" {
		cmd.Dir = inv.WorkingDirectory
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	go forwardStderr(stderr)

	conn := &jsonrpcConn{
		stdin:   stdin,
		stdout:  bufio.NewReader(stdout),
		pending: make(map[int64]chan *JSONRPCMessage),
	}
	go conn.readLoop()

	c := &Client{
		conn:      conn,
		cmd:       cmd,
		inv:       inv,
		rootDir:   rootDir,
		openFiles: make(map[string]int),
		done:      make(chan struct{}),
	}
	go func() {
		c.waitErr = cmd.Wait()
		close(c.done)
	}()

	if err := c.initialize(ctx, rootDir); err != nil {
		c.Kill()
		<-c.done
		return nil, fmt.Errorf("handshake failed: %w", err)
	}

	return c, nil
}

// initialize performs the initialize/initialized exchange.
func (c *Client) initialize(ctx context.Context, root string) error {
	params := InitializeParams{
		ProcessID: os.Getpid(),
		RootURI:   pathToURI(root),
		Capabilities: ClientCapabilities{
			TextDocument: TextDocumentClientCapabilities{
				Formatting: &FormattingCapability{},
			},
		},
	}

	var result json.RawMessage
	if err := c.conn.call(ctx, "initialize", params, &result); err != nil {
		return err
	}

	return c.conn.notify(ctx, "initialized", struct{}{})
}

// PID returns the server's process ID, or 0 when unknown.
func (c *Client) PID() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Invocation returns the launch descriptor this client was spawned from.
func (c *Client) Invocation() Invocation {
	return c.inv
}

// Done is closed once the server process has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ExitError reports the process exit error. Only valid after Done is
// closed; nil before that.
func (c *Client) ExitError() error {
	select {
	case <-c.done:
		return c.waitErr
	default:
		return nil
	}
}

// Shutdown performs the LSP shutdown sequence and waits for the process
// to exit. ctx sets the graceful window; once it expires the process is
// signaled and, after termGrace, killed.
func (c *Client) Shutdown(ctx context.Context) error {
	if err := c.conn.call(ctx, "shutdown", nil, nil); err != nil {
		logging.Debug().Err(err).Msg("shutdown request failed")
	}
	if err := c.conn.notify(ctx, "exit", nil); err != nil {
		logging.Debug().Err(err).Msg("exit notification failed")
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
	}

	logging.Warn().Int("pid", c.PID()).Msg("server did not exit in time, terminating")
	if c.cmd.Process != nil {
		c.cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(termGrace):
	}

	c.Kill()
	<-c.done
	return nil
}

// Kill terminates the server process without the shutdown handshake.
func (c *Client) Kill() {
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
}

// Formatting requests a whole-document format for the file and returns
// the edits.
func (c *Client) Formatting(ctx context.Context, path string) ([]TextEdit, error) {
	if err := c.touchFile(ctx, path); err != nil {
		return nil, err
	}

	params := DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: pathToURI(path)},
		Options:      FormattingOptions{TabSize: 2, InsertSpaces: true},
	}

	var edits []TextEdit
	if err := c.conn.call(ctx, "textDocument/formatting", params, &edits); err != nil {
		return nil, err
	}
	return edits, nil
}

// Visualize asks the server for the syntax tree rendering of the file.
func (c *Client) Visualize(ctx context.Context, path string) (string, error) {
	if err := c.touchFile(ctx, path); err != nil {
		return "", err
	}

	params := VisualizingParams{
		TextDocument: TextDocumentIdentifier{URI: pathToURI(path)},
	}

	var tree string
	if err := c.conn.call(ctx, "syntaxTree/visualizing", params, &tree); err != nil {
		return "", err
	}
	return tree, nil
}

// touchFile pushes the file's current content to the server, opening the
// document on first use and sending a whole-text change afterwards.
func (c *Client) touchFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	uri := pathToURI(path)

	c.mu.Lock()
	version, open := c.openFiles[uri]
	version++
	c.openFiles[uri] = version
	c.mu.Unlock()

	if open {
		return c.conn.notify(ctx, "textDocument/didChange", DidChangeTextDocumentParams{
			TextDocument:   VersionedTextDocumentIdentifier{URI: uri, Version: version},
			ContentChanges: []TextDocumentContentChangeEvent{{Text: string(content)}},
		})
	}

	return c.conn.notify(ctx, "textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: "ruby",
			Version:    version,
			Text:       string(content),
		},
	})
}

// readLoop reads frames from the server until the stream breaks, routing
// responses to their callers and notifications to the diagnostics log.
func (c *jsonrpcConn) readLoop() {
	for {
		msg, err := c.readMessage()
		if err != nil {
			c.mu.Lock()
			c.closed = true
			for _, ch := range c.pending {
				close(ch)
			}
			c.pending = make(map[int64]chan *JSONRPCMessage)
			c.mu.Unlock()
			return
		}

		if msg.Method != "" {
			c.handleNotification(msg)
			continue
		}

		if msg.ID != 0 {
			c.mu.Lock()
			if ch, ok := c.pending[msg.ID]; ok {
				ch <- msg
				delete(c.pending, msg.ID)
			}
			c.mu.Unlock()
		}
	}
}

// handleNotification forwards server-originated messages. Log messages
// land in the diagnostics log; everything else is traced and dropped.
func (c *jsonrpcConn) handleNotification(msg *JSONRPCMessage) {
	if msg.Method != "window/logMessage" {
		logging.Debug().Str("method", msg.Method).Msg("ignoring server notification")
		return
	}

	var params LogMessageParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return
	}

	evt := logging.Debug()
	switch params.Type {
	case MessageTypeError:
		evt = logging.Error()
	case MessageTypeWarning:
		evt = logging.Warn()
	case MessageTypeInfo:
		evt = logging.Info()
	}
	evt.Str("component", "stree").Msg(params.Message)
}

// readMessage reads a single Content-Length framed message.
func (c *jsonrpcConn) readMessage() (*JSONRPCMessage, error) {
	var contentLength int
	for {
		line, err := c.stdout.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "Content-Length:") {
			lenStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			contentLength, _ = strconv.Atoi(lenStr)
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("no content-length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.stdout, body); err != nil {
		return nil, err
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// call sends a request and waits for the matching response.
func (c *jsonrpcConn) call(ctx context.Context, method string, params any, result any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("connection closed")
	}

	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan *JSONRPCMessage, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	if err := c.writeMessage(req); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case msg := <-ch:
		if msg == nil {
			return fmt.Errorf("connection closed")
		}
		if msg.Error != nil {
			return fmt.Errorf("server error %d: %s", msg.Error.Code, msg.Error.Message)
		}
		if result != nil && msg.Result != nil {
			return json.Unmarshal(msg.Result, result)
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// notify sends a notification (no response expected).
func (c *jsonrpcConn) notify(ctx context.Context, method string, params any) error {
	req := JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}
	return c.writeMessage(req)
}

// writeMessage writes a Content-Length framed message.
func (c *jsonrpcConn) writeMessage(msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.stdin.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := c.stdin.Write(body); err != nil {
		return err
	}
	return nil
}

// forwardStderr relays server stderr lines into the diagnostics log.
func forwardStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		logging.Debug().Str("component", "stree").Msg(sc.Text())
	}
}

// pathToURI converts a path to a file URI.
func pathToURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}
