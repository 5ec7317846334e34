// Package mcp exposes tools hosted by Model Context Protocol servers as
// agent capabilities.
package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 2
	defaultBackoff = 200 * time.Millisecond
)

// Options customize the client wrapper.
type Options struct {
	// Timeout bounds every request; 0 disables the per-request bound.
	Timeout time.Duration
	// Retries is the number of extra attempts after a transport failure.
	Retries uint
	Backoff time.Duration
	Logger  logging.Logger
}

// Client wraps an mcp-go client with per-request timeouts and retries.
type Client struct {
	mcpClient client.MCPClient
	opts      Options
}

// NewClient wraps an initialized MCP client.
func NewClient(c client.MCPClient, optFns ...func(o *Options)) *Client {
	opts := Options{
		Timeout: defaultTimeout,
		Retries: defaultRetries,
		Backoff: defaultBackoff,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = core.EnsureLogger(opts.Logger)

	return &Client{mcpClient: c, opts: opts}
}

// NewStdioClient launches command as an MCP server subprocess and performs
// the initialize handshake.
func NewStdioClient(ctx context.Context, command string, env, args []string, optFns ...func(o *Options)) (*Client, error) {
	stdioClient, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, err
	}

	if err := Initialize(ctx, stdioClient); err != nil {
		_ = stdioClient.Close()
		return nil, err
	}

	return NewClient(stdioClient, optFns...), nil
}

// Initialize performs the MCP handshake on c.
func Initialize(ctx context.Context, c client.MCPClient) error {
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "agentweave",
		Version: "0.1.0",
	}

	_, err := c.Initialize(ctx, initRequest)

	return err
}

// ListTools retrieves the tools offered by the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	res, err := retry(ctx, c, "list_tools", func(reqCtx context.Context) (*mcp.ListToolsResult, error) {
		return c.mcpClient.ListTools(reqCtx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, err
	}

	return res.Tools, nil
}

// CallTool executes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	return retry(ctx, c, name, func(reqCtx context.Context) (*mcp.CallToolResult, error) {
		return c.mcpClient.CallTool(reqCtx, req)
	})
}

// Tools lists the server's tools as capabilities.
func (c *Client) Tools(ctx context.Context) ([]*Tool, error) {
	defs, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*Tool, 0, len(defs))
	for _, def := range defs {
		t, err := NewTool(def, c)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	return out, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

func retry[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.Backoff

	attempt := 0

	return backoff.Retry(ctx, func() (T, error) {
		attempt++

		reqCtx, cancel := c.withTimeout(ctx)
		defer cancel()

		res, err := fn(reqCtx)
		if err != nil && ctx.Err() != nil {
			return res, backoff.Permanent(ctx.Err())
		}
		if err != nil && errors.Is(err, context.Canceled) {
			return res, backoff.Permanent(err)
		}

		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.opts.Retries+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.opts.Logger.Warn("mcp.retry", "op", op, "attempt", attempt, "backoff_ms", d.Milliseconds(), "error", err.Error())
		}),
	)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.Timeout)
}
