// Package client sends the calculations listed in an input file to a calcpool
// server and records every request and response in an output file.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jzx17/calcpool/internal/calc"
	"github.com/jzx17/calcpool/internal/config"
	log "github.com/jzx17/calcpool/internal/logger"
	"github.com/jzx17/calcpool/pkg/retry"
	"github.com/jzx17/calcpool/pkg/types"
)

// ErrServerBusy is returned when the server could not accept the request
var ErrServerBusy = errors.New("server busy")

// Summary counts the requests sent by Calculate
type Summary struct {
	Requests  int
	Succeeded int
	Failed    int
}

// Option configures a Client
type Option func(*Client)

// WithClock sets the clock used between retry attempts
func WithClock(clock types.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// Client reads requests from the input file and writes results to the output file
type Client struct {
	cfg    config.Client
	logger *slog.Logger
	clock  types.Clock

	in       *os.File
	out      *os.File
	dialer   net.Dialer
	executor *retry.RetryExecutor
}

// New opens the input file and creates the output file
func New(cfg config.Client, logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
		clock:  types.NewRealClock(),
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	in, err := os.Open(cfg.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}

	out, err := os.Create(cfg.OutputPath)
	if err != nil {
		_ = in.Close()

		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}

	c.in, c.out = in, out

	policy := retry.NewExponentialBackoffRetry(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialDelay,
		retry.WithMaxDelay(cfg.Retry.MaxDelay),
		retry.WithPolicyOptions(retry.WithRetryCondition(shouldRetry)),
	)

	c.executor = retry.NewRetryExecutor(policy,
		retry.WithEventHandler(retry.NewLogEventHandler(logger)),
		retry.WithClock(c.clock),
	)

	return c, nil
}

func shouldRetry(err error) bool {
	return errors.Is(err, ErrServerBusy) || retry.DefaultRetryCondition(err)
}

// Close releases the input and output files
func (c *Client) Close() error {
	return errors.Join(c.in.Close(), c.out.Close())
}

// Calculate sends every non-empty input line to the server, one connection
// per request. A line that does not parse aborts the run; a request the
// server rejects is recorded and the run continues.
func (c *Client) Calculate(ctx context.Context) (Summary, error) {
	var summary Summary

	scanner := bufio.NewScanner(c.in)
	out := bufio.NewWriter(c.out)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		req, err := calc.ParseLine(line)
		if err != nil {
			_ = out.Flush()

			return summary, fmt.Errorf("calculate error: %w: %s", err, line)
		}

		payload := calc.EncodeRequest(req.Operator, req.Operands)

		resp, err := retry.ExecuteWithName(c.executor, ctx, "calculate", func(ctx context.Context) (calc.Response, error) {
			return c.exchange(ctx, payload)
		})
		if err != nil {
			_ = out.Flush()

			return summary, fmt.Errorf("calculate error: %w", err)
		}

		summary.Requests++
		if resp.OK() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}

		c.logger.Debug("Request completed",
			slog.String("request", req.String()),
			slog.Int("status", resp.StatusCode),
			slog.String("response", resp.Body))

		if _, err = fmt.Fprintf(out, "REQ: %s\nRESP: %s\n", req, resp.Body); err != nil {
			return summary, fmt.Errorf("calculate error: could not write output: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		_ = out.Flush()

		return summary, fmt.Errorf("calculate error: failed to read input file: %w", err)
	}

	if err := out.Flush(); err != nil {
		return summary, fmt.Errorf("calculate error: could not write output: %w", err)
	}

	return summary, nil
}

// exchange sends one request over a fresh connection and reads the reply
func (c *Client) exchange(ctx context.Context, payload []byte) (calc.Response, error) {
	conn, err := c.dialer.DialContext(ctx, c.cfg.Network, c.cfg.ServerAddress)
	if err != nil {
		return calc.Response{}, err
	}
	defer conn.Close()

	if c.cfg.IOTimeout > 0 {
		if err = conn.SetDeadline(time.Now().Add(c.cfg.IOTimeout)); err != nil {
			return calc.Response{}, err
		}
	}

	if _, err = conn.Write(payload); err != nil {
		return calc.Response{}, err
	}

	resp, err := calc.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		return calc.Response{}, err
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return calc.Response{}, fmt.Errorf("%w: %s", ErrServerBusy, resp.Error)
	}

	return resp, nil
}
