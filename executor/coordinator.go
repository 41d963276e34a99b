package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	loggerv2 "agentd/logger/v2"
)

// Status is the lifecycle state of one tool execution
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxConcurrent = 4
)

var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrNotPermitted  = errors.New("tool not permitted for this request")
	ErrInvalidArgs   = errors.New("invalid tool arguments")
	ErrToolTimeout   = errors.New("tool execution timed out")
	ErrToolCancelled = errors.New("tool execution cancelled")
)

// Call is one tool invocation requested by the model
type Call struct {
	ID        string
	Name      string
	Arguments string // JSON object, empty means {}
}

// Execution is the outcome of one Call
type Execution struct {
	ID        string
	ToolName  string
	Input     string
	Output    string
	Status    Status
	Error     string
	Mandatory bool
	StartedAt time.Time
	Duration  time.Duration

	err error
}

// Err returns a *ToolExecutionError for any outcome other than success
func (e Execution) Err() error {
	if e.Status == StatusSucceeded {
		return nil
	}
	cause := e.err
	if cause == nil {
		cause = errors.New(e.Error)
	}
	return &ToolExecutionError{
		CallID:    e.ID,
		ToolName:  e.ToolName,
		Status:    e.Status,
		Mandatory: e.Mandatory,
		Err:       cause,
	}
}

// ToolExecutionError reports a failed tool call. It aborts a request only when
// the tool is mandatory.
type ToolExecutionError struct {
	CallID    string
	ToolName  string
	Status    Status
	Mandatory bool
	Err       error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s (%s) %s: %v", e.ToolName, e.CallID, e.Status, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// MandatoryFailure returns the error of the first failed mandatory execution
func MandatoryFailure(execs []Execution) *ToolExecutionError {
	for _, exec := range execs {
		if exec.Mandatory && exec.Status != StatusSucceeded {
			var toolErr *ToolExecutionError
			if errors.As(exec.Err(), &toolErr) {
				return toolErr
			}
		}
	}
	return nil
}

// CoordinatorOption configures a Coordinator
type CoordinatorOption func(*Coordinator)

// WithLogger sets the coordinator logger
func WithLogger(logger loggerv2.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxConcurrent bounds how many calls of one batch run at once
func WithMaxConcurrent(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxConcurrent = int64(n)
		}
	}
}

// WithDefaultTimeout sets the timeout for tools and requests that specify none
func WithDefaultTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

// Coordinator executes batches of tool calls against a Registry
type Coordinator struct {
	registry       *Registry
	logger         loggerv2.Logger
	maxConcurrent  int64
	defaultTimeout time.Duration
	now            func() time.Time
}

// NewCoordinator creates a coordinator over registry
func NewCoordinator(registry *Registry, opts ...CoordinatorOption) *Coordinator {
	if registry == nil {
		registry = NewRegistry()
	}
	c := &Coordinator{
		registry:       registry,
		logger:         loggerv2.NewNoop(),
		maxConcurrent:  DefaultMaxConcurrent,
		defaultTimeout: DefaultTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the underlying registry
func (c *Coordinator) Registry() *Registry { return c.registry }

// Definitions lists the tools a request with policy may call
func (c *Coordinator) Definitions(policy Policy) []ToolDefinition {
	return c.registry.Definitions(policy)
}

// ExecuteAll runs calls concurrently and returns one Execution per call, in
// call order. Failures are reported per call and never stop siblings. When ctx
// is cancelled, calls still waiting or running end as StatusCancelled.
func (c *Coordinator) ExecuteAll(ctx context.Context, calls []Call, policy Policy) []Execution {
	results := make([]Execution, len(calls))
	if len(calls) == 0 {
		return results
	}

	sem := semaphore.NewWeighted(c.maxConcurrent)
	var wg sync.WaitGroup
	for i, call := range calls {
		results[i] = Execution{
			ID:       call.ID,
			ToolName: call.Name,
			Input:    call.Arguments,
			Status:   StatusPending,
		}
		wg.Add(1)
		go func(idx int, call Call) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[idx] = c.finish(results[idx], c.now(), "", fmt.Errorf("%w: %v", ErrToolCancelled, err), StatusCancelled)
				return
			}
			defer sem.Release(1)
			results[idx] = c.execute(ctx, results[idx], call, policy)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (c *Coordinator) execute(ctx context.Context, exec Execution, call Call, policy Policy) Execution {
	started := c.now()
	exec.Status = StatusRunning

	if !policy.Allows(call.Name) {
		return c.finish(exec, started, "", fmt.Errorf("%w: %s", ErrNotPermitted, call.Name), StatusFailed)
	}
	tool, ok := c.registry.Lookup(call.Name)
	if !ok {
		return c.finish(exec, started, "", fmt.Errorf("%w: %s", ErrUnknownTool, call.Name), StatusFailed)
	}
	def := tool.Definition()
	exec.Mandatory = def.Mandatory

	args, err := parseArguments(call.Arguments)
	if err != nil {
		return c.finish(exec, started, "", err, StatusFailed)
	}

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = policy.Timeout
	}
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.logger.Debug("Executing tool",
		loggerv2.String("tool", call.Name),
		loggerv2.String("call_id", call.ID),
		loggerv2.Duration("timeout", timeout))

	type outcome struct {
		output string
		err    error
	}
	// buffered so a tool ignoring its context never blocks on send
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		output, err := tool.Execute(callCtx, args)
		done <- outcome{output: output, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return c.finish(exec, started, res.output, res.err, c.classify(ctx, callCtx))
		}
		return c.finish(exec, started, res.output, nil, StatusSucceeded)
	case <-callCtx.Done():
		status := c.classify(ctx, callCtx)
		if status == StatusTimeout {
			return c.finish(exec, started, "", fmt.Errorf("%w after %s", ErrToolTimeout, timeout), status)
		}
		return c.finish(exec, started, "", fmt.Errorf("%w: %v", ErrToolCancelled, ctx.Err()), status)
	}
}

// classify maps a failed call to its status from the state of both contexts
func (c *Coordinator) classify(parent, call context.Context) Status {
	switch {
	case parent.Err() != nil:
		return StatusCancelled
	case errors.Is(call.Err(), context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusFailed
	}
}

func (c *Coordinator) finish(exec Execution, started time.Time, output string, err error, status Status) Execution {
	exec.StartedAt = started
	exec.Duration = c.now().Sub(started)
	exec.Output = output
	exec.Status = status
	if err != nil {
		exec.err = err
		exec.Error = err.Error()
		c.logger.Warn("Tool execution did not succeed",
			loggerv2.String("tool", exec.ToolName),
			loggerv2.String("call_id", exec.ID),
			loggerv2.String("status", string(status)),
			loggerv2.Error(err))
	}
	return exec
}

func parseArguments(raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
