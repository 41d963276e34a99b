package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func sleepTool(name string, d time.Duration, def ToolDefinition) Tool {
	def.Name = name
	return FuncTool{
		Def: def,
		Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			select {
			case <-time.After(d):
				return name + " done", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}
}

func failingTool(name string, mandatory bool) Tool {
	return FuncTool{
		Def: ToolDefinition{Name: name, Mandatory: mandatory},
		Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "", errors.New("boom")
		},
	}
}

func newTestCoordinator(t *testing.T, tools ...Tool) *Coordinator {
	t.Helper()
	reg := NewRegistry()
	if err := reg.Register(tools...); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return NewCoordinator(reg)
}

func TestExecuteAllPreservesCallOrder(t *testing.T) {
	c := newTestCoordinator(t,
		sleepTool("slow", 60*time.Millisecond, ToolDefinition{}),
		sleepTool("fast", time.Millisecond, ToolDefinition{}),
	)
	calls := []Call{
		{ID: "1", Name: "slow"},
		{ID: "2", Name: "fast"},
		{ID: "3", Name: "slow"},
	}

	execs := c.ExecuteAll(context.Background(), calls, Policy{})
	if len(execs) != len(calls) {
		t.Fatalf("got %d executions, want %d", len(execs), len(calls))
	}
	for i, exec := range execs {
		if exec.ID != calls[i].ID {
			t.Errorf("execution %d has id %s, want %s", i, exec.ID, calls[i].ID)
		}
		if exec.Status != StatusSucceeded {
			t.Errorf("execution %d status = %s, want succeeded (%s)", i, exec.Status, exec.Error)
		}
		if exec.Output != calls[i].Name+" done" {
			t.Errorf("execution %d output = %q", i, exec.Output)
		}
	}
}

func TestExecuteAllIsolatesFailures(t *testing.T) {
	c := newTestCoordinator(t,
		failingTool("broken", false),
		sleepTool("ok", time.Millisecond, ToolDefinition{}),
	)
	calls := []Call{
		{ID: "a", Name: "broken"},
		{ID: "b", Name: "ok"},
		{ID: "c", Name: "missing"},
		{ID: "d", Name: "ok", Arguments: "{not json"},
	}

	execs := c.ExecuteAll(context.Background(), calls, Policy{})

	tests := []struct {
		idx     int
		status  Status
		wantErr error
	}{
		{idx: 0, status: StatusFailed},
		{idx: 1, status: StatusSucceeded},
		{idx: 2, status: StatusFailed, wantErr: ErrUnknownTool},
		{idx: 3, status: StatusFailed, wantErr: ErrInvalidArgs},
	}
	for _, tt := range tests {
		exec := execs[tt.idx]
		if exec.Status != tt.status {
			t.Errorf("call %s status = %s, want %s", exec.ID, exec.Status, tt.status)
		}
		if tt.wantErr != nil && !errors.Is(exec.Err(), tt.wantErr) {
			t.Errorf("call %s error = %v, want %v", exec.ID, exec.Err(), tt.wantErr)
		}
	}
	if MandatoryFailure(execs) != nil {
		t.Errorf("MandatoryFailure() reported a failure for optional tools")
	}
}

func TestExecuteAllTimeoutPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		toolLimit  time.Duration
		policy     time.Duration
		wantStatus Status
	}{
		{name: "tool timeout wins", toolLimit: 10 * time.Millisecond, policy: time.Second, wantStatus: StatusTimeout},
		{name: "request timeout", policy: 10 * time.Millisecond, wantStatus: StatusTimeout},
		{name: "generous limits", toolLimit: time.Second, policy: 10 * time.Millisecond, wantStatus: StatusSucceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCoordinator(t, sleepTool("wait", 100*time.Millisecond, ToolDefinition{Timeout: tt.toolLimit}))
			execs := c.ExecuteAll(context.Background(), []Call{{ID: "1", Name: "wait"}}, Policy{Timeout: tt.policy})
			if execs[0].Status != tt.wantStatus {
				t.Errorf("status = %s, want %s (%s)", execs[0].Status, tt.wantStatus, execs[0].Error)
			}
		})
	}
}

func TestExecuteAllTimeoutIgnoringTool(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	stubborn := FuncTool{
		Def: ToolDefinition{Name: "stubborn", Timeout: 20 * time.Millisecond},
		Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			<-block
			return "late", nil
		},
	}
	c := newTestCoordinator(t, stubborn)

	start := time.Now()
	execs := c.ExecuteAll(context.Background(), []Call{{ID: "1", Name: "stubborn"}}, Policy{})
	if execs[0].Status != StatusTimeout {
		t.Fatalf("status = %s, want timeout", execs[0].Status)
	}
	if !errors.Is(execs[0].Err(), ErrToolTimeout) {
		t.Errorf("Err() = %v, want ErrToolTimeout", execs[0].Err())
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ExecuteAll waited %s for a tool ignoring its context", elapsed)
	}
}

func TestExecuteAllCancellation(t *testing.T) {
	c := newTestCoordinator(t, sleepTool("long", 5*time.Second, ToolDefinition{}))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	execs := c.ExecuteAll(ctx, []Call{{ID: "1", Name: "long"}, {ID: "2", Name: "long"}}, Policy{})
	for _, exec := range execs {
		if exec.Status != StatusCancelled {
			t.Errorf("call %s status = %s, want cancelled", exec.ID, exec.Status)
		}
	}
}

func TestExecuteAllPolicy(t *testing.T) {
	c := newTestCoordinator(t, Builtins()...)
	calls := []Call{
		{ID: "1", Name: "calculator", Arguments: `{"operation":"add","a":2,"b":3}`},
		{ID: "2", Name: "current_time"},
	}

	execs := c.ExecuteAll(context.Background(), calls, Policy{Allowed: []string{"calculator"}})
	if execs[0].Status != StatusSucceeded || execs[0].Output != "5" {
		t.Errorf("calculator = %s %q, want succeeded \"5\"", execs[0].Status, execs[0].Output)
	}
	if execs[1].Status != StatusFailed || !errors.Is(execs[1].Err(), ErrNotPermitted) {
		t.Errorf("current_time = %s %v, want failed ErrNotPermitted", execs[1].Status, execs[1].Err())
	}

	defs := c.Definitions(Policy{Allowed: []string{"calculator"}})
	if len(defs) != 1 || defs[0].Name != "calculator" {
		t.Errorf("Definitions() = %v, want only calculator", defs)
	}
}

func TestExecuteAllBoundsConcurrency(t *testing.T) {
	var running, peak int32
	tool := FuncTool{
		Def: ToolDefinition{Name: "count"},
		Fn: func(ctx context.Context, args map[string]interface{}) (string, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return "", nil
		},
	}
	reg := NewRegistry()
	if err := reg.Register(tool); err != nil {
		t.Fatal(err)
	}
	c := NewCoordinator(reg, WithMaxConcurrent(2))

	calls := make([]Call, 8)
	for i := range calls {
		calls[i] = Call{ID: fmt.Sprint(i), Name: "count"}
	}
	c.ExecuteAll(context.Background(), calls, Policy{})

	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestMandatoryFailure(t *testing.T) {
	c := newTestCoordinator(t, failingTool("required", true), failingTool("optional", false))
	execs := c.ExecuteAll(context.Background(), []Call{
		{ID: "1", Name: "optional"},
		{ID: "2", Name: "required"},
	}, Policy{})

	toolErr := MandatoryFailure(execs)
	if toolErr == nil {
		t.Fatal("MandatoryFailure() = nil, want error")
	}
	if toolErr.CallID != "2" || toolErr.ToolName != "required" || !toolErr.Mandatory {
		t.Errorf("MandatoryFailure() = %+v", toolErr)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Builtins()...); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	err := reg.Register(calculatorTool())
	if !errors.Is(err, ErrToolExists) {
		t.Errorf("Register() duplicate error = %v, want ErrToolExists", err)
	}
}

func TestCalculator(t *testing.T) {
	tests := []struct {
		args    map[string]interface{}
		want    string
		wantErr bool
	}{
		{args: map[string]interface{}{"operation": "multiply", "a": 6.0, "b": 7.0}, want: "42"},
		{args: map[string]interface{}{"operation": "divide", "a": 1.0, "b": 4.0}, want: "0.25"},
		{args: map[string]interface{}{"operation": "power", "a": "2", "b": 10.0}, want: "1024"},
		{args: map[string]interface{}{"operation": "divide", "a": 1.0, "b": 0.0}, wantErr: true},
		{args: map[string]interface{}{"operation": "modulo", "a": 1.0, "b": 2.0}, wantErr: true},
		{args: map[string]interface{}{"operation": "add", "a": 1.0}, wantErr: true},
	}
	tool := calculatorTool()
	for _, tt := range tests {
		got, err := tool.Execute(context.Background(), tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("calculator(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("calculator(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestCurrentTime(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	tool := currentTimeTool(func() time.Time { return fixed })

	got, err := tool.Execute(context.Background(), map[string]interface{}{})
	if err != nil || got != "2026-01-02T15:04:05Z" {
		t.Errorf("current_time() = %q, %v", got, err)
	}
	if _, err := tool.Execute(context.Background(), map[string]interface{}{"timezone": "Not/AZone"}); err == nil {
		t.Error("current_time() accepted an unknown timezone")
	}
}
