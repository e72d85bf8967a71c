package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"plant-relay/pkg/model"
)

// commandsOnce claims pending commands from the relay, executes their
// tasks in order against the simulator and reports each outcome.
func (a *Runner) commandsOnce(ctx context.Context) error {
	commands, err := a.claim(ctx)
	if err != nil {
		return fmt.Errorf("claim commands: %w", err)
	}
	for _, cmd := range commands {
		status, detail, outputs := a.execute(ctx, cmd)
		if err := a.report(ctx, cmd.ID, status, detail, outputs); err != nil {
			a.log.Warn("result report failed", "command", cmd.ID, "err", err)
		}
	}
	return nil
}

func (a *Runner) claim(ctx context.Context) ([]model.Command, error) {
	u := fmt.Sprintf("%s/api/commands/next?limit=%d&client_id=%s",
		a.relay, a.claimLimit, url.QueryEscape(a.id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Command-Token", a.token)
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}
	var out struct {
		Commands []model.Command `json:"commands"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Commands, nil
}

// execute runs every task of a command sequentially. The command
// completes only when all tasks succeed; the first failure is recorded
// and the remaining tasks are skipped.
func (a *Runner) execute(ctx context.Context, cmd model.Command) (status, detail string, outputs map[string]any) {
	a.log.Info("executing command", "id", cmd.ID, "purpose", cmd.Purpose, "tasks", len(cmd.Tasks))
	outputs = make(map[string]any, len(cmd.Tasks))
	for i, task := range cmd.Tasks {
		key := fmt.Sprintf("task_%d", i)
		if err := a.runTask(ctx, task); err != nil {
			outputs[key] = map[string]any{"variable": task.Variable, "status": "failed", "error": err.Error()}
			return string(model.StatusFailed), fmt.Sprintf("task %d (%s %s) failed: %v", i, task.Operation, task.Variable, err), outputs
		}
		outputs[key] = map[string]any{"variable": task.Variable, "status": "ok"}
	}
	return string(model.StatusCompleted), fmt.Sprintf("%d task(s) executed", len(cmd.Tasks)), outputs
}

func (a *Runner) runTask(ctx context.Context, task model.Task) error {
	if err := a.setVariable(ctx, task.Variable, task.Value); err != nil {
		return err
	}
	if task.Operation != model.OpPulse {
		return nil
	}
	if task.HoldSeconds > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(task.HoldSeconds * float64(time.Second))):
		}
	}
	return a.setVariable(ctx, task.Variable, task.ResetValue)
}

// setVariable writes one value through the simulator's set endpoint.
func (a *Runner) setVariable(ctx context.Context, variable string, value any) error {
	u := fmt.Sprintf("%s/?Variable=%s&value=%s",
		a.game, url.QueryEscape(variable), url.QueryEscape(formatValue(value)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}
	return nil
}

// formatValue renders a task value the way the simulator expects it on
// the query string: scalars bare, containers as JSON.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func (a *Runner) report(ctx context.Context, id, status, detail string, outputs map[string]any) error {
	body, err := json.Marshal(map[string]any{"status": status, "detail": detail, "outputs": outputs})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.relay+"/api/commands/"+url.PathEscape(id)+"/result", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Command-Token", a.token)
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}
	return nil
}
