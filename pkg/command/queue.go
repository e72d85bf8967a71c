// Package command implements the dispatch queue: every operator-issued
// command keyed by id, claimed in priority order by remote agents and
// resolved by exactly one result report. All operations run under a
// single mutex so claim selection and result reporting are linearizable.
package command

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"plant-relay/pkg/apierr"
	"plant-relay/pkg/model"
)

const (
	// DefaultHistoryLimit bounds the retained command set.
	DefaultHistoryLimit = 200
	// MaxClaimLimit caps how many commands one poll may claim.
	MaxClaimLimit = 50
)

// Queue holds all known commands. Construct with New.
type Queue struct {
	mu           sync.Mutex
	commands     map[string]*model.Command
	seq          uint64
	historyLimit int
	claimTTL     time.Duration
	now          func() time.Time
	onChange     func(model.Command)
}

// New returns an empty queue retaining at most historyLimit commands.
// A claimTTL of zero disables claim expiry: a command stuck in_progress
// stays there until a human intervenes.
func New(historyLimit int, claimTTL time.Duration) *Queue {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Queue{
		commands:     make(map[string]*model.Command),
		historyLimit: historyLimit,
		claimTTL:     claimTTL,
		now:          time.Now,
	}
}

// OnChange registers a callback invoked after every lifecycle change,
// outside the queue lock. Set once during wiring, before serving.
func (q *Queue) OnChange(fn func(model.Command)) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

// CreateRequest is the submitted form of a command.
type CreateRequest struct {
	Purpose  string            `json:"purpose"`
	Tasks    []model.TaskDraft `json:"tasks"`
	Metadata map[string]any    `json:"metadata"`
	Priority int               `json:"priority"`
	Guidance string            `json:"guidance"`
}

// Create validates the request, stores the command as pending and trims
// history. Returns the public view of the stored command.
func (q *Queue) Create(req CreateRequest) (model.Command, error) {
	purpose, err := model.ValidatePurpose(req.Purpose)
	if err != nil {
		return model.Command{}, apierr.New(apierr.ErrBadRequest, "%v", err)
	}
	if err := model.ValidatePriority(req.Priority); err != nil {
		return model.Command{}, apierr.New(apierr.ErrBadRequest, "%v", err)
	}
	if len(req.Tasks) == 0 {
		return model.Command{}, apierr.New(apierr.ErrBadRequest, "at least one task is required")
	}
	tasks := make([]model.Task, 0, len(req.Tasks))
	for i, draft := range req.Tasks {
		task, err := model.BuildTask(draft)
		if err != nil {
			return model.Command{}, apierr.New(apierr.ErrBadRequest, "task %d: %v", i, err)
		}
		tasks = append(tasks, task)
	}

	q.mu.Lock()
	q.seq++
	cmd := &model.Command{
		ID:        uuid.NewString(),
		Purpose:   purpose,
		Tasks:     tasks,
		Priority:  req.Priority,
		Metadata:  req.Metadata,
		Guidance:  req.Guidance,
		Status:    model.StatusPending,
		CreatedAt: q.now().UTC(),
		Sequence:  q.seq,
	}
	q.commands[cmd.ID] = cmd
	q.trimLocked()
	view := cmd.View()
	fn := q.onChange
	q.mu.Unlock()

	if fn != nil {
		fn(view)
	}
	return view, nil
}

// ClaimNext transitions up to limit pending commands to in_progress on
// behalf of claimant and returns their views, ordered by priority
// descending then creation order ascending. Commands left unselected
// stay pending for a future poll.
func (q *Queue) ClaimNext(limit int, claimant string) []model.Command {
	if limit <= 0 {
		limit = 1
	}
	if limit > MaxClaimLimit {
		limit = MaxClaimLimit
	}

	q.mu.Lock()
	now := q.now().UTC()
	q.reclaimExpiredLocked(now)

	pending := make([]*model.Command, 0, len(q.commands))
	for _, c := range q.commands {
		if c.Status == model.StatusPending {
			pending = append(pending, c)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].Sequence < pending[j].Sequence
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	claimed := make([]model.Command, 0, len(pending))
	for _, c := range pending {
		c.Status = model.StatusInProgress
		at := now
		c.ClaimedAt = &at
		c.ClaimedBy = claimant
		c.Attempts++
		claimed = append(claimed, c.View())
	}
	fn := q.onChange
	q.mu.Unlock()

	if fn != nil {
		for _, view := range claimed {
			fn(view)
		}
	}
	return claimed
}

// reclaimExpiredLocked returns expired in_progress commands to pending.
// No-op when the claim TTL is disabled.
func (q *Queue) reclaimExpiredLocked(now time.Time) {
	if q.claimTTL <= 0 {
		return
	}
	for _, c := range q.commands {
		if c.Status != model.StatusInProgress || c.ClaimedAt == nil {
			continue
		}
		if now.Sub(*c.ClaimedAt) > q.claimTTL {
			c.Status = model.StatusPending
		}
	}
}

// ReportResult records the single terminal outcome for a command.
func (q *Queue) ReportResult(id, status, detail string, outputs map[string]any) (model.Command, error) {
	terminal, err := model.ParseResultStatus(status)
	if err != nil {
		return model.Command{}, apierr.New(apierr.ErrBadRequest, "%v", err)
	}

	q.mu.Lock()
	cmd, ok := q.commands[id]
	if !ok {
		q.mu.Unlock()
		return model.Command{}, apierr.New(apierr.ErrNotFound, "command %q not found", id)
	}
	if err := model.ValidateTransition(cmd.Status, terminal); err != nil {
		q.mu.Unlock()
		return model.Command{}, apierr.New(apierr.ErrConflict, "command %q already has result %q", id, cmd.Status)
	}
	cmd.Status = terminal
	cmd.Result = &model.Result{
		Status:     terminal,
		Detail:     detail,
		Outputs:    outputs,
		ReportedAt: q.now().UTC(),
	}
	view := cmd.View()
	fn := q.onChange
	q.mu.Unlock()

	if fn != nil {
		fn(view)
	}
	return view, nil
}

// Get returns the public view of one command.
func (q *Queue) Get(id string) (model.Command, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmd, ok := q.commands[id]
	if !ok {
		return model.Command{}, apierr.New(apierr.ErrNotFound, "command %q not found", id)
	}
	return cmd.View(), nil
}

// Len returns the number of retained commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}

// Counts returns the retained command count per status.
func (q *Queue) Counts() map[model.Status]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[model.Status]int, 4)
	for _, c := range q.commands {
		out[c.Status]++
	}
	return out
}

// trimLocked evicts terminal commands in ascending sequence order until
// the store is back at the history limit or no terminal commands remain.
// Pending and in_progress commands are never evicted, so the store may
// transiently exceed the limit when the backlog is all non-terminal.
func (q *Queue) trimLocked() {
	for len(q.commands) > q.historyLimit {
		var oldest *model.Command
		for _, c := range q.commands {
			if !model.IsTerminal(c.Status) {
				continue
			}
			if oldest == nil || c.Sequence < oldest.Sequence {
				oldest = c
			}
		}
		if oldest == nil {
			return
		}
		delete(q.commands, oldest.ID)
	}
}
