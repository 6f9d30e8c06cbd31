package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopkit/backend/internal/domain/procman"
)

// ProcessManagerView is the read model of one saga instance
type ProcessManagerView struct {
	ID              string          `json:"id"`
	SagaType        string          `json:"saga_type"`
	State           string          `json:"state"`
	Terminal        bool            `json:"terminal"`
	TimeoutAt       *time.Time      `json:"timeout_at,omitempty"`
	Data            json.RawMessage `json:"data"`
	ProcessedEvents []string        `json:"processed_events"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TransitionView is one row of a saga's audit history
type TransitionView struct {
	EventID    string    `json:"event_id,omitempty"`
	EventType  string    `json:"event_type,omitempty"`
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// QueryService exposes saga state for operators. It never mutates.
type QueryService struct {
	repo procman.Repository
}

// NewQueryService creates a new query service
func NewQueryService(repo procman.Repository) *QueryService {
	return &QueryService{repo: repo}
}

// Get returns the instance with id, or found=false
func (s *QueryService) Get(ctx context.Context, id string) (ProcessManagerView, bool, error) {
	pm, found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return ProcessManagerView{}, false, fmt.Errorf("find process manager %s: %w", id, err)
	}
	if !found {
		return ProcessManagerView{}, false, nil
	}
	return ProcessManagerView{
		ID:              pm.ID,
		SagaType:        pm.SagaType,
		State:           displayState(pm.State),
		Terminal:        pm.IsTerminal(),
		TimeoutAt:       pm.TimeoutAt,
		Data:            displayData(pm.Data),
		ProcessedEvents: pm.ProcessedEvents,
		Version:         pm.Version,
		CreatedAt:       pm.CreatedAt,
		UpdatedAt:       pm.UpdatedAt,
	}, true, nil
}

// History returns the transitions of id oldest first. An unknown id yields
// an empty slice.
func (s *QueryService) History(ctx context.Context, id string) ([]TransitionView, error) {
	rows, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load history of %s: %w", id, err)
	}
	out := make([]TransitionView, 0, len(rows))
	for _, t := range rows {
		out = append(out, TransitionView{
			EventID:    t.EventID,
			EventType:  t.EventType,
			FromState:  displayState(t.FromState),
			ToState:    displayState(t.ToState),
			TraceID:    t.TraceID,
			OccurredAt: t.OccurredAt,
		})
	}
	return out, nil
}

// Counts returns instance counts per saga type and state
func (s *QueryService) Counts(ctx context.Context) ([]procman.StateCount, error) {
	counts, err := s.repo.CountByState(ctx)
	if err != nil {
		return nil, fmt.Errorf("count process managers: %w", err)
	}
	for i := range counts {
		counts[i].State = displayState(counts[i].State)
	}
	return counts, nil
}

// secretDataKeys never leave the service through the read model
var secretDataKeys = []string{"confirmation_token", "token"}

// displayData drops secretDataKeys from a saga's JSON data. Data that is
// not a JSON object is shown as null rather than risk leaking it.
func displayData(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return json.RawMessage("null")
	}
	for _, k := range secretDataKeys {
		delete(fields, k)
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return json.RawMessage("null")
	}
	return out
}

// StateProcessStarted is how the empty started state is shown to operators
const StateProcessStarted = "PROCESS_STARTED"

func displayState(state string) string {
	if state == procman.StateStarted {
		return StateProcessStarted
	}
	return state
}
