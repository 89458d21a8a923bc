package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/RubachokBoss/assignment-tracker/internal/apperr"
)

func TestUpdateProgressDerivesCompletion(t *testing.T) {
	env := newTestEnv(t)
	worker := env.addUser(t, "Ana Worker", false, true)
	a := env.instantiate(t, env.addTemplate(t, true, 2), worker, "2025-03-01")
	stageID := a.Stages[0].ID

	for _, p := range []int{0, 1, 42, 99} {
		s, err := env.progress.UpdateProgress(context.Background(), stageID, worker.ID, p)
		if err != nil {
			t.Fatalf("progress %d: %v", p, err)
		}
		if s.IsComplete || s.CompletedAt != nil || s.ProgressPercent != p {
			t.Fatalf("progress %d: unexpected state %+v", p, s)
		}
	}

	s, err := env.progress.UpdateProgress(context.Background(), stageID, worker.ID, 100)
	if err != nil {
		t.Fatalf("progress 100: %v", err)
	}
	if !s.IsComplete || s.CompletedAt == nil || !s.CompletedAt.Equal(testNow) {
		t.Fatalf("expected completion stamped at now, got %+v", s)
	}

	last := env.events.progress[len(env.events.progress)-1]
	if !last.Completed || !last.IsComplete || last.ProgressPercent != 100 {
		t.Fatalf("unexpected event: %+v", last)
	}
}

func TestUpdateProgressDownwardClearsCompletion(t *testing.T) {
	env := newTestEnv(t)
	worker := env.addUser(t, "Ana Worker", false, true)
	a := env.instantiate(t, env.addTemplate(t, true, 2), worker, "2025-03-01")
	stageID := a.Stages[0].ID

	if _, err := env.progress.UpdateProgress(context.Background(), stageID, worker.ID, 100); err != nil {
		t.Fatalf("complete: %v", err)
	}
	s, err := env.progress.UpdateProgress(context.Background(), stageID, worker.ID, 70)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if s.IsComplete || s.CompletedAt != nil {
		t.Fatalf("expected completion cleared, got %+v", s)
	}
	if env.events.progress[len(env.events.progress)-1].Completed {
		t.Fatalf("a drop below 100 is not a completion")
	}
}

func TestUpdateProgressRejectsOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	worker := env.addUser(t, "Ana Worker", false, true)
	a := env.instantiate(t, env.addTemplate(t, true, 2), worker, "2025-03-01")

	for _, p := range []int{-1, 101, 1000} {
		_, err := env.progress.UpdateProgress(context.Background(), a.Stages[0].ID, worker.ID, p)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("progress %d: expected validation error, got %v", p, err)
		}
	}
	if got := env.db.stages[a.Stages[0].ID].ProgressPercent; got != 0 {
		t.Fatalf("stage mutated by rejected update: %d", got)
	}
}

func TestUpdateProgressHidesForeignStages(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addUser(t, "Ana Worker", false, true)
	other := env.addUser(t, "Ben Worker", false, true)
	a := env.instantiate(t, env.addTemplate(t, true, 2), owner, "2025-03-01")

	cases := []struct {
		name    string
		stageID string
		userID  string
	}{
		{"other user", a.Stages[0].ID, other.ID},
		{"admin is not the assignee", a.Stages[0].ID, env.admin.ID},
		{"unknown stage", uuid.New().String(), owner.ID},
		{"malformed stage id", "42", owner.ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.progress.UpdateProgress(context.Background(), tc.stageID, tc.userID, 50)
			if !errors.Is(err, apperr.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
	if got := env.db.stages[a.Stages[0].ID].ProgressPercent; got != 0 {
		t.Fatalf("foreign update leaked: %d", got)
	}
}
