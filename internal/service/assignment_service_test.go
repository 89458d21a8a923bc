package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/apperr"
	"github.com/RubachokBoss/assignment-tracker/internal/models"
)

func TestInstantiateChainsStageDates(t *testing.T) {
	env := newTestEnv(t)
	worker := env.addUser(t, "Ana Worker", false, true)
	tmpl := env.addTemplate(t, true, 3, 5, 2)

	a := env.instantiate(t, tmpl, worker, "2025-03-01")

	want := []struct{ start, target string }{
		{"2025-03-01", "2025-03-04"},
		{"2025-03-04", "2025-03-09"},
		{"2025-03-09", "2025-03-11"},
	}
	if len(a.Stages) != len(want) {
		t.Fatalf("stages: want=%d got=%d", len(want), len(a.Stages))
	}
	for i, w := range want {
		s := a.Stages[i]
		if !s.StartDate.Equal(date(w.start)) || !s.TargetDate.Equal(date(w.target)) {
			t.Fatalf("stage %d: want %s..%s got %v..%v", i+1, w.start, w.target, s.StartDate, s.TargetDate)
		}
		if s.Ordinal != i+1 {
			t.Fatalf("stage %d ordinal: got %d", i+1, s.Ordinal)
		}
	}

	if a.AssignedByUserID != env.admin.ID || !a.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected assignment metadata: %+v", a)
	}
	if len(env.events.created) != 1 || env.events.created[0].StageCount != 3 {
		t.Fatalf("expected one created event with 3 stages, got %+v", env.events.created)
	}
}

func TestInstantiateZeroStageTemplate(t *testing.T) {
	env := newTestEnv(t)
	worker := env.addUser(t, "Ana Worker", false, true)
	tmpl := env.addTemplate(t, true)

	a := env.instantiate(t, tmpl, worker, "2025-03-01")
	if len(a.Stages) != 0 {
		t.Fatalf("expected no stages, got %d", len(a.Stages))
	}
	if n, _, _ := env.rowCounts(); n != 1 {
		t.Fatalf("expected assignment row, got %d", n)
	}
}

func TestInstantiateRejectsUnusableTemplateOrAssignee(t *testing.T) {
	env := newTestEnv(t)
	worker := env.addUser(t, "Ana Worker", false, true)
	inactiveWorker := env.addUser(t, "Idle Worker", false, false)
	active := env.addTemplate(t, true, 1)
	inactive := env.addTemplate(t, false, 1)

	cases := []struct {
		name       string
		templateID string
		assigneeID string
		start      string
	}{
		{"inactive template", inactive.ID, worker.ID, "2025-03-01"},
		{"unknown template", uuid.New().String(), worker.ID, "2025-03-01"},
		{"malformed template id", "nope", worker.ID, "2025-03-01"},
		{"admin assignee", active.ID, env.admin.ID, "2025-03-01"},
		{"inactive assignee", active.ID, inactiveWorker.ID, "2025-03-01"},
		{"unknown assignee", active.ID, uuid.New().String(), "2025-03-01"},
		{"bad start date", active.ID, worker.ID, "03/01/2025"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.assign.Instantiate(context.Background(), &models.CreateAssignmentRequest{
				TemplateID:       tc.templateID,
				Title:            "x",
				AssignedToUserID: tc.assigneeID,
				StartDate:        tc.start,
			}, env.admin.ID)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if a, s, _ := env.rowCounts(); a != 0 || s != 0 {
		t.Fatalf("expected no rows, got assignments=%d stages=%d", a, s)
	}
}

func TestInstantiateIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	worker := env.addUser(t, "Ana Worker", false, true)
	tmpl := env.addTemplate(t, true, 1, 2, 3, 4)
	env.db.failStageInsertAt = 3

	_, err := env.assign.Instantiate(context.Background(), &models.CreateAssignmentRequest{
		TemplateID:       tmpl.ID,
		Title:            "Onboarding",
		AssignedToUserID: worker.ID,
		StartDate:        "2025-03-01",
	}, env.admin.ID)
	if !errors.Is(err, apperr.ErrTransaction) {
		t.Fatalf("expected transaction error, got %v", err)
	}
	if a, s, _ := env.rowCounts(); a != 0 || s != 0 {
		t.Fatalf("expected no partial rows, got assignments=%d stages=%d", a, s)
	}
	if len(env.events.created) != 0 {
		t.Fatalf("no event expected for a failed instantiation")
	}
}

func TestInstantiateTemplateDeletedConcurrentlyIsValidation(t *testing.T) {
	env := newTestEnv(t)
	worker := env.addUser(t, "Ana Worker", false, true)
	tmpl := env.addTemplate(t, true, 1, 2)
	svc := NewAssignmentService(fakeAssignments{env.db}, vanishingTemplates{fakeTemplates{env.db}}, fakeUsers{env.db}, env.blobs, env.events, env.clock, zerolog.Nop())

	_, err := svc.Instantiate(context.Background(), &models.CreateAssignmentRequest{
		TemplateID:       tmpl.ID,
		Title:            "Onboarding",
		AssignedToUserID: worker.ID,
		StartDate:        "2025-03-01",
	}, env.admin.ID)
	if !errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if apperr.Message(err) != "template or user no longer exists" {
		t.Fatalf("unexpected message %q", apperr.Message(err))
	}
	if a, s, _ := env.rowCounts(); a != 0 || s != 0 {
		t.Fatalf("expected no rows, got assignments=%d stages=%d", a, s)
	}
	if len(env.events.created) != 0 {
		t.Fatalf("no event expected")
	}
}

func TestInstantiateCopiesTemplateData(t *testing.T) {
	env := newTestEnv(t)
	worker := env.addUser(t, "Ana Worker", false, true)
	tmpl := env.addTemplate(t, true, 4)
	a := env.instantiate(t, tmpl, worker, "2025-03-01")

	env.db.mu.Lock()
	for id, st := range env.db.stageTemplates {
		st.DurationDays = 40
		st.Name = "renamed"
		env.db.stageTemplates[id] = st
	}
	env.db.mu.Unlock()

	details, err := env.status.Project(context.Background(), a.ID, models.Principal{UserID: worker.ID})
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	s := details.Stages[0]
	if s.DurationDays != 4 || s.Name != "stage-1" || !s.TargetDate.Equal(date("2025-03-05")) {
		t.Fatalf("existing stage changed after template edit: %+v", s)
	}
}

func TestInstantiateSurvivesPublishFailure(t *testing.T) {
	env := newTestEnv(t)
	env.events.failWith = errors.New("broker down")
	worker := env.addUser(t, "Ana Worker", false, true)
	tmpl := env.addTemplate(t, true, 1)

	a := env.instantiate(t, tmpl, worker, "2025-03-01")
	if a.ID == "" {
		t.Fatalf("expected assignment despite publish failure")
	}
}

func TestInstantiateNormalizesDueDate(t *testing.T) {
	env := newTestEnv(t)
	worker := env.addUser(t, "Ana Worker", false, true)
	tmpl := env.addTemplate(t, true, 1)

	a, err := env.assign.Instantiate(context.Background(), &models.CreateAssignmentRequest{
		TemplateID:       tmpl.ID,
		Title:            "  Onboarding  ",
		AssignedToUserID: worker.ID,
		StartDate:        "2025-03-01",
		DueDate:          "2025-04-01",
	}, env.admin.ID)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if a.Title != "Onboarding" || a.DueDate == nil || !a.DueDate.Equal(date("2025-04-01")) {
		t.Fatalf("unexpected assignment: %+v", a)
	}
}

func TestListForUserReturnsOwnAssignmentsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ana := env.addUser(t, "Ana Worker", false, true)
	ben := env.addUser(t, "Ben Worker", false, true)
	tmpl := env.addTemplate(t, true, 1, 1)

	first := env.instantiate(t, tmpl, ana, "2025-03-01")
	env.instantiate(t, tmpl, ben, "2025-03-01")
	second := env.instantiate(t, tmpl, ana, "2025-03-02")
	env.setProgress(t, second.Stages[0].ID, 100)

	list, err := env.assign.ListForUser(context.Background(), ana.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list[0].TotalStages != 2 || list[0].CompletedStages != 1 || list[0].OverallProgress != 50 {
		t.Fatalf("unexpected summary: %+v", list[0])
	}
	if list[0].Stages != nil {
		t.Fatalf("summaries should not carry stage rows")
	}

	all, err := env.assign.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(all))
	}
}

func TestDeleteAssignmentRemovesEvidenceBlobs(t *testing.T) {
	env := newTestEnv(t)
	worker := env.addUser(t, "Ana Worker", false, true)
	tmpl := env.addTemplate(t, true, 1, 1)
	a := env.instantiate(t, tmpl, worker, "2025-03-01")

	for _, s := range a.Stages {
		if _, err := env.evidence.Attach(context.Background(), &models.AttachEvidenceRequest{
			StageID:          s.ID,
			RequestingUserID: worker.ID,
			FileBytes:        []byte("%PDF-1.4 proof"),
			OriginalFileName: "proof.pdf",
		}); err != nil {
			t.Fatalf("attach: %v", err)
		}
	}
	if env.blobs.count() != 2 {
		t.Fatalf("expected 2 blobs, got %d", env.blobs.count())
	}

	if err := env.assign.Delete(context.Background(), a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if env.blobs.count() != 0 {
		t.Fatalf("expected blobs removed, got %d", env.blobs.count())
	}
	if n, s, e := env.rowCounts(); n != 0 || s != 0 || e != 0 {
		t.Fatalf("expected cascade, got assignments=%d stages=%d evidence=%d", n, s, e)
	}

	if err := env.assign.Delete(context.Background(), a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
