package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/apperr"
	"github.com/RubachokBoss/assignment-tracker/internal/models"
	"github.com/RubachokBoss/assignment-tracker/internal/repository"
	"github.com/RubachokBoss/assignment-tracker/pkg/password"
)

var referencedErr = &apperr.Error{Kind: apperr.ErrConflict, Msg: "record is referenced by other records"}

// memDB is the in-memory state shared by the repository fakes. Failure
// knobs let tests break a write at a chosen point.
type memDB struct {
	mu sync.Mutex

	users          map[string]models.User
	templates      map[string]models.TaskTemplate
	stageTemplates map[string]models.StageTemplate
	assignments    map[string]models.Assignment
	assignmentSeq  []string
	stages         map[string]models.Stage
	evidence       map[string]models.Evidence

	failStageInsertAt   int
	failEvidenceInsert  error
	failListAssignments error
}

func newMemDB() *memDB {
	return &memDB{
		users:          map[string]models.User{},
		templates:      map[string]models.TaskTemplate{},
		stageTemplates: map[string]models.StageTemplate{},
		assignments:    map[string]models.Assignment{},
		stages:         map[string]models.Stage{},
		evidence:       map[string]models.Evidence{},
	}
}

func (db *memDB) stagesOf(assignmentID string) []models.Stage {
	var out []models.Stage
	for _, s := range db.stages {
		if s.AssignmentID == assignmentID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

func (db *memDB) stageTemplatesOf(templateID string) []models.StageTemplate {
	var out []models.StageTemplate
	for _, s := range db.stageTemplates {
		if s.TemplateID == templateID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

func (db *memDB) withNames(a models.Assignment) models.AssignmentWithNames {
	a.Stages = db.stagesOf(a.ID)
	return models.AssignmentWithNames{
		Assignment:         a,
		TemplateName:       db.templates[a.TemplateID].Name,
		AssignedToUserName: db.users[a.AssignedToUserID].FullName,
		AssignedByUserName: db.users[a.AssignedByUserID].FullName,
	}
}

// users

type fakeUsers struct{ db *memDB }

func (f fakeUsers) Create(_ context.Context, user *models.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return &apperr.Error{Kind: apperr.ErrConflict, Msg: "record already exists"}
		}
	}
	f.db.users[user.ID] = *user
	return nil
}

func (f fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	u, ok := f.db.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (f fakeUsers) GetAll(_ context.Context) ([]models.User, error) {
	return f.list(func(models.User) bool { return true }), nil
}

func (f fakeUsers) GetAssignable(_ context.Context) ([]models.User, error) {
	return f.list(func(u models.User) bool { return u.Assignable() }), nil
}

func (f fakeUsers) list(keep func(models.User) bool) []models.User {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.User
	for _, u := range f.db.users {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

func (f fakeUsers) Update(_ context.Context, user *models.User) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.users[user.ID] = *user
	return nil
}

func (f fakeUsers) Delete(_ context.Context, id string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.users[id]; !ok {
		return false, nil
	}
	for _, a := range f.db.assignments {
		if a.AssignedToUserID == id || a.AssignedByUserID == id {
			return false, referencedErr
		}
	}
	delete(f.db.users, id)
	return true, nil
}

// templates

type fakeTemplates struct{ db *memDB }

func (f fakeTemplates) Create(_ context.Context, template *models.TaskTemplate) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t := *template
	t.Stages = nil
	f.db.templates[t.ID] = t
	return nil
}

func (f fakeTemplates) GetByID(_ context.Context, id string) (*models.TaskTemplate, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t, ok := f.db.templates[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f fakeTemplates) GetAll(_ context.Context) ([]models.TaskTemplate, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.TaskTemplate
	for _, t := range f.db.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f fakeTemplates) Update(_ context.Context, template *models.TaskTemplate) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.templates[template.ID]; !ok {
		return false, nil
	}
	t := *template
	t.Stages = nil
	f.db.templates[t.ID] = t
	return true, nil
}

func (f fakeTemplates) Delete(_ context.Context, id string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.templates[id]; !ok {
		return false, nil
	}
	for _, a := range f.db.assignments {
		if a.TemplateID == id {
			return false, referencedErr
		}
	}
	delete(f.db.templates, id)
	for sid, s := range f.db.stageTemplates {
		if s.TemplateID == id {
			delete(f.db.stageTemplates, sid)
		}
	}
	return true, nil
}

// lockMutable mirrors the repository's in-transaction usage check. Callers
// hold db.mu.
func (f fakeTemplates) lockMutable(templateID string) error {
	if _, ok := f.db.templates[templateID]; !ok {
		return apperr.NotFoundf("template not found")
	}
	for _, a := range f.db.assignments {
		if a.TemplateID == templateID {
			return apperr.Conflictf("template is in use by existing assignments; its stages cannot be changed")
		}
	}
	return nil
}

func (f fakeTemplates) GetStages(_ context.Context, templateID string) ([]models.StageTemplate, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.stageTemplatesOf(templateID), nil
}

func (f fakeTemplates) GetStage(_ context.Context, id string) (*models.StageTemplate, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.stageTemplates[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f fakeTemplates) AppendStage(_ context.Context, stage *models.StageTemplate) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if err := f.lockMutable(stage.TemplateID); err != nil {
		return err
	}
	stage.Ordinal = len(f.db.stageTemplatesOf(stage.TemplateID)) + 1
	f.db.stageTemplates[stage.ID] = *stage
	return nil
}

func (f fakeTemplates) UpdateStage(_ context.Context, stage *models.StageTemplate) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if err := f.lockMutable(stage.TemplateID); err != nil {
		return err
	}
	f.db.stageTemplates[stage.ID] = *stage
	return nil
}

func (f fakeTemplates) DeleteStage(_ context.Context, stage *models.StageTemplate) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if err := f.lockMutable(stage.TemplateID); err != nil {
		return err
	}
	delete(f.db.stageTemplates, stage.ID)
	for id, s := range f.db.stageTemplates {
		if s.TemplateID == stage.TemplateID && s.Ordinal > stage.Ordinal {
			s.Ordinal--
			f.db.stageTemplates[id] = s
		}
	}
	return nil
}

// vanishingTemplates deletes the template right after handing it out, the
// way a concurrent admin delete lands between lookup and insert.
type vanishingTemplates struct{ fakeTemplates }

func (f vanishingTemplates) GetByID(ctx context.Context, id string) (*models.TaskTemplate, error) {
	t, err := f.fakeTemplates.GetByID(ctx, id)
	if t != nil {
		f.db.mu.Lock()
		delete(f.db.templates, id)
		f.db.mu.Unlock()
	}
	return t, err
}

// assignments

type fakeAssignments struct{ db *memDB }

// Instantiate stages every row and commits only when all inserts succeed.
func (f fakeAssignments) Instantiate(_ context.Context, assignment *models.Assignment, plan repository.StagePlanner) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	_, templateOK := f.db.templates[assignment.TemplateID]
	_, assigneeOK := f.db.users[assignment.AssignedToUserID]
	_, assignerOK := f.db.users[assignment.AssignedByUserID]
	if !templateOK || !assigneeOK || !assignerOK {
		return &apperr.Error{Kind: apperr.ErrConflict, Msg: "record is referenced by other records", Err: errors.New("foreign key violation")}
	}

	stages, err := plan(assignment.ID, f.db.stageTemplatesOf(assignment.TemplateID))
	if err != nil {
		return apperr.Transaction(err, "transaction rolled back")
	}
	for i := range stages {
		if f.db.failStageInsertAt == i+1 {
			return apperr.Transaction(errors.New("injected stage insert failure"), "transaction rolled back")
		}
	}

	a := *assignment
	a.Stages = nil
	f.db.assignments[a.ID] = a
	f.db.assignmentSeq = append(f.db.assignmentSeq, a.ID)
	for _, s := range stages {
		f.db.stages[s.ID] = s
	}
	assignment.Stages = stages
	return nil
}

func (f fakeAssignments) GetByID(_ context.Context, id string) (*models.AssignmentWithNames, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.assignments[id]
	if !ok {
		return nil, nil
	}
	out := f.db.withNames(a)
	return &out, nil
}

func (f fakeAssignments) ListWithStages(_ context.Context, filter repository.AssignmentFilter) ([]models.AssignmentWithNames, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failListAssignments != nil {
		return nil, f.db.failListAssignments
	}
	var out []models.AssignmentWithNames
	for i := len(f.db.assignmentSeq) - 1; i >= 0; i-- {
		a, ok := f.db.assignments[f.db.assignmentSeq[i]]
		if !ok {
			continue
		}
		if filter.AssignedToUserID != "" && a.AssignedToUserID != filter.AssignedToUserID {
			continue
		}
		out = append(out, f.db.withNames(a))
	}
	return out, nil
}

func (f fakeAssignments) Delete(_ context.Context, id string) ([]string, bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.assignments[id]; !ok {
		return nil, false, nil
	}
	var paths []string
	for _, s := range f.db.stagesOf(id) {
		for eid, e := range f.db.evidence {
			if e.StageID == s.ID {
				paths = append(paths, e.StoredPath)
				delete(f.db.evidence, eid)
			}
		}
		delete(f.db.stages, s.ID)
	}
	delete(f.db.assignments, id)
	return paths, true, nil
}

// stages

type fakeStages struct{ db *memDB }

func (f fakeStages) GetWithOwner(_ context.Context, stageID string) (*models.OwnedStage, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.stages[stageID]
	if !ok {
		return nil, nil
	}
	return &models.OwnedStage{Stage: s, AssignedToUserID: f.db.assignments[s.AssignmentID].AssignedToUserID}, nil
}

func (f fakeStages) UpdateProgress(_ context.Context, stageID, userID string, fn func(stage *models.Stage) error) (*models.Stage, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.stages[stageID]
	if !ok || f.db.assignments[s.AssignmentID].AssignedToUserID != userID {
		return nil, apperr.NotFoundf("stage not found")
	}
	if err := fn(&s); err != nil {
		return nil, err
	}
	f.db.stages[stageID] = s
	return &s, nil
}

// evidence

type fakeEvidence struct{ db *memDB }

func (f fakeEvidence) Create(_ context.Context, evidence *models.Evidence) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failEvidenceInsert != nil {
		return f.db.failEvidenceInsert
	}
	f.db.evidence[evidence.ID] = *evidence
	return nil
}

func (f fakeEvidence) GetByStage(_ context.Context, stageID string) ([]models.Evidence, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Evidence
	for _, e := range f.db.evidence {
		if e.StageID == stageID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (f fakeEvidence) GetWithOwner(_ context.Context, id string) (*models.Evidence, string, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e, ok := f.db.evidence[id]
	if !ok {
		return nil, "", nil
	}
	stage := f.db.stages[e.StageID]
	return &e, f.db.assignments[stage.AssignmentID].AssignedToUserID, nil
}

// blobs

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut error
	puts    int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (b *memBlobs) Put(_ context.Context, key string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	if b.failPut != nil {
		return b.failPut
	}
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func (b *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, repository.ErrBlobNotFound
	}
	return data, nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// events

type recordingPublisher struct {
	mu       sync.Mutex
	created  []models.AssignmentCreatedEvent
	progress []models.StageProgressedEvent
	evidence []models.EvidenceAttachedEvent
	failWith error
}

func (p *recordingPublisher) PublishAssignmentCreated(_ context.Context, e *models.AssignmentCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, *e)
	return p.failWith
}

func (p *recordingPublisher) PublishStageProgressed(_ context.Context, e *models.StageProgressedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = append(p.progress, *e)
	return p.failWith
}

func (p *recordingPublisher) PublishEvidenceAttached(_ context.Context, e *models.EvidenceAttachedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evidence = append(p.evidence, *e)
	return p.failWith
}

func (p *recordingPublisher) Close() error { return nil }

// env wires every service over one memDB.

var testNow = time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)

type testEnv struct {
	db        *memDB
	blobs     *memBlobs
	events    *recordingPublisher
	clock     Clock
	hasher    *password.Hasher
	users     UserService
	templates TemplateService
	assign    AssignmentService
	progress  ProgressService
	evidence  EvidenceService
	status    StatusService
	admin     *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newMemDB()
	env := &testEnv{
		db:     db,
		blobs:  newMemBlobs(),
		events: &recordingPublisher{},
		clock:  FixedClock(testNow, time.UTC),
		hasher: password.NewHasher(1000),
	}
	log := zerolog.Nop()

	env.users = NewUserService(fakeUsers{db}, env.hasher, env.clock, log)
	env.templates = NewTemplateService(fakeTemplates{db}, env.clock, log)
	env.assign = NewAssignmentService(fakeAssignments{db}, fakeTemplates{db}, fakeUsers{db}, env.blobs, env.events, env.clock, log)
	env.progress = NewProgressService(fakeStages{db}, env.events, env.clock, log)
	env.evidence = NewEvidenceService(fakeStages{db}, fakeEvidence{db}, env.blobs, env.events, EvidencePolicy{}, env.clock, log)
	env.status = NewStatusService(fakeAssignments{db}, fakeUsers{db}, env.clock, log)

	env.admin = env.addUser(t, "Admin", true, true)
	return env
}

func (e *testEnv) addUser(t *testing.T, name string, admin, active bool) *models.User {
	t.Helper()
	u := models.User{
		ID:        uuid.New().String(),
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		FullName:  name,
		IsAdmin:   admin,
		IsActive:  active,
		CreatedAt: testNow,
	}
	e.db.mu.Lock()
	e.db.users[u.ID] = u
	e.db.mu.Unlock()
	return &u
}

func (e *testEnv) addTemplate(t *testing.T, active bool, durations ...int) *models.TaskTemplate {
	t.Helper()
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	tmpl := models.TaskTemplate{
		ID:        uuid.New().String(),
		Name:      fmt.Sprintf("template-%d", len(e.db.templates)+1),
		Active:    active,
		CreatedAt: testNow,
	}
	e.db.templates[tmpl.ID] = tmpl
	for i, d := range durations {
		st := models.StageTemplate{
			ID:           uuid.New().String(),
			TemplateID:   tmpl.ID,
			Ordinal:      i + 1,
			Name:         fmt.Sprintf("stage-%d", i+1),
			DurationDays: d,
		}
		e.db.stageTemplates[st.ID] = st
	}
	return &tmpl
}

func (e *testEnv) instantiate(t *testing.T, tmpl *models.TaskTemplate, assignee *models.User, start string) *models.Assignment {
	t.Helper()
	a, err := e.assign.Instantiate(context.Background(), &models.CreateAssignmentRequest{
		TemplateID:       tmpl.ID,
		Title:            "Onboarding",
		AssignedToUserID: assignee.ID,
		StartDate:        start,
	}, e.admin.ID)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return a
}

// setProgress writes progress directly, bypassing ownership checks.
func (e *testEnv) setProgress(t *testing.T, stageID string, progress int) {
	t.Helper()
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	s, ok := e.db.stages[stageID]
	if !ok {
		t.Fatalf("stage %s not found", stageID)
	}
	s.ApplyProgress(progress, testNow)
	e.db.stages[stageID] = s
}

func (e *testEnv) setTarget(t *testing.T, stageID string, target time.Time) {
	t.Helper()
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	s := e.db.stages[stageID]
	s.TargetDate = target
	e.db.stages[stageID] = s
}

func (e *testEnv) rowCounts() (assignments, stages, evidence int) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return len(e.db.assignments), len(e.db.stages), len(e.db.evidence)
}

func date(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}
