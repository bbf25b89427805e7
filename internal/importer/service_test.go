package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contatus/contatus/internal/model"
	appErr "github.com/contatus/contatus/internal/pkg/errors"
)

type fakeContactStore struct {
	existing map[string]*model.Contact
	inserted []model.Contact
	updated  []model.Contact
	findErr  error
	bulkErr  error
}

func newFakeContactStore() *fakeContactStore {
	return &fakeContactStore{existing: make(map[string]*model.Contact)}
}

func (s *fakeContactStore) FindByOrgAndEmail(_ context.Context, orgID, email string) (*model.Contact, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if contact, ok := s.existing[orgID+"|"+email]; ok {
		clone := *contact
		return &clone, nil
	}
	return nil, appErr.ErrNotFound
}

func (s *fakeContactStore) Update(_ context.Context, contact *model.Contact) error {
	s.updated = append(s.updated, *contact)
	return nil
}

func (s *fakeContactStore) BulkInsertIgnoreConflicts(_ context.Context, contacts []model.Contact) error {
	if s.bulkErr != nil {
		return s.bulkErr
	}
	s.inserted = append(s.inserted, contacts...)
	return nil
}

type fakeTagStore struct {
	upserted []model.Tag
}

func (s *fakeTagStore) Upsert(_ context.Context, tag *model.Tag) error {
	s.upserted = append(s.upserted, *tag)
	return nil
}

type fakeOrgStore struct {
	deltas []int
}

func (s *fakeOrgStore) IncrementContactCount(_ context.Context, _ string, delta int, _ int64) error {
	s.deltas = append(s.deltas, delta)
	return nil
}

type fakeJobStore struct {
	jobs map[string]*model.ImportJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*model.ImportJob)}
}

func (s *fakeJobStore) Create(_ context.Context, job *model.ImportJob) error {
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *fakeJobStore) Get(_ context.Context, orgID, jobID string) (*model.ImportJob, error) {
	job, ok := s.jobs[jobID]
	if !ok || job.OrganizationID != orgID {
		return nil, appErr.ErrJobNotFound
	}
	return job, nil
}

type fixture struct {
	contacts *fakeContactStore
	tags     *fakeTagStore
	orgs     *fakeOrgStore
	jobs     *fakeJobStore
	service  *Service
}

func newFixture() *fixture {
	f := &fixture{
		contacts: newFakeContactStore(),
		tags:     &fakeTagStore{},
		orgs:     &fakeOrgStore{},
		jobs:     newFakeJobStore(),
	}
	f.service = NewService(f.contacts, f.tags, f.orgs, f.jobs, 3)
	return f
}

func csvFile(content string) File {
	return File{Name: "contatos.csv", ContentType: MimeCSV, Data: []byte(content)}
}

func TestImportSyncMixedRows(t *testing.T) {
	f := newFixture()
	f.contacts.existing["org-1|dup@exemplo.com"] = &model.Contact{
		ID:             "c-1",
		OrganizationID: "org-1",
		Name:           "Já Existe",
	}

	file := csvFile("name,email,phone\n" +
		"Maria,maria@exemplo.com,11999999999\n" +
		",,\n" +
		"Dup,dup@exemplo.com,\n")

	outcome, err := f.service.ProcessImport(context.Background(), file, "user-1", "org-1", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "sync", outcome.Type)

	result := outcome.Result
	require.Equal(t, 3, result.Total)
	require.Equal(t, 1, result.Success)
	require.Equal(t, 1, result.Duplicates)
	require.Equal(t, 1, result.Errors)
	require.Equal(t, result.Total, result.Success+result.Duplicates+result.Errors)

	require.Len(t, result.ErrorDetails, 1)
	require.Equal(t, 3, result.ErrorDetails[0].Line)
	require.Equal(t, "Pelo menos nome ou email deve ser fornecido", result.ErrorDetails[0].Error)

	require.Len(t, f.contacts.inserted, 1)
	require.Equal(t, "Maria", f.contacts.inserted[0].Name)
	require.Equal(t, []int{1}, f.orgs.deltas)
	require.Empty(t, f.contacts.updated)
}

func TestImportDuplicateWithinSameFile(t *testing.T) {
	f := newFixture()

	// Bea repeats Ana's email before Ana's batch ever reaches storage;
	// she must count as a duplicate, not ride the insert-or-ignore path.
	file := csvFile("name,email\n" +
		"Ana,ana@exemplo.com\n" +
		",\n" +
		"Bea,ana@exemplo.com\n")

	outcome, err := f.service.ProcessImport(context.Background(), file, "user-1", "org-1", DefaultConfig())
	require.NoError(t, err)

	result := outcome.Result
	require.Equal(t, 3, result.Total)
	require.Equal(t, 1, result.Success)
	require.Equal(t, 1, result.Duplicates)
	require.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorDetails, 1)
	require.Equal(t, 3, result.ErrorDetails[0].Line)

	require.Len(t, f.contacts.inserted, 1)
	require.Equal(t, "Ana", f.contacts.inserted[0].Name)
	require.Equal(t, []int{1}, f.orgs.deltas)
}

func TestImportThresholdRouting(t *testing.T) {
	small := newFixture()
	outcome, err := small.service.ProcessImport(context.Background(),
		csvFile(buildCSV(SyncThreshold-1)), "user-1", "org-1", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "sync", outcome.Type)
	require.NotNil(t, outcome.Result)
	require.Empty(t, outcome.JobID)
	require.Empty(t, small.jobs.jobs)

	big := newFixture()
	outcome, err = big.service.ProcessImport(context.Background(),
		csvFile(buildCSV(SyncThreshold)), "user-1", "org-1", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "async", outcome.Type)
	require.Nil(t, outcome.Result)
	require.NotEmpty(t, outcome.JobID)
	require.Empty(t, big.contacts.inserted)

	job := big.jobs.jobs[outcome.JobID]
	require.NotNil(t, job)
	require.Equal(t, model.ImportJobWaiting, job.Status)
	require.Equal(t, SyncThreshold, job.Total)
	require.Equal(t, 3, job.MaxAttempts)

	var payload jobPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	require.Len(t, payload.Rows, SyncThreshold)
	require.True(t, payload.Config.SkipDuplicates)
}

func TestImportUpdateExisting(t *testing.T) {
	f := newFixture()
	f.contacts.existing["org-1|dup@exemplo.com"] = &model.Contact{
		ID:             "c-1",
		OrganizationID: "org-1",
		Name:           "Nome Antigo",
		Phone:          "1130000000",
		Company:        "Empresa Antiga",
		Notes:          "nota antiga",
	}

	cfg := DefaultConfig()
	cfg.UpdateExisting = true

	file := csvFile("name,email,phone,company\n,dup@exemplo.com,11999999999,\n")
	outcome, err := f.service.ProcessImport(context.Background(), file, "user-1", "org-1", cfg)
	require.NoError(t, err)

	require.Equal(t, 1, outcome.Result.Success)
	require.Equal(t, 0, outcome.Result.Duplicates)
	require.Len(t, f.contacts.updated, 1)

	updated := f.contacts.updated[0]
	require.Equal(t, "Nome Antigo", updated.Name, "empty incoming name keeps existing")
	require.Equal(t, "11999999999", updated.Phone, "incoming phone overwrites")
	require.Equal(t, "", updated.Company, "company is overwritten even when empty")
	require.Equal(t, "", updated.Notes)

	// updates do not touch the contact counter
	require.Empty(t, f.orgs.deltas)
	require.Empty(t, f.contacts.inserted)
}

func TestImportSkipDuplicatesDisabled(t *testing.T) {
	f := newFixture()
	f.contacts.existing["org-1|dup@exemplo.com"] = &model.Contact{ID: "c-1"}

	cfg := DefaultConfig()
	cfg.SkipDuplicates = false

	file := csvFile("name,email\nDup,dup@exemplo.com\n")
	outcome, err := f.service.ProcessImport(context.Background(), file, "user-1", "org-1", cfg)
	require.NoError(t, err)

	// no duplicate lookup happens; the row goes straight to the bulk insert
	require.Equal(t, 1, outcome.Result.Success)
	require.Equal(t, 0, outcome.Result.Duplicates)
	require.Len(t, f.contacts.inserted, 1)
}

func TestImportTagDedupAcrossRun(t *testing.T) {
	f := newFixture()

	file := csvFile("name,tags\nMaria,\"vip,sp\"\nJoão,\"vip,rj\"\nAna,sp\n")
	outcome, err := f.service.ProcessImport(context.Background(), file, "user-1", "org-1", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 3, outcome.Result.Success)

	names := make([]string, 0, len(f.tags.upserted))
	for _, tag := range f.tags.upserted {
		names = append(names, tag.Name)
		require.Contains(t, tagPalette, tag.Color)
		require.Equal(t, "org-1", tag.OrganizationID)
		require.NotEmpty(t, tag.ID)
	}
	require.Equal(t, []string{"vip", "sp", "rj"}, names)
}

func TestImportCreateTagsDisabled(t *testing.T) {
	f := newFixture()

	cfg := DefaultConfig()
	cfg.CreateTags = false

	file := csvFile("name,tags\nMaria,vip\n")
	_, err := f.service.ProcessImport(context.Background(), file, "user-1", "org-1", cfg)
	require.NoError(t, err)
	require.Empty(t, f.tags.upserted)
}

func TestImportDefaultNameForEmailOnlyRow(t *testing.T) {
	f := newFixture()

	file := csvFile("email\nanon@exemplo.com\n")
	_, err := f.service.ProcessImport(context.Background(), file, "user-1", "org-1", DefaultConfig())
	require.NoError(t, err)

	require.Len(t, f.contacts.inserted, 1)
	inserted := f.contacts.inserted[0]
	require.Equal(t, "Sem nome", inserted.Name)
	require.NotNil(t, inserted.Email)
	require.Equal(t, "anon@exemplo.com", *inserted.Email)
	require.Equal(t, model.ContactStatusActive, inserted.Status)
}

func TestImportBatchInsertFailure(t *testing.T) {
	f := newFixture()
	f.contacts.bulkErr = fmt.Errorf("disk full")

	file := csvFile("name\nMaria\nJoão\n")
	outcome, err := f.service.ProcessImport(context.Background(), file, "user-1", "org-1", DefaultConfig())
	require.NoError(t, err)

	result := outcome.Result
	require.Equal(t, 2, result.Total)
	require.Equal(t, 0, result.Success)
	require.Equal(t, 2, result.Errors)
	require.Len(t, result.ErrorDetails, 1)
	require.Equal(t, 0, result.ErrorDetails[0].Line)
	require.Equal(t, "Erro ao inserir em batch: disk full", result.ErrorDetails[0].Error)
	require.Empty(t, f.orgs.deltas)
}

func TestImportDuplicateLookupFailureCountsRow(t *testing.T) {
	f := newFixture()
	f.contacts.findErr = fmt.Errorf("db gone")

	file := csvFile("name,email\nMaria,maria@exemplo.com\n")
	outcome, err := f.service.ProcessImport(context.Background(), file, "user-1", "org-1", DefaultConfig())
	require.NoError(t, err)

	result := outcome.Result
	require.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorDetails, 1)
	require.Equal(t, 2, result.ErrorDetails[0].Line)
	require.Contains(t, result.ErrorDetails[0].Error, "falha ao verificar duplicata")
}

func TestImportUnsupportedFormat(t *testing.T) {
	f := newFixture()
	_, err := f.service.ProcessImport(context.Background(),
		File{Name: "x.pdf", ContentType: "application/pdf", Data: []byte("x")},
		"user-1", "org-1", DefaultConfig())
	require.ErrorIs(t, err, appErr.ErrUnsupportedFormat)
}

func TestGetJobStatus(t *testing.T) {
	f := newFixture()
	f.jobs.jobs["job-1"] = &model.ImportJob{
		ID:             "job-1",
		OrganizationID: "org-1",
		Status:         model.ImportJobActive,
		Progress:       40,
	}

	status, err := f.service.GetJobStatus(context.Background(), "org-1", "job-1")
	require.NoError(t, err)
	require.Equal(t, model.ImportJobActive, status.Status)
	require.Equal(t, 40, status.Progress)

	// jobs are org scoped
	_, err = f.service.GetJobStatus(context.Background(), "org-2", "job-1")
	require.ErrorIs(t, err, appErr.ErrJobNotFound)
}

func buildCSV(rows int) string {
	var sb strings.Builder
	sb.WriteString("name,email\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "Contato %d,contato%d@exemplo.com\n", i, i)
	}
	return sb.String()
}
