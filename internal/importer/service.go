package importer

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/contatus/contatus/internal/model"
	appErr "github.com/contatus/contatus/internal/pkg/errors"
	"github.com/contatus/contatus/internal/pkg/timeutil"
)

const (
	// SyncThreshold is the row count at which an import stops running
	// inside the request and is queued instead.
	SyncThreshold = 500
	// BatchSize bounds memory per persistence round trip and paces
	// progress reporting.
	BatchSize = 100

	defaultContactName = "Sem nome"
)

var tagPalette = []string{"#8b5cf6", "#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#ec4899"}

// Config is the per-invocation import configuration, immutable for the run.
type Config struct {
	SkipDuplicates bool              `json:"skipDuplicates"`
	UpdateExisting bool              `json:"updateExisting"`
	CreateTags     bool              `json:"createTags"`
	ColumnMapping  map[string]string `json:"columnMapping,omitempty"`
}

func DefaultConfig() Config {
	return Config{SkipDuplicates: true, UpdateExisting: false, CreateTags: true}
}

// File is an already-uploaded spreadsheet, size-checked by the caller.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Outcome is what the caller gets back: a finished result for small inputs,
// a pollable job id for large ones.
type Outcome struct {
	Type   string              `json:"type"`
	Result *model.ImportResult `json:"result,omitempty"`
	JobID  string              `json:"jobId,omitempty"`
}

type JobStatus struct {
	Status   string              `json:"status"`
	Progress int                 `json:"progress"`
	Result   *model.ImportResult `json:"result,omitempty"`
}

type ContactStore interface {
	FindByOrgAndEmail(ctx context.Context, orgID, email string) (*model.Contact, error)
	Update(ctx context.Context, contact *model.Contact) error
	BulkInsertIgnoreConflicts(ctx context.Context, contacts []model.Contact) error
}

type TagStore interface {
	Upsert(ctx context.Context, tag *model.Tag) error
}

type OrganizationStore interface {
	IncrementContactCount(ctx context.Context, orgID string, delta int, mtime int64) error
}

type JobStore interface {
	Create(ctx context.Context, job *model.ImportJob) error
	Get(ctx context.Context, orgID, jobID string) (*model.ImportJob, error)
}

type Service struct {
	parser      Parser
	validator   Validator
	contacts    ContactStore
	tags        TagStore
	orgs        OrganizationStore
	jobs        JobStore
	maxAttempts int
}

func NewService(contacts ContactStore, tags TagStore, orgs OrganizationStore, jobs JobStore, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Service{
		contacts:    contacts,
		tags:        tags,
		orgs:        orgs,
		jobs:        jobs,
		maxAttempts: maxAttempts,
	}
}

type jobPayload struct {
	Rows   []Row  `json:"rows"`
	Config Config `json:"config"`
}

// ProcessImport parses the file and either runs the whole import inline
// (small inputs) or enqueues a background job replaying the identical
// per-row algorithm.
func (s *Service) ProcessImport(ctx context.Context, file File, userID, orgID string, cfg Config) (*Outcome, error) {
	rows, err := s.parser.Parse(file.Data, file.ContentType, cfg.ColumnMapping)
	if err != nil {
		return nil, err
	}

	if len(rows) < SyncThreshold {
		result, err := s.runRows(ctx, rows, orgID, cfg, nil)
		if err != nil {
			return nil, err
		}
		logutil.GetLogger(ctx).Info("sync import finished",
			zap.String("org_id", orgID),
			zap.String("user_id", userID),
			zap.Int("total", result.Total),
			zap.Int("success", result.Success),
			zap.Int("duplicates", result.Duplicates),
			zap.Int("errors", result.Errors),
		)
		return &Outcome{Type: "sync", Result: result}, nil
	}

	payload, err := json.Marshal(jobPayload{Rows: rows, Config: cfg})
	if err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	job := &model.ImportJob{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		UserID:         userID,
		Status:         model.ImportJobWaiting,
		Total:          len(rows),
		MaxAttempts:    s.maxAttempts,
		Payload:        payload,
		NextRunAt:      now,
		Ctime:          now,
		Mtime:          now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("import queued",
		zap.String("org_id", orgID),
		zap.String("user_id", userID),
		zap.String("job_id", job.ID),
		zap.Int("rows", len(rows)),
	)
	return &Outcome{Type: "async", JobID: job.ID}, nil
}

// GetJobStatus reads the pollable state of an async import.
func (s *Service) GetJobStatus(ctx context.Context, orgID, jobID string) (*JobStatus, error) {
	job, err := s.jobs.Get(ctx, orgID, jobID)
	if err != nil {
		return nil, err
	}
	return &JobStatus{Status: job.Status, Progress: job.Progress, Result: job.Result}, nil
}

// ExtractColumns exposes the parser's header peek for the mapping UI.
func (s *Service) ExtractColumns(data []byte, contentType string) ([]string, error) {
	return s.parser.ExtractColumns(data, contentType)
}

// runRows is the per-row algorithm shared by the sync path and the
// background worker. Rows are processed in file order in fixed-size
// batches; row and batch failures are recorded and recovered, never fatal.
// report, when non-nil, is called once per batch with the cumulative
// percentage; its error (a persistence outage on the job record) aborts the
// run so the queue's retry policy can take over.
func (s *Service) runRows(ctx context.Context, rows []Row, orgID string, cfg Config, report func(progress int) error) (*model.ImportResult, error) {
	result := &model.ImportResult{
		Total:        len(rows),
		ErrorDetails: []model.ImportError{},
	}
	tagsSeen := make(map[string]struct{})
	tagsToCreate := make([]string, 0)
	// emails already accumulated for insert in this run; a later row with
	// the same email is a duplicate even though storage has no row yet
	emailsPending := make(map[string]struct{})
	inserted := 0

	for start := 0; start < len(rows); start += BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		pending := make([]model.Contact, 0, end-start)

		for offset, row := range rows[start:end] {
			// first data row of the file is line 2; line 1 is the header
			line := start + offset + 2

			parsed, err := s.validator.Validate(row)
			if err != nil {
				result.Errors++
				result.ErrorDetails = append(result.ErrorDetails, model.ImportError{
					Line:  line,
					Error: err.Error(),
					Value: rowSnippet(row),
				})
				continue
			}

			if parsed.Email != "" && cfg.SkipDuplicates {
				if _, ok := emailsPending[parsed.Email]; ok {
					result.Duplicates++
					continue
				}
				existing, err := s.contacts.FindByOrgAndEmail(ctx, orgID, parsed.Email)
				if err != nil && !appErr.IsNotFound(err) {
					result.Errors++
					result.ErrorDetails = append(result.ErrorDetails, model.ImportError{
						Line:  line,
						Error: "falha ao verificar duplicata: " + err.Error(),
					})
					continue
				}
				if existing != nil {
					if cfg.UpdateExisting {
						mergeImported(existing, parsed)
						if err := s.contacts.Update(ctx, existing); err != nil {
							result.Errors++
							result.ErrorDetails = append(result.ErrorDetails, model.ImportError{
								Line:  line,
								Error: "falha ao atualizar contato: " + err.Error(),
							})
							continue
						}
						result.Success++
					} else {
						result.Duplicates++
					}
					continue
				}
			}

			if len(parsed.Tags) > 0 && cfg.CreateTags {
				for _, tag := range parsed.Tags {
					if _, ok := tagsSeen[tag]; ok {
						continue
					}
					tagsSeen[tag] = struct{}{}
					tagsToCreate = append(tagsToCreate, tag)
				}
			}

			if parsed.Email != "" && cfg.SkipDuplicates {
				emailsPending[parsed.Email] = struct{}{}
			}
			pending = append(pending, newImportedContact(orgID, parsed))
		}

		if len(pending) > 0 {
			if err := s.contacts.BulkInsertIgnoreConflicts(ctx, pending); err != nil {
				result.Errors += len(pending)
				result.ErrorDetails = append(result.ErrorDetails, model.ImportError{
					Line:  start,
					Error: "Erro ao inserir em batch: " + err.Error(),
				})
			} else {
				result.Success += len(pending)
				inserted += len(pending)
			}
		}

		if report != nil {
			progress := int(math.Round(float64(end) / float64(len(rows)) * 100))
			if err := report(progress); err != nil {
				return nil, err
			}
		}
	}

	if inserted > 0 {
		if err := s.orgs.IncrementContactCount(ctx, orgID, inserted, timeutil.NowUnix()); err != nil {
			logutil.GetLogger(ctx).Warn("increment contact count failed",
				zap.String("org_id", orgID),
				zap.Int("inserted", inserted),
				zap.Error(err),
			)
		}
	}

	if len(tagsToCreate) > 0 && cfg.CreateTags {
		s.createTags(ctx, orgID, tagsToCreate)
	}

	return result, nil
}

// createTags materializes the run's deduplicated tag set. Individual
// failures are logged and swallowed; they never affect the result counts.
func (s *Service) createTags(ctx context.Context, orgID string, names []string) {
	now := timeutil.NowUnix()
	for _, name := range names {
		tag := &model.Tag{
			ID:             newID(),
			OrganizationID: orgID,
			Name:           name,
			Color:          randomTagColor(),
			Ctime:          now,
			Mtime:          now,
		}
		if err := s.tags.Upsert(ctx, tag); err != nil {
			logutil.GetLogger(ctx).Warn("create tag failed",
				zap.String("org_id", orgID),
				zap.String("tag", name),
				zap.Error(err),
			)
		}
	}
}

// mergeImported applies the update-in-place rules: name and phone keep the
// existing value when the incoming one is empty, everything else is
// overwritten even when empty.
func mergeImported(existing *model.Contact, parsed *ParsedContact) {
	if parsed.Name != "" {
		existing.Name = parsed.Name
	}
	if parsed.Phone != "" {
		existing.Phone = parsed.Phone
	}
	existing.Company = parsed.Company
	existing.Position = parsed.Position
	existing.City = parsed.City
	existing.State = parsed.State
	existing.Notes = parsed.Notes
	existing.Mtime = timeutil.NowUnix()
}

func newImportedContact(orgID string, parsed *ParsedContact) model.Contact {
	name := parsed.Name
	if name == "" {
		name = defaultContactName
	}
	var email *string
	if parsed.Email != "" {
		value := parsed.Email
		email = &value
	}
	now := timeutil.NowUnix()
	return model.Contact{
		ID:             newID(),
		OrganizationID: orgID,
		Name:           name,
		Email:          email,
		Phone:          parsed.Phone,
		Company:        parsed.Company,
		Position:       parsed.Position,
		City:           parsed.City,
		State:          parsed.State,
		Notes:          parsed.Notes,
		Status:         model.ContactStatusActive,
		Ctime:          now,
		Mtime:          now,
	}
}

// rowSnippet keeps a short trace of the offending raw row in the error
// detail, mirroring what support needs to diagnose a bad spreadsheet.
func rowSnippet(row Row) string {
	data, err := json.Marshal(row)
	if err != nil {
		return ""
	}
	if len(data) > 100 {
		data = data[:100]
	}
	return string(data)
}

func randomTagColor() string {
	return tagPalette[rand.Intn(len(tagPalette))]
}
