package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/loomhq/loom/internal/domain"
)

type memScheduleStore struct {
	mu      sync.Mutex
	records map[string]domain.ScheduleRecord

	// cascade mimics the task row's ON DELETE CASCADE foreign key.
	cascade func(scheduleUUID string)
}

func newMemScheduleStore() *memScheduleStore {
	return &memScheduleStore{records: make(map[string]domain.ScheduleRecord)}
}

func (s *memScheduleStore) CreateSchedule(_ context.Context, record domain.ScheduleRecord) (domain.ScheduleRecord, error) {
	if err := record.Validate(); err != nil {
		return domain.ScheduleRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt
	s.records[record.ID] = record
	return record, nil
}

func (s *memScheduleStore) GetScheduleByID(_ context.Context, id string) (domain.ScheduleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return domain.ScheduleRecord{}, fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}
	return record, nil
}

func (s *memScheduleStore) GetScheduleByUUID(_ context.Context, scheduleUUID string) (domain.ScheduleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.UUID == scheduleUUID {
			return record, nil
		}
	}
	return domain.ScheduleRecord{}, fmt.Errorf("schedule %s: %w", scheduleUUID, domain.ErrNotFound)
}

func (s *memScheduleStore) UpdateSchedule(_ context.Context, record domain.ScheduleRecord) (domain.ScheduleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[record.ID]
	if !ok {
		return domain.ScheduleRecord{}, fmt.Errorf("schedule %s: %w", record.ID, domain.ErrNotFound)
	}
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = time.Now()
	s.records[record.ID] = record
	return record, nil
}

func (s *memScheduleStore) DeleteSchedule(_ context.Context, id string) error {
	s.mu.Lock()
	record, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}
	delete(s.records, id)
	s.mu.Unlock()

	if s.cascade != nil {
		s.cascade(record.UUID)
	}
	return nil
}

func (s *memScheduleStore) ListSchedules(_ context.Context, filter domain.ScheduleFilter) ([]domain.ScheduleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScheduleRecord
	for _, record := range s.records {
		if record.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.ProjectID != nil && record.ProjectID != *filter.ProjectID {
			continue
		}
		if filter.Type != nil && record.Type != *filter.Type {
			continue
		}
		if filter.Enabled != nil && record.Enabled != *filter.Enabled {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

type memCredentialStore struct {
	mu          sync.Mutex
	credentials map[string]domain.ExecutionCredential
}

func newMemCredentialStore() *memCredentialStore {
	return &memCredentialStore{credentials: make(map[string]domain.ExecutionCredential)}
}

func (s *memCredentialStore) CreateCredential(_ context.Context, credential domain.ExecutionCredential) (domain.ExecutionCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential.CreatedAt = time.Now()
	s.credentials[credential.ID] = credential
	return credential, nil
}

func (s *memCredentialStore) GetCredential(_ context.Context, id string) (domain.ExecutionCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.credentials[id]
	if !ok {
		return domain.ExecutionCredential{}, fmt.Errorf("credential %s: %w", id, domain.ErrNotFound)
	}
	return credential, nil
}

func (s *memCredentialStore) ListCredentialsByProject(_ context.Context, projectID string) ([]domain.ExecutionCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ExecutionCredential
	for _, credential := range s.credentials {
		if credential.ProjectID == projectID {
			out = append(out, credential)
		}
	}
	return out, nil
}

func (s *memCredentialStore) DeactivateCredential(_ context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.credentials[id]
	if !ok || !credential.IsActive {
		return fmt.Errorf("active credential %s: %w", id, domain.ErrNotFound)
	}
	now := time.Now()
	credential.IsActive = false
	credential.RevokedAt = &now
	credential.RevocationReason = reason
	s.credentials[id] = credential
	return nil
}

type memBeatStore struct {
	mu         sync.Mutex
	crontabs   map[string]domain.Crontab
	tasks      map[string]domain.PeriodicTask
	markerBump int
}

func newMemBeatStore() *memBeatStore {
	return &memBeatStore{
		crontabs: make(map[string]domain.Crontab),
		tasks:    make(map[string]domain.PeriodicTask),
	}
}

func (s *memBeatStore) FindCrontab(_ context.Context, fields domain.CrontabFields) (*domain.Crontab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, crontab := range s.crontabs {
		if crontab.CrontabFields == fields {
			found := crontab
			return &found, nil
		}
	}
	return nil, nil
}

func (s *memBeatStore) CreateCrontab(_ context.Context, fields domain.CrontabFields) (domain.Crontab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	crontab := domain.Crontab{ID: xid.New().String(), CrontabFields: fields}
	s.crontabs[crontab.ID] = crontab
	return crontab, nil
}

func (s *memBeatStore) GetTaskByScheduleUUID(_ context.Context, scheduleUUID string) (*domain.PeriodicTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.ScheduleUUID == scheduleUUID {
			found := task
			return &found, nil
		}
	}
	return nil, nil
}

func (s *memBeatStore) CreateTask(_ context.Context, task domain.PeriodicTask) (domain.PeriodicTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	s.tasks[task.ID] = task
	return task, nil
}

func (s *memBeatStore) UpdateTask(_ context.Context, task domain.PeriodicTask) (domain.PeriodicTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return domain.PeriodicTask{}, fmt.Errorf("periodic task %s: %w", task.ID, domain.ErrNotFound)
	}
	task.UpdatedAt = time.Now()
	s.tasks[task.ID] = task
	return task, nil
}

func (s *memBeatStore) BumpChangedMarker(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markerBump++
	return nil
}

func (s *memBeatStore) removeTaskByScheduleUUID(scheduleUUID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, task := range s.tasks {
		if task.ScheduleUUID == scheduleUUID {
			delete(s.tasks, id)
		}
	}
}

func (s *memBeatStore) taskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *memBeatStore) crontabCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.crontabs)
}

type fakeGraphService struct {
	mu             sync.Mutex
	triggerNodes   map[string][]domain.TriggerNode
	organizationID string
}

func newFakeGraphService(organizationID string) *fakeGraphService {
	return &fakeGraphService{
		triggerNodes:   make(map[string][]domain.TriggerNode),
		organizationID: organizationID,
	}
}

func (g *fakeGraphService) setGraph(graphID string, nodes []domain.TriggerNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.triggerNodes[graphID] = nodes
}

func (g *fakeGraphService) ScanTriggerNodes(_ context.Context, graphID string) ([]domain.TriggerNode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.triggerNodes[graphID], nil
}

func (g *fakeGraphService) GetProjectOrganizationID(_ context.Context, _ string) (string, error) {
	return g.organizationID, nil
}

func newTestCipher() *SecretCipher {
	key, err := GenerateServiceKey()
	if err != nil {
		panic(err)
	}
	cipher, err := NewSecretCipher(key)
	if err != nil {
		panic(err)
	}
	return cipher
}
