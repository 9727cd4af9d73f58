package httpx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sproutlog/sproutlog/internal/core"
	"github.com/sproutlog/sproutlog/internal/domain/model"
)

// Function-field stubs for the service ports. Tests override only the calls
// they care about; the defaults behave like an empty store.

type stubJobRepo struct {
	createFn  func(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	getByIDFn func(ctx context.Context, id string) (*model.Job, error)
}

func (s *stubJobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	now := time.Now().UTC()
	return &model.Job{
		ID:        "job-1",
		OwnerID:   req.OwnerID,
		ChildID:   req.ChildID,
		Format:    req.Format,
		State:     model.JobStateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *stubJobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, model.ErrJobNotFound
}

func (s *stubJobRepo) Claim(ctx context.Context) (*model.Job, error) {
	return nil, model.ErrNoJobsAvailable
}

func (s *stubJobRepo) UpdateProgress(ctx context.Context, id string, progress int) (bool, error) {
	return true, nil
}

func (s *stubJobRepo) Complete(ctx context.Context, id string, resultKey string) (bool, error) {
	return true, nil
}

func (s *stubJobRepo) Fail(ctx context.Context, id string, errorCode string) (bool, error) {
	return true, nil
}

func (s *stubJobRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time, batchSize int) ([]*model.Job, error) {
	return nil, nil
}

func (s *stubJobRepo) FailTimedOut(ctx context.Context, claimedBefore time.Time, batchSize int) (int64, error) {
	return 0, nil
}

func (s *stubJobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	return &model.JobStats{}, nil
}

type stubRenderer struct{}

func (stubRenderer) RenderSection(ctx context.Context, req core.RenderSectionRequest) ([]byte, error) {
	return []byte(req.Section + ";"), nil
}

type stubResultStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	types map[string]string
}

func newStubResultStore() *stubResultStore {
	return &stubResultStore{data: map[string][]byte{}, types: map[string]string{}}
}

func (s *stubResultStore) Put(ctx context.Context, key, contentType string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = payload
	s.types[key] = contentType
	return nil
}

func (s *stubResultStore) Get(ctx context.Context, key string) (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.data[key]
	if !ok {
		return "", nil, model.ErrResultNotFound
	}
	return s.types[key], payload, nil
}

func (s *stubResultStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	delete(s.types, key)
	return nil
}

type stubNotificationRepo struct {
	listFn        func(ctx context.Context, opts model.NotificationListOptions) ([]*model.Notification, error)
	markReadFn    func(ctx context.Context, id, recipientID string) (bool, error)
	markAllReadFn func(ctx context.Context, recipientID string) (int64, error)
	unreadCountFn func(ctx context.Context, recipientID string) (int, error)
}

func (s *stubNotificationRepo) CreateBatch(ctx context.Context, reqs []model.CreateNotificationRequest) ([]*model.Notification, error) {
	out := make([]*model.Notification, 0, len(reqs))
	for i, req := range reqs {
		out = append(out, &model.Notification{
			ID:          fmt.Sprintf("n-%s-%d", req.RecipientID, i),
			RecipientID: req.RecipientID,
			ChildID:     req.ChildID,
			Kind:        req.Kind,
			Priority:    req.Priority,
			Payload:     req.Payload,
			CreatedAt:   time.Now().UTC(),
		})
	}
	return out, nil
}

func (s *stubNotificationRepo) List(ctx context.Context, opts model.NotificationListOptions) ([]*model.Notification, error) {
	if s.listFn != nil {
		return s.listFn(ctx, opts)
	}
	return nil, nil
}

func (s *stubNotificationRepo) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, id, recipientID)
	}
	return false, nil
}

func (s *stubNotificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, recipientID)
	}
	return 0, nil
}

func (s *stubNotificationRepo) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	if s.unreadCountFn != nil {
		return s.unreadCountFn(ctx, recipientID)
	}
	return 0, nil
}

func (s *stubNotificationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	return 0, nil
}

type stubPreferenceRepo struct {
	getFn    func(ctx context.Context, userID, childID string) (*model.NotificationPreference, error)
	upsertFn func(ctx context.Context, pref *model.NotificationPreference) (*model.NotificationPreference, error)
}

func (s *stubPreferenceRepo) Get(ctx context.Context, userID, childID string) (*model.NotificationPreference, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID, childID)
	}
	return nil, nil
}

func (s *stubPreferenceRepo) GetForUsers(ctx context.Context, userIDs []string, childID string) (map[string]*model.NotificationPreference, error) {
	return map[string]*model.NotificationPreference{}, nil
}

func (s *stubPreferenceRepo) Upsert(ctx context.Context, pref *model.NotificationPreference) (*model.NotificationPreference, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, pref)
	}
	return pref, nil
}

func (s *stubPreferenceRepo) ListReminderTargets(ctx context.Context) ([]core.ReminderTarget, error) {
	return nil, nil
}
