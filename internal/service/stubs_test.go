package service

// Shared test doubles for the service layer. Each stub exposes function
// fields so individual tests override only the calls they care about.

import (
	"context"
	"fmt"
	"time"

	"github.com/sproutlog/sproutlog/internal/core"
	"github.com/sproutlog/sproutlog/internal/domain/model"
)

type stubJobRepo struct {
	createFn         func(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	getByIDFn        func(ctx context.Context, id string) (*model.Job, error)
	claimFn          func(ctx context.Context) (*model.Job, error)
	updateProgressFn func(ctx context.Context, id string, progress int) (bool, error)
	completeFn       func(ctx context.Context, id, resultKey string) (bool, error)
	failFn           func(ctx context.Context, id, errorCode string) (bool, error)
	expireFn         func(ctx context.Context, cutoff time.Time, batchSize int) ([]*model.Job, error)
	failTimedOutFn   func(ctx context.Context, claimedBefore time.Time, batchSize int) (int64, error)
	statsFn          func(ctx context.Context) (*model.JobStats, error)
}

func (s *stubJobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return &model.Job{
		ID:      "job-1",
		OwnerID: req.OwnerID,
		ChildID: req.ChildID,
		Format:  req.Format,
		State:   model.JobStateQueued,
	}, nil
}

func (s *stubJobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, model.ErrJobNotFound
}

func (s *stubJobRepo) Claim(ctx context.Context) (*model.Job, error) {
	if s.claimFn != nil {
		return s.claimFn(ctx)
	}
	return nil, model.ErrNoJobsAvailable
}

func (s *stubJobRepo) UpdateProgress(ctx context.Context, id string, progress int) (bool, error) {
	if s.updateProgressFn != nil {
		return s.updateProgressFn(ctx, id, progress)
	}
	return true, nil
}

func (s *stubJobRepo) Complete(ctx context.Context, id, resultKey string) (bool, error) {
	if s.completeFn != nil {
		return s.completeFn(ctx, id, resultKey)
	}
	return true, nil
}

func (s *stubJobRepo) Fail(ctx context.Context, id, errorCode string) (bool, error) {
	if s.failFn != nil {
		return s.failFn(ctx, id, errorCode)
	}
	return true, nil
}

func (s *stubJobRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time, batchSize int) ([]*model.Job, error) {
	if s.expireFn != nil {
		return s.expireFn(ctx, cutoff, batchSize)
	}
	return nil, nil
}

func (s *stubJobRepo) FailTimedOut(ctx context.Context, claimedBefore time.Time, batchSize int) (int64, error) {
	if s.failTimedOutFn != nil {
		return s.failTimedOutFn(ctx, claimedBefore, batchSize)
	}
	return 0, nil
}

func (s *stubJobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	if s.statsFn != nil {
		return s.statsFn(ctx)
	}
	return &model.JobStats{}, nil
}

type stubNotificationRepo struct {
	created []model.CreateNotificationRequest

	createBatchFn     func(ctx context.Context, reqs []model.CreateNotificationRequest) ([]*model.Notification, error)
	listFn            func(ctx context.Context, opts model.NotificationListOptions) ([]*model.Notification, error)
	markReadFn        func(ctx context.Context, id, recipientID string) (bool, error)
	markAllReadFn     func(ctx context.Context, recipientID string) (int64, error)
	unreadCountFn     func(ctx context.Context, recipientID string) (int, error)
	deleteOlderThanFn func(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

func (s *stubNotificationRepo) CreateBatch(ctx context.Context, reqs []model.CreateNotificationRequest) ([]*model.Notification, error) {
	s.created = append(s.created, reqs...)
	if s.createBatchFn != nil {
		return s.createBatchFn(ctx, reqs)
	}
	out := make([]*model.Notification, 0, len(reqs))
	for i, req := range reqs {
		out = append(out, &model.Notification{
			ID:          fmt.Sprintf("n-%s-%d", req.RecipientID, i),
			RecipientID: req.RecipientID,
			ChildID:     req.ChildID,
			Kind:        req.Kind,
			Priority:    req.Priority,
			Payload:     req.Payload,
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
	return true, nil
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
	if s.deleteOlderThanFn != nil {
		return s.deleteOlderThanFn(ctx, cutoff, batchSize)
	}
	return 0, nil
}

type stubPreferenceRepo struct {
	getFn         func(ctx context.Context, userID, childID string) (*model.NotificationPreference, error)
	getForUsersFn func(ctx context.Context, userIDs []string, childID string) (map[string]*model.NotificationPreference, error)
	upsertFn      func(ctx context.Context, pref *model.NotificationPreference) (*model.NotificationPreference, error)
	listTargetsFn func(ctx context.Context) ([]core.ReminderTarget, error)
}

func (s *stubPreferenceRepo) Get(ctx context.Context, userID, childID string) (*model.NotificationPreference, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID, childID)
	}
	return nil, nil
}

func (s *stubPreferenceRepo) GetForUsers(ctx context.Context, userIDs []string, childID string) (map[string]*model.NotificationPreference, error) {
	if s.getForUsersFn != nil {
		return s.getForUsersFn(ctx, userIDs, childID)
	}
	return map[string]*model.NotificationPreference{}, nil
}

func (s *stubPreferenceRepo) Upsert(ctx context.Context, pref *model.NotificationPreference) (*model.NotificationPreference, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, pref)
	}
	return pref, nil
}

func (s *stubPreferenceRepo) ListReminderTargets(ctx context.Context) ([]core.ReminderTarget, error) {
	if s.listTargetsFn != nil {
		return s.listTargetsFn(ctx)
	}
	return nil, nil
}

type stubMarkRepo struct {
	marks []core.ReminderMarkParams

	tryMarkFn         func(ctx context.Context, params core.ReminderMarkParams) (bool, error)
	deleteOlderThanFn func(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

func (s *stubMarkRepo) TryMark(ctx context.Context, params core.ReminderMarkParams) (bool, error) {
	if s.tryMarkFn != nil {
		return s.tryMarkFn(ctx, params)
	}
	s.marks = append(s.marks, params)
	return true, nil
}

func (s *stubMarkRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if s.deleteOlderThanFn != nil {
		return s.deleteOlderThanFn(ctx, cutoff, batchSize)
	}
	return 0, nil
}

type stubGate struct {
	canReadFn func(ctx context.Context, userID, childID string) (bool, error)
	sharersFn func(ctx context.Context, childID string) ([]string, error)
}

func (s *stubGate) CanRead(ctx context.Context, userID, childID string) (bool, error) {
	if s.canReadFn != nil {
		return s.canReadFn(ctx, userID, childID)
	}
	return true, nil
}

func (s *stubGate) Sharers(ctx context.Context, childID string) ([]string, error) {
	if s.sharersFn != nil {
		return s.sharersFn(ctx, childID)
	}
	return nil, nil
}

type stubRenderer struct {
	renderFn func(ctx context.Context, req core.RenderSectionRequest) ([]byte, error)
}

func (s *stubRenderer) RenderSection(ctx context.Context, req core.RenderSectionRequest) ([]byte, error) {
	if s.renderFn != nil {
		return s.renderFn(ctx, req)
	}
	return []byte(req.Section + ";"), nil
}

type stubResultStore struct {
	stored  map[string][]byte
	types   map[string]string
	deleted []string

	putFn func(ctx context.Context, key, contentType string, payload []byte) error
	getFn func(ctx context.Context, key string) (string, []byte, error)
}

func newStubResultStore() *stubResultStore {
	return &stubResultStore{
		stored: make(map[string][]byte),
		types:  make(map[string]string),
	}
}

func (s *stubResultStore) Put(ctx context.Context, key, contentType string, payload []byte) error {
	if s.putFn != nil {
		return s.putFn(ctx, key, contentType, payload)
	}
	s.stored[key] = payload
	s.types[key] = contentType
	return nil
}

func (s *stubResultStore) Get(ctx context.Context, key string) (string, []byte, error) {
	if s.getFn != nil {
		return s.getFn(ctx, key)
	}
	payload, ok := s.stored[key]
	if !ok {
		return "", nil, model.ErrResultNotFound
	}
	return s.types[key], payload, nil
}

func (s *stubResultStore) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	delete(s.stored, key)
	delete(s.types, key)
	return nil
}

type stubPush struct {
	delivered []*model.Notification
	err       error
}

func (s *stubPush) Deliver(ctx context.Context, n *model.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, n)
	return nil
}

// memCache is an in-memory core.CacheRepository used to build a real
// AnalyticsCacheService in dispatcher tests.
type memCache struct {
	values      map[string][]byte
	generations map[string]int64
}

func newMemCache() *memCache {
	return &memCache{
		values:      make(map[string][]byte),
		generations: make(map[string]int64),
	}
}

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.values[key] = value
	return nil
}

func (m *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	return m.values[key], nil
}

func (m *memCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	for k := range m.values {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.values, k)
			n++
		}
	}
	return n, nil
}

func (m *memCache) BumpGeneration(ctx context.Context, childID string) (int64, error) {
	m.generations[childID]++
	return m.generations[childID], nil
}

func (m *memCache) Generation(ctx context.Context, childID string) (int64, error) {
	return m.generations[childID], nil
}

func (m *memCache) Health(ctx context.Context) error { return nil }
