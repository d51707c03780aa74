package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/ervin210/oauth-app-marketplace/internal/models"
	"github.com/ervin210/oauth-app-marketplace/internal/rating"
	"github.com/ervin210/oauth-app-marketplace/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Applications ---

type mockAppRepo struct {
	mu        sync.Mutex
	apps      map[uuid.UUID]*models.Application
	clientIDs map[string]uuid.UUID

	// replaceHook runs before ReplaceCredentials and may override its result.
	replaceHook func(id uuid.UUID, clientID string) (handled, ok bool, err error)
}

func newMockAppRepo() *mockAppRepo {
	return &mockAppRepo{
		apps:      make(map[uuid.UUID]*models.Application),
		clientIDs: make(map[string]uuid.UUID),
	}
}

func (m *mockAppRepo) add(app *models.Application) *models.Application {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.VerificationStatus == "" {
		app.VerificationStatus = models.VerificationUnverified
	}
	m.apps[app.ID] = app
	if app.ClientID != nil {
		m.clientIDs[*app.ClientID] = app.ID
	}
	return app
}

func (m *mockAppRepo) Create(ctx context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app.CreatedAt = time.Now()
	app.UpdatedAt = app.CreatedAt
	m.add(app)
	return nil
}

func (m *mockAppRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok {
		return nil, nil
	}
	copied := *app
	return &copied, nil
}

func (m *mockAppRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*models.Application
	for _, app := range m.apps {
		if app.OwnerID == ownerID {
			result = append(result, app)
		}
	}
	return result, nil
}

func (m *mockAppRepo) Update(ctx context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.apps[app.ID]
	updated := *app
	// Credential columns are owned by ReplaceCredentials.
	updated.ClientID = stored.ClientID
	updated.ClientSecretHash = stored.ClientSecretHash
	updated.ClientSecretPrefix = stored.ClientSecretPrefix
	updated.CredentialsVersion = stored.CredentialsVersion
	m.apps[app.ID] = &updated
	return nil
}

func (m *mockAppRepo) ReplaceCredentials(ctx context.Context, id uuid.UUID, expectedVersion int64, clientID, secretHash, secretPrefix string) (bool, error) {
	if m.replaceHook != nil {
		if handled, ok, err := m.replaceHook(id, clientID); handled {
			return ok, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	app, found := m.apps[id]
	if !found || app.CredentialsVersion != expectedVersion {
		return false, nil
	}
	if owner, taken := m.clientIDs[clientID]; taken && owner != id {
		return false, repository.ErrClientIDTaken
	}

	if app.ClientID != nil {
		delete(m.clientIDs, *app.ClientID)
	}
	now := time.Now()
	app.ClientID = &clientID
	app.ClientSecretHash = &secretHash
	app.ClientSecretPrefix = &secretPrefix
	app.CredentialsVersion++
	app.CredentialsIssuedAt = &now
	m.clientIDs[clientID] = id
	return true, nil
}

func (m *mockAppRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.apps, id)
	return nil
}

func (m *mockAppRepo) ListListed(ctx context.Context, q models.ListingQuery) ([]*models.PublicApplication, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*models.PublicApplication
	for _, app := range m.apps {
		if app.IsVisible() {
			all = append(all, app.Public())
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	total := int64(len(all))
	start := q.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + q.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *mockAppRepo) GetListed(ctx context.Context, id uuid.UUID) (*models.PublicApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok || !app.IsVisible() {
		return nil, nil
	}
	return app.Public(), nil
}

// --- Reviews ---

type mockReviewRepo struct {
	reviews map[uuid.UUID]*models.Review
}

func newMockReviewRepo() *mockReviewRepo {
	return &mockReviewRepo{reviews: make(map[uuid.UUID]*models.Review)}
}

func (m *mockReviewRepo) Create(ctx context.Context, review *models.Review) error {
	for _, r := range m.reviews {
		if r.AppID == review.AppID && r.UserID == review.UserID {
			return rating.ErrDuplicateReview
		}
	}
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	review.CreatedAt = time.Now()
	review.UpdatedAt = review.CreatedAt
	m.reviews[review.ID] = review
	return nil
}

func (m *mockReviewRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	r, ok := m.reviews[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (m *mockReviewRepo) byApp(appID uuid.UUID) []*models.Review {
	var result []*models.Review
	for _, r := range m.reviews {
		if r.AppID == appID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result
}

func (m *mockReviewRepo) ListByApp(ctx context.Context, appID uuid.UUID, limit, offset int) ([]*models.Review, error) {
	all := m.byApp(appID)
	if offset > len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *mockReviewRepo) CountByApp(ctx context.Context, appID uuid.UUID) (int64, error) {
	return int64(len(m.byApp(appID))), nil
}

func (m *mockReviewRepo) ListEntries(ctx context.Context, appID uuid.UUID) ([]rating.Entry, error) {
	return models.ReviewEntries(m.byApp(appID)), nil
}

func (m *mockReviewRepo) ListEntriesByApps(ctx context.Context, appIDs []uuid.UUID) (map[uuid.UUID][]rating.Entry, error) {
	result := make(map[uuid.UUID][]rating.Entry)
	for _, id := range appIDs {
		if entries := models.ReviewEntries(m.byApp(id)); len(entries) > 0 {
			result[id] = entries
		}
	}
	return result, nil
}

func (m *mockReviewRepo) Update(ctx context.Context, review *models.Review) error {
	copied := *review
	copied.UpdatedAt = time.Now()
	m.reviews[review.ID] = &copied
	return nil
}

func (m *mockReviewRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.reviews, id)
	return nil
}

// --- Plans and subscriptions ---

type mockPlanRepo struct {
	plans map[uuid.UUID]*models.PricingPlan
	subs  *mockSubscriptionRepo
}

func newMockPlanRepo(subs *mockSubscriptionRepo) *mockPlanRepo {
	return &mockPlanRepo{plans: make(map[uuid.UUID]*models.PricingPlan), subs: subs}
}

func (m *mockPlanRepo) Create(ctx context.Context, plan *models.PricingPlan) error {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	plan.CreatedAt = time.Now()
	m.plans[plan.ID] = plan
	return nil
}

func (m *mockPlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PricingPlan, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *mockPlanRepo) ListByApp(ctx context.Context, appID uuid.UUID, publicOnly bool) ([]*models.PricingPlan, error) {
	var result []*models.PricingPlan
	for _, p := range m.plans {
		if p.AppID == appID && (!publicOnly || p.IsPublic) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PriceCents < result[j].PriceCents })
	return result, nil
}

func (m *mockPlanRepo) Update(ctx context.Context, plan *models.PricingPlan) error {
	copied := *plan
	m.plans[plan.ID] = &copied
	return nil
}

func (m *mockPlanRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	var orphaned int64
	if m.subs != nil {
		for _, s := range m.subs.subs {
			if s.PlanID != nil && *s.PlanID == id && s.Status == models.SubscriptionActive {
				s.Status = models.SubscriptionOrphaned
				s.PlanID = nil
				orphaned++
			}
		}
	}
	delete(m.plans, id)
	return orphaned, nil
}

type mockSubscriptionRepo struct {
	subs map[uuid.UUID]*models.Subscription
}

func newMockSubscriptionRepo() *mockSubscriptionRepo {
	return &mockSubscriptionRepo{subs: make(map[uuid.UUID]*models.Subscription)}
}

func (m *mockSubscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.StartDate = time.Now()
	sub.CreatedAt = sub.StartDate
	m.subs[sub.ID] = sub
	return nil
}

func (m *mockSubscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	s, ok := m.subs[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *mockSubscriptionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Subscription, error) {
	var result []*models.Subscription
	for _, s := range m.subs {
		if s.UserID == userID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockSubscriptionRepo) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	s, ok := m.subs[id]
	if !ok || s.Status != models.SubscriptionActive {
		return false, nil
	}
	now := time.Now()
	s.Status = models.SubscriptionCancelled
	s.EndDate = &now
	return true, nil
}

// --- Audit ---

// MockAuditRepository is a mock implementation of repository.AuditRepository.
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockAuditRepository) List(ctx context.Context, query models.AuditLogQuery) ([]*models.AuditLog, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

// recordingAudit collects audit entries in memory.
type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (r *recordingAudit) Log(ctx context.Context, entry AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingAudit) Query(ctx context.Context, resourceType models.ResourceType, resourceID uuid.UUID, filter AuditFilter) ([]*models.AuditLog, string, error) {
	return nil, "", nil
}

func (r *recordingAudit) events() []models.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]models.AuditEvent, 0, len(r.entries))
	for _, e := range r.entries {
		events = append(events, e.Event)
	}
	return events
}

var (
	_ repository.ApplicationRepository  = (*mockAppRepo)(nil)
	_ repository.ReviewRepository       = (*mockReviewRepo)(nil)
	_ repository.PlanRepository         = (*mockPlanRepo)(nil)
	_ repository.SubscriptionRepository = (*mockSubscriptionRepo)(nil)
	_ repository.AuditRepository        = (*MockAuditRepository)(nil)
	_ AuditService                      = (*recordingAudit)(nil)
)
