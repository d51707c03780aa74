package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/ervin210/oauth-app-marketplace/internal/middleware"
	"github.com/ervin210/oauth-app-marketplace/internal/models"
	"github.com/ervin210/oauth-app-marketplace/internal/pkg/response"
	"github.com/ervin210/oauth-app-marketplace/internal/rating"
	"github.com/ervin210/oauth-app-marketplace/internal/service"
)

// mockAppService is a mock implementation of AppService for testing.
type mockAppService struct {
	createFunc              func(ctx context.Context, req service.CreateAppRequest) (*models.Application, error)
	getFunc                 func(ctx context.Context, ownerID, appID uuid.UUID) (*models.Application, error)
	listFunc                func(ctx context.Context, ownerID uuid.UUID) ([]*models.Application, error)
	updateFunc              func(ctx context.Context, ownerID, appID uuid.UUID, req service.UpdateAppRequest) (*models.Application, error)
	setPublicationFunc      func(ctx context.Context, ownerID, appID uuid.UUID, req service.PublicationRequest) (*models.Application, error)
	requestVerificationFunc func(ctx context.Context, ownerID, appID uuid.UUID) (*models.Application, error)
	deleteFunc              func(ctx context.Context, ownerID, appID uuid.UUID) error
	rotateFunc              func(ctx context.Context, ownerID, appID uuid.UUID) (*service.IssuedCredentials, error)
}

func (m *mockAppService) Create(ctx context.Context, req service.CreateAppRequest) (*models.Application, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockAppService) Get(ctx context.Context, ownerID, appID uuid.UUID) (*models.Application, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, ownerID, appID)
	}
	return &models.Application{ID: appID, OwnerID: ownerID}, nil
}

func (m *mockAppService) List(ctx context.Context, ownerID uuid.UUID) ([]*models.Application, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockAppService) Update(ctx context.Context, ownerID, appID uuid.UUID, req service.UpdateAppRequest) (*models.Application, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, ownerID, appID, req)
	}
	return nil, nil
}

func (m *mockAppService) SetPublication(ctx context.Context, ownerID, appID uuid.UUID, req service.PublicationRequest) (*models.Application, error) {
	if m.setPublicationFunc != nil {
		return m.setPublicationFunc(ctx, ownerID, appID, req)
	}
	return nil, nil
}

func (m *mockAppService) RequestVerification(ctx context.Context, ownerID, appID uuid.UUID) (*models.Application, error) {
	if m.requestVerificationFunc != nil {
		return m.requestVerificationFunc(ctx, ownerID, appID)
	}
	return nil, nil
}

func (m *mockAppService) Delete(ctx context.Context, ownerID, appID uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, ownerID, appID)
	}
	return nil
}

func (m *mockAppService) RotateCredentials(ctx context.Context, ownerID, appID uuid.UUID) (*service.IssuedCredentials, error) {
	if m.rotateFunc != nil {
		return m.rotateFunc(ctx, ownerID, appID)
	}
	return nil, nil
}

type mockAuditService struct {
	queryFunc func(ctx context.Context, resourceType models.ResourceType, resourceID uuid.UUID, filter service.AuditFilter) ([]*models.AuditLog, string, error)
}

func (m *mockAuditService) Log(ctx context.Context, entry service.AuditEntry) error {
	return nil
}

func (m *mockAuditService) Query(ctx context.Context, resourceType models.ResourceType, resourceID uuid.UUID, filter service.AuditFilter) ([]*models.AuditLog, string, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, resourceType, resourceID, filter)
	}
	return nil, "", nil
}

type mockReviewService struct {
	submitFunc  func(ctx context.Context, req service.SubmitReviewRequest) (*models.Review, error)
	editFunc    func(ctx context.Context, userID, appID, reviewID uuid.UUID, req service.EditReviewRequest) (*models.Review, error)
	deleteFunc  func(ctx context.Context, userID, appID, reviewID uuid.UUID) error
	listFunc    func(ctx context.Context, appID uuid.UUID, page, perPage int) ([]*models.Review, int64, error)
	summaryFunc func(ctx context.Context, appID uuid.UUID) (rating.Summary, error)
}

func (m *mockReviewService) Submit(ctx context.Context, req service.SubmitReviewRequest) (*models.Review, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockReviewService) Edit(ctx context.Context, userID, appID, reviewID uuid.UUID, req service.EditReviewRequest) (*models.Review, error) {
	if m.editFunc != nil {
		return m.editFunc(ctx, userID, appID, reviewID, req)
	}
	return nil, nil
}

func (m *mockReviewService) Delete(ctx context.Context, userID, appID, reviewID uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, userID, appID, reviewID)
	}
	return nil
}

func (m *mockReviewService) List(ctx context.Context, appID uuid.UUID, page, perPage int) ([]*models.Review, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, appID, page, perPage)
	}
	return nil, 0, nil
}

func (m *mockReviewService) Summary(ctx context.Context, appID uuid.UUID) (rating.Summary, error) {
	if m.summaryFunc != nil {
		return m.summaryFunc(ctx, appID)
	}
	return rating.Summary{}, nil
}

type mockPlanService struct {
	createFunc func(ctx context.Context, ownerID, appID uuid.UUID, req service.PlanRequest) (*models.PricingPlan, error)
	updateFunc func(ctx context.Context, ownerID, appID, planID uuid.UUID, req service.PlanRequest) (*models.PricingPlan, error)
	deleteFunc func(ctx context.Context, ownerID, appID, planID uuid.UUID) (int64, error)
	listFunc   func(ctx context.Context, viewerID *uuid.UUID, appID uuid.UUID) ([]*models.PricingPlan, error)
}

func (m *mockPlanService) Create(ctx context.Context, ownerID, appID uuid.UUID, req service.PlanRequest) (*models.PricingPlan, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, ownerID, appID, req)
	}
	return nil, nil
}

func (m *mockPlanService) Update(ctx context.Context, ownerID, appID, planID uuid.UUID, req service.PlanRequest) (*models.PricingPlan, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, ownerID, appID, planID, req)
	}
	return nil, nil
}

func (m *mockPlanService) Delete(ctx context.Context, ownerID, appID, planID uuid.UUID) (int64, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, ownerID, appID, planID)
	}
	return 0, nil
}

func (m *mockPlanService) List(ctx context.Context, viewerID *uuid.UUID, appID uuid.UUID) ([]*models.PricingPlan, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, viewerID, appID)
	}
	return nil, nil
}

type mockSubscriptionService struct {
	subscribeFunc func(ctx context.Context, userID uuid.UUID, req service.SubscribeRequest) (*models.Subscription, error)
	cancelFunc    func(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.Subscription, error)
	listFunc      func(ctx context.Context, userID uuid.UUID) ([]*models.Subscription, error)
}

func (m *mockSubscriptionService) Subscribe(ctx context.Context, userID uuid.UUID, req service.SubscribeRequest) (*models.Subscription, error) {
	if m.subscribeFunc != nil {
		return m.subscribeFunc(ctx, userID, req)
	}
	return nil, nil
}

func (m *mockSubscriptionService) Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, userID, subscriptionID)
	}
	return nil, nil
}

func (m *mockSubscriptionService) List(ctx context.Context, userID uuid.UUID) ([]*models.Subscription, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID)
	}
	return nil, nil
}

type mockMarketplaceService struct {
	listFunc func(ctx context.Context, q models.ListingQuery) ([]*models.ListedApp, int64, error)
	getFunc  func(ctx context.Context, appID uuid.UUID) (*models.AppDetail, error)
}

func (m *mockMarketplaceService) List(ctx context.Context, q models.ListingQuery) ([]*models.ListedApp, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, q)
	}
	return nil, 0, nil
}

func (m *mockMarketplaceService) Get(ctx context.Context, appID uuid.UUID) (*models.AppDetail, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, appID)
	}
	return nil, nil
}

func (m *mockMarketplaceService) NormalizeQuery(q models.ListingQuery) models.ListingQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 || q.PerPage > 50 {
		q.PerPage = 20
	}
	if q.Sort == "" {
		q.Sort = models.SortByNewest
	}
	return q
}

type mockOAuthService struct {
	authURLFunc  func(provider, state string) (string, error)
	callbackFunc func(ctx context.Context, provider, code string) (*models.User, *models.Session, error)
	resolveFunc  func(ctx context.Context, sessionID string) (uuid.UUID, error)
	loggedOut    []string
	providers    []string
}

func (m *mockOAuthService) GetAuthURL(provider, state string) (string, error) {
	return m.authURLFunc(provider, state)
}

func (m *mockOAuthService) HandleCallback(ctx context.Context, provider, code string) (*models.User, *models.Session, error) {
	return m.callbackFunc(ctx, provider, code)
}

func (m *mockOAuthService) ResolveSession(ctx context.Context, sessionID string) (uuid.UUID, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, sessionID)
	}
	return uuid.Nil, service.ErrInvalidSession
}

func (m *mockOAuthService) Logout(ctx context.Context, sessionID string) error {
	m.loggedOut = append(m.loggedOut, sessionID)
	return nil
}

func (m *mockOAuthService) GetSupportedProviders() []string {
	return m.providers
}

var (
	_ service.AppService          = (*mockAppService)(nil)
	_ service.AuditService        = (*mockAuditService)(nil)
	_ service.ReviewService       = (*mockReviewService)(nil)
	_ service.PlanService         = (*mockPlanService)(nil)
	_ service.SubscriptionService = (*mockSubscriptionService)(nil)
	_ service.MarketplaceService  = (*mockMarketplaceService)(nil)
	_ service.OAuthService        = (*mockOAuthService)(nil)
)

// newTestRequest builds a JSON request, signed in as userID unless it is uuid.Nil.
func newTestRequest(t *testing.T, method, path string, body any, userID uuid.UUID) *http.Request {
	t.Helper()

	var reqBody []byte
	switch b := body.(type) {
	case nil:
	case string:
		reqBody = []byte(b)
	default:
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	return req
}

type testError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

type testEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *testError      `json:"error"`
	Meta  *response.Meta  `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := decodeEnvelope(t, rec)
	if env.Error == nil {
		t.Fatalf("expected error response, got %s", rec.Body.String())
	}
	return env.Error.Code
}

// newTestAPI wires mocks into the /v1 router.
func newTestAPI(apps *mockAppService, reviews *mockReviewService, plans *mockPlanService) http.Handler {
	if apps == nil {
		apps = &mockAppService{}
	}
	if reviews == nil {
		reviews = &mockReviewService{}
	}
	if plans == nil {
		plans = &mockPlanService{}
	}
	api := &API{
		Apps:          NewAppHandler(apps, &mockAuditService{}),
		Reviews:       NewReviewHandler(reviews),
		Plans:         NewPlanHandler(plans),
		Subscriptions: NewSubscriptionHandler(&mockSubscriptionService{}),
		Marketplace:   NewMarketplaceHandler(&mockMarketplaceService{}),
	}
	return api.Routes()
}
