package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"loanflow_backend/internal/tasks/repository"
	"loanflow_backend/platform/apperr"
	"loanflow_backend/platform/httpkit"
	"loanflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeTaskStore struct {
	tasks     []repository.Task
	listErr   error
	updateErr error

	assigneeCalls []uuid.UUID
	limits        []int
	offsets       []int
	dealCalls     []uuid.UUID
	updates       map[uuid.UUID]string
}

func (f *fakeTaskStore) ListByAssignee(_ context.Context, userID uuid.UUID, limit, offset int) ([]repository.Task, error) {
	f.assigneeCalls = append(f.assigneeCalls, userID)
	f.limits = append(f.limits, limit)
	f.offsets = append(f.offsets, offset)
	return f.tasks, f.listErr
}

func (f *fakeTaskStore) ListByDeal(_ context.Context, dealID uuid.UUID) ([]repository.Task, error) {
	f.dealCalls = append(f.dealCalls, dealID)
	return f.tasks, f.listErr
}

func (f *fakeTaskStore) UpdateStatus(_ context.Context, taskID uuid.UUID, status string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updates == nil {
		f.updates = map[uuid.UUID]string{}
	}
	f.updates[taskID] = status
	return nil
}

func newTestRouter(store *fakeTaskStore, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(httpkit.ContextUserIDKey, userID)
			c.Set(httpkit.ContextRolesKey, []string{"broker"})
		}
	})

	h := New(store, validator.New())
	h.RegisterRoutes(r.Group("/tasks"))
	h.RegisterDealRoutes(r.Group("/deals"))
	return r
}

func TestListMineUsesIdentity(t *testing.T) {
	userID := uuid.New()
	store := &fakeTaskStore{tasks: []repository.Task{{ID: uuid.New(), AssignedTo: userID, Title: "Review Idle Deal"}}}
	router := newTestRouter(store, userID)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks?limit=5&offset=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(store.assigneeCalls) != 1 || store.assigneeCalls[0] != userID {
		t.Fatalf("list should target the caller, got %+v", store.assigneeCalls)
	}
	if store.limits[0] != 5 || store.offsets[0] != 10 {
		t.Fatalf("pagination not forwarded: limit=%d offset=%d", store.limits[0], store.offsets[0])
	}
}

func TestListMineClampsPagination(t *testing.T) {
	store := &fakeTaskStore{}
	router := newTestRouter(store, uuid.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks?limit=999&offset=-3", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.limits[0] != 50 || store.offsets[0] != 0 {
		t.Fatalf("pagination not clamped: limit=%d offset=%d", store.limits[0], store.offsets[0])
	}
}

func TestListMineRequiresAuth(t *testing.T) {
	store := &fakeTaskStore{}
	router := newTestRouter(store, uuid.Nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(store.assigneeCalls) != 0 {
		t.Fatal("unauthenticated request must not reach the store")
	}
}

func TestListByDeal(t *testing.T) {
	dealID := uuid.New()
	store := &fakeTaskStore{tasks: []repository.Task{{ID: uuid.New(), DealID: dealID}}}
	router := newTestRouter(store, uuid.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deals/"+dealID.String()+"/tasks", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(store.dealCalls) != 1 || store.dealCalls[0] != dealID {
		t.Fatalf("deal list should target the deal, got %+v", store.dealCalls)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deals/not-a-uuid/tasks", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed deal id should be rejected, got %d", rec.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	taskID := uuid.New()
	store := &fakeTaskStore{}
	router := newTestRouter(store, uuid.New())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/tasks/"+taskID.String()+"/status", strings.NewReader(`{"status":"completed"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if store.updates[taskID] != repository.StatusCompleted {
		t.Fatalf("update not forwarded: %+v", store.updates)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	store := &fakeTaskStore{}
	router := newTestRouter(store, uuid.New())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/tasks/"+uuid.NewString()+"/status", strings.NewReader(`{"status":"teleported"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(store.updates) != 0 {
		t.Fatal("invalid status must not reach the store")
	}
}

func TestUpdateStatusMissingTask(t *testing.T) {
	store := &fakeTaskStore{updateErr: apperr.NotFound("task not found")}
	router := newTestRouter(store, uuid.New())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/tasks/"+uuid.NewString()+"/status", strings.NewReader(`{"status":"cancelled"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
