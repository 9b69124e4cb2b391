package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/doc-approval/internal/application/dispatcher"
	"github.com/garyjia/doc-approval/internal/application/service"
	"github.com/garyjia/doc-approval/internal/application/workflow"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/event"
	"github.com/garyjia/doc-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/doc-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/doc-approval/internal/infrastructure/storage"
	"github.com/garyjia/doc-approval/internal/notification"
	"github.com/garyjia/doc-approval/internal/report"
	"github.com/garyjia/doc-approval/internal/testutil"
	"github.com/garyjia/doc-approval/pkg/utils"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type fixture struct {
	router *gin.Engine
	org    *testutil.Org
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	kv := utils.NewKVLogger(logger)
	db := testutil.OpenDB(t)
	org := testutil.SeedOrg(t, db)

	docs := repository.NewDocumentRepository(db, logger)
	history := repository.NewHistoryRepository(db, logger)
	notes := repository.NewNotificationRepository(db, logger)
	users := repository.NewUserRepository(db, logger)
	tx := sqlite.NewDB(db, logger)
	files := storage.NewLocalFileStorage(t.TempDir(), 1<<20, logger)

	d := dispatcher.NewDispatcher(dispatcher.WithLogger(kv))
	router := service.NewNotificationRouter(users, notification.NewFeedDelivery(notes), kv)
	d.SubscribeNamed(event.TypeDocumentStatusChanged, "notification-router", router.Handle)

	audit := service.NewAuditTrail(history, docs, kv)
	engine := workflow.NewEngine(docs, audit, tx, workflow.WithDispatcher(d), workflow.WithLogger(kv))
	documents := service.NewDocumentService(docs, files, tx, d, kv)

	srv := NewServer(ServerConfig{Port: 0}, Services{
		Documents:     documents,
		Approvals:     service.NewApprovalService(documents, engine, kv),
		History:       audit,
		Notifications: service.NewNotificationFeedService(notes, kv),
		Register:      report.NewRegisterExporter(documents, logger),
		Users:         users,
	}, kv)

	return &fixture{router: srv.Router(), org: org}
}

func (f *fixture) do(t *testing.T, actor *entity.User, method, path string, body io.Reader, contentType string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if actor != nil {
		req.Header.Set(ActorHeader, strconv.FormatInt(actor.ID, 10))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != xlsxContentType {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (f *fixture) doJSON(t *testing.T, actor *entity.User, method, path string, payload interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return f.do(t, actor, method, path, body, "application/json")
}

func (f *fixture) createDraft(t *testing.T, owner *entity.User, amount string) DocumentResponse {
	t.Helper()

	w, env := f.doJSON(t, owner, http.MethodPost, "/api/documents", DraftRequest{
		Title:   "Office chairs",
		Content: "Four chairs for the new room",
		Amount:  amount,
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)

	var doc DocumentResponse
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	return doc
}

func decodeDoc(t *testing.T, env envelope) DocumentResponse {
	t.Helper()
	var doc DocumentResponse
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	return doc
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, nil, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestRequireActor(t *testing.T) {
	f := newFixture(t)

	t.Run("missing header", func(t *testing.T) {
		w, env := f.do(t, nil, http.MethodGet, "/api/me", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, env.Success)
	})

	t.Run("unknown user", func(t *testing.T) {
		w, _ := f.do(t, &entity.User{ID: 9999}, http.MethodGet, "/api/me", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("known user", func(t *testing.T) {
		w, env := f.do(t, f.org.Alice, http.MethodGet, "/api/me", nil, "")
		require.Equal(t, http.StatusOK, w.Code)

		var me entity.User
		require.NoError(t, json.Unmarshal(env.Data, &me))
		assert.Equal(t, f.org.Alice.ID, me.ID)
	})
}

func TestCreateDocument(t *testing.T) {
	f := newFixture(t)

	t.Run("json draft", func(t *testing.T) {
		doc := f.createDraft(t, f.org.Alice, "250.50")

		assert.Equal(t, "draft", doc.Status)
		assert.Equal(t, "250.50", doc.Amount)
		assert.True(t, doc.Permissions.CanEdit)
		assert.True(t, doc.Permissions.CanSubmit)
		assert.Equal(t, []string{"submit"}, doc.AvailableActions)
	})

	t.Run("invalid amount", func(t *testing.T) {
		w, _ := f.doJSON(t, f.org.Alice, http.MethodPost, "/api/documents", DraftRequest{
			Title: "x", Content: "y", Amount: "lots",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		w, _ := f.doJSON(t, f.org.Alice, http.MethodPost, "/api/documents", DraftRequest{
			Title: "   ", Content: "y", Amount: "10",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("multipart with attachment", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("title", "Laptop"))
		require.NoError(t, mw.WriteField("content", "Replacement laptop"))
		require.NoError(t, mw.WriteField("amount", "3200"))
		part, err := mw.CreateFormFile("file", "quote.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 quote"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		w, env := f.do(t, f.org.Alice, http.MethodPost, "/api/documents", &buf, mw.FormDataContentType())
		require.Equal(t, http.StatusCreated, w.Code, env.Error)

		doc := decodeDoc(t, env)
		require.NotNil(t, doc.File)
		assert.True(t, doc.Permissions.CanDownload)

		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/documents/%d/file", doc.ID), nil)
		req.Header.Set(ActorHeader, strconv.FormatInt(f.org.Manager.ID, 10))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "%PDF-1.4 quote", rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	})
}

func TestDocumentAccess(t *testing.T) {
	f := newFixture(t)
	doc := f.createDraft(t, f.org.Alice, "100")
	path := fmt.Sprintf("/api/documents/%d", doc.ID)

	t.Run("other user is forbidden", func(t *testing.T) {
		w, _ := f.do(t, f.org.Bob, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing document", func(t *testing.T) {
		w, _ := f.do(t, f.org.Alice, http.MethodGet, "/api/documents/424242", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w, _ := f.do(t, f.org.Alice, http.MethodGet, "/api/documents/abc", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("owner lists own drafts", func(t *testing.T) {
		w, env := f.do(t, f.org.Alice, http.MethodGet, "/api/documents", nil, "")
		require.Equal(t, http.StatusOK, w.Code)

		var page entity.Page[DocumentResponse]
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, doc.ID, page.Items[0].ID)
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		w, env := f.do(t, f.org.Alice, http.MethodGet, "/api/documents?page=9223372036854775807&per_page=100", nil, "")
		require.Equal(t, http.StatusOK, w.Code, env.Error)

		var page entity.Page[DocumentResponse]
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.Empty(t, page.Items)
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, entity.MaxPage, page.Page)
	})

	t.Run("owner updates and deletes draft", func(t *testing.T) {
		w, env := f.doJSON(t, f.org.Alice, http.MethodPut, path, DraftRequest{
			Title: "Office chairs (6)", Content: "Six chairs", Amount: "150",
		})
		require.Equal(t, http.StatusOK, w.Code, env.Error)
		assert.Equal(t, "Office chairs (6)", decodeDoc(t, env).Title)

		w, _ = f.do(t, f.org.Alice, http.MethodDelete, path, nil, "")
		assert.Equal(t, http.StatusOK, w.Code)

		w, _ = f.do(t, f.org.Alice, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTransition_FullApproval(t *testing.T) {
	f := newFixture(t)
	doc := f.createDraft(t, f.org.Alice, "1500")
	base := fmt.Sprintf("/api/documents/%d", doc.ID)

	w, env := f.do(t, f.org.Alice, http.MethodPost, base+"/submit", nil, "")
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.Equal(t, "pending_manager_approval", decodeDoc(t, env).Status)

	w, env = f.do(t, f.org.Manager, http.MethodGet, "/api/approvals/manager", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var queue entity.Page[DocumentResponse]
	require.NoError(t, json.Unmarshal(env.Data, &queue))
	require.Len(t, queue.Items, 1)
	assert.ElementsMatch(t, []string{"approve_by_manager", "reject_by_manager"}, queue.Items[0].AvailableActions)

	w, env = f.do(t, f.org.Manager, http.MethodPost, base+"/approve-manager", nil, "")
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.Equal(t, "pending_finance_approval", decodeDoc(t, env).Status)

	w, env = f.doJSON(t, f.org.Finance, http.MethodPost, base+"/approve-finance", TransitionRequest{Comment: "ok"})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	final := decodeDoc(t, env)
	assert.Equal(t, "approved", final.Status)
	assert.True(t, final.Permissions.IsFinal)
	assert.Empty(t, final.AvailableActions)

	w, env = f.do(t, f.org.Alice, http.MethodGet, base+"/history", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var history []HistoryResponse
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 3)
	assert.Equal(t, "approved", history[0].NewStatus)

	w, env = f.do(t, f.org.Alice, http.MethodGet, "/api/notifications?unread=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var feed service.Feed
	require.NoError(t, json.Unmarshal(env.Data, &feed))
	require.Len(t, feed.Items, 1)
	assert.Equal(t, entity.NotificationApproved, feed.Items[0].Kind)

	w, _ = f.do(t, f.org.Alice, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", feed.Items[0].ID), nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// a second decision on a final document conflicts
	w, _ = f.do(t, f.org.Finance2, http.MethodPost, base+"/reject-finance", bytes.NewBufferString(`{"comment":"late"}`), "application/json")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTransition_Refusals(t *testing.T) {
	f := newFixture(t)
	doc := f.createDraft(t, f.org.Alice, "200")
	base := fmt.Sprintf("/api/documents/%d", doc.ID)

	w, _ := f.do(t, f.org.Bob, http.MethodPost, base+"/submit", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, f.org.Alice, http.MethodPost, base+"/submit", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	// submit is an owner-draft permission, so a pending document refuses it as forbidden
	w, _ = f.do(t, f.org.Alice, http.MethodPost, base+"/submit", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, f.org.Finance, http.MethodPost, base+"/approve-finance", nil, "")
	assert.Contains(t, []int{http.StatusForbidden, http.StatusConflict}, w.Code)

	w, env := f.doJSON(t, f.org.Manager, http.MethodPost, base+"/reject-manager", TransitionRequest{Comment: "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, env.Success)

	w, env = f.doJSON(t, f.org.Manager, http.MethodPost, base+"/reject-manager", TransitionRequest{Comment: "Over budget"})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	assert.Equal(t, "rejected", decodeDoc(t, env).Status)
}

func TestExportRegister(t *testing.T) {
	f := newFixture(t)
	f.createDraft(t, f.org.Alice, "10")

	w, _ := f.do(t, f.org.Admin, http.MethodGet, "/api/reports/register.xlsx", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())
}

func TestActionRoutes(t *testing.T) {
	assert.Len(t, actionRoutes, 5)
	for path, action := range actionRoutes {
		assert.True(t, action.IsValid(), path)
	}
}
