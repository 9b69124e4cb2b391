package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/garyjia/doc-approval/internal/application/dispatcher"
	"github.com/garyjia/doc-approval/internal/application/port"
	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/event"
	domainwf "github.com/garyjia/doc-approval/internal/domain/workflow"
)

type mockDocumentRepo struct {
	docs       map[int64]*entity.Document
	nextID     int64
	createErr  error
	listFilter port.DocumentFilter
	listPage   entity.Pagination
	listFunc   func(ctx context.Context, filter port.DocumentFilter, page entity.Pagination) ([]*entity.Document, int, error)
	updateFunc func(ctx context.Context, doc *entity.Document) (bool, error)
	deletedIDs []int64
}

func newMockDocumentRepo(docs ...*entity.Document) *mockDocumentRepo {
	m := &mockDocumentRepo{docs: make(map[int64]*entity.Document), nextID: 100}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	doc.ID = m.nextID
	doc.Version = 1
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *mockDocumentRepo) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *mockDocumentRepo) UpdateDraft(ctx context.Context, doc *entity.Document) (bool, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, doc)
	}
	doc.Version++
	cp := *doc
	m.docs[doc.ID] = &cp
	return true, nil
}

func (m *mockDocumentRepo) CompareAndSwapStatus(ctx context.Context, id int64, from domainwf.State, version int64, to domainwf.State, at time.Time) (bool, error) {
	return false, errors.New("not used")
}

func (m *mockDocumentRepo) Delete(ctx context.Context, id int64) error {
	m.deletedIDs = append(m.deletedIDs, id)
	delete(m.docs, id)
	return nil
}

func (m *mockDocumentRepo) List(ctx context.Context, filter port.DocumentFilter, page entity.Pagination) ([]*entity.Document, int, error) {
	m.listFilter = filter
	m.listPage = page
	if m.listFunc != nil {
		return m.listFunc(ctx, filter, page)
	}
	return nil, 0, nil
}

type mockHistoryRepo struct {
	appendFunc func(ctx context.Context, record *entity.TransitionRecord) error
	records    []*entity.TransitionRecord
}

func (m *mockHistoryRepo) Append(ctx context.Context, record *entity.TransitionRecord) error {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, record)
	}
	m.records = append(m.records, record)
	return nil
}

func (m *mockHistoryRepo) ListByDocument(ctx context.Context, documentID int64) ([]*entity.TransitionRecord, error) {
	var out []*entity.TransitionRecord
	for _, r := range m.records {
		if r.DocumentID == documentID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockUserRepo struct {
	users   map[int64]*entity.User
	listErr error
}

func newMockUserRepo(users ...*entity.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[int64]*entity.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) ListByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*entity.User
	for id := int64(1); id <= int64(len(m.users))+10; id++ {
		if u, ok := m.users[id]; ok && u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) ListSubordinates(ctx context.Context, managerID int64) ([]*entity.User, error) {
	return nil, nil
}

type mockNotificationRepo struct {
	listFunc     func(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*entity.Notification, error)
	markReadFunc func(ctx context.Context, id, userID int64) (bool, error)
	unread       int
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	return nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*entity.Notification, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID, unreadOnly, limit)
	}
	return nil, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID int64) (bool, error) {
	if m.markReadFunc != nil {
		return m.markReadFunc(ctx, id, userID)
	}
	return true, nil
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	return m.unread, nil
}

// mockAttachmentStore keeps blobs in memory
type mockAttachmentStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	storeErr error
	seq      int
	deleted  []string
}

func newMockAttachmentStore() *mockAttachmentStore {
	return &mockAttachmentStore{blobs: make(map[string][]byte)}
}

func (m *mockAttachmentStore) Store(ctx context.Context, content io.Reader, filename string) (string, error) {
	if m.storeErr != nil {
		return "", m.storeErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ref := fmt.Sprintf("documents/%d-%s", m.seq, filename)
	m.blobs[ref] = data
	return ref, nil
}

func (m *mockAttachmentStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[ref]
	if !ok {
		return nil, errors.New("no such attachment")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockAttachmentStore) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ref)
	delete(m.blobs, ref)
	return nil
}

func (m *mockAttachmentStore) Exists(ctx context.Context, ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[ref]
	return ok
}

func (m *mockAttachmentStore) SizeOf(ctx context.Context, ref string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[ref]
	if !ok {
		return 0, errors.New("no such attachment")
	}
	return int64(len(data)), nil
}

type mockTxManager struct {
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return m.commitErr
}

type mockDispatcher struct {
	events []*event.Event
}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Publish(ctx context.Context, evt *event.Event) {
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) Close() error {
	return nil
}

type mockEngine struct {
	applyFunc func(ctx context.Context, doc *entity.Document, actor *entity.User, action domainwf.Trigger, comment string) (*entity.Document, error)
}

func (m *mockEngine) Apply(ctx context.Context, doc *entity.Document, actor *entity.User, action domainwf.Trigger, comment string) (*entity.Document, error) {
	if m.applyFunc != nil {
		return m.applyFunc(ctx, doc, actor, action, comment)
	}
	return doc, nil
}

func (m *mockEngine) AvailableActions(ctx context.Context, doc *entity.Document, actor *entity.User) []domainwf.Trigger {
	return []domainwf.Trigger{domainwf.TriggerSubmit}
}

// people used across tests
var (
	mgrID     = int64(2)
	manager   = &entity.User{ID: 2, Name: "Marta Manager", Email: "marta@example.com", Role: entity.RoleManager}
	owner     = &entity.User{ID: 5, Name: "Adam Owner", Email: "adam@example.com", Role: entity.RoleUser, ManagerID: &mgrID, LarkOpenID: "ou_adam"}
	stranger  = &entity.User{ID: 6, Name: "Ewa Stranger", Email: "ewa@example.com", Role: entity.RoleUser}
	finance1  = &entity.User{ID: 3, Name: "Fin One", Email: "fin1@example.com", Role: entity.RoleFinance}
	finance2  = &entity.User{ID: 4, Name: "Fin Two", Email: "fin2@example.com", Role: entity.RoleFinance}
	adminUser = &entity.User{ID: 1, Name: "Admin", Email: "admin@example.com", Role: entity.RoleAdmin}
)

func draftDoc(id int64) *entity.Document {
	return &entity.Document{
		ID:             id,
		UserID:         owner.ID,
		Title:          "Monitor",
		Content:        "27 inch monitor",
		Status:         domainwf.StateDraft,
		Version:        1,
		OwnerName:      owner.Name,
		OwnerManagerID: &mgrID,
	}
}
