package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tnqbao/gau-vm-orchestrator/config"
	"github.com/tnqbao/gau-vm-orchestrator/dto"
	"github.com/tnqbao/gau-vm-orchestrator/entity"
	"github.com/tnqbao/gau-vm-orchestrator/infra"
	"github.com/tnqbao/gau-vm-orchestrator/infra/produce"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/repository"
)

const testSubscription = "00000000-0000-0000-0000-000000000001"

type memoryKeyStore struct {
	mu       sync.Mutex
	pairs    map[string]infra.SSHKeyPair
	stores   int
	fetches  int
	storeErr error
}

func newMemoryKeyStore() *memoryKeyStore {
	return &memoryKeyStore{pairs: map[string]infra.SSHKeyPair{}}
}

func (m *memoryKeyStore) StoreKeyPair(_ context.Context, vmName string, pair infra.SSHKeyPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores++
	if m.storeErr != nil {
		return m.storeErr
	}
	m.pairs[vmName] = pair
	return nil
}

func (m *memoryKeyStore) FetchKeyPair(_ context.Context, vmName string) (*infra.SSHKeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	pair, ok := m.pairs[vmName]
	if !ok {
		return nil, infra.ErrKeyNotFound
	}
	return &pair, nil
}

func (m *memoryKeyStore) DeleteKeyPair(_ context.Context, vmName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pairs, vmName)
	return nil
}

func (m *memoryKeyStore) Ping(context.Context) error {
	return nil
}

func (m *memoryKeyStore) pair(vmName string) (infra.SSHKeyPair, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pair, ok := m.pairs[vmName]
	return pair, ok
}

type recordingPublisher struct {
	err        error
	provisions []produce.ProvisionMessage
	executions []produce.ExecutionMessage
}

func (p *recordingPublisher) PublishProvision(_ context.Context, msg produce.ProvisionMessage) error {
	if p.err != nil {
		return p.err
	}
	p.provisions = append(p.provisions, msg)
	return nil
}

func (p *recordingPublisher) PublishExecution(_ context.Context, msg produce.ExecutionMessage) error {
	if p.err != nil {
		return p.err
	}
	p.executions = append(p.executions, msg)
	return nil
}

type lifecycle struct {
	ctrl      *Controller
	db        *gorm.DB
	keys      *memoryKeyStore
	publisher *recordingPublisher
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&entity.VM{}, &entity.Operation{}))
	return db
}

func newLifecycle(t *testing.T) *lifecycle {
	t.Helper()
	env := &config.EnvConfig{}
	env.Azure.SubscriptionID = testSubscription

	db := openTestDB(t)
	keys := newMemoryKeyStore()
	publisher := &recordingPublisher{}

	ctrl := newTestController(env)
	ctrl.Repository = repository.NewRepository(db)
	ctrl.Infra.Postgres = &infra.PostgresClient{DB: db}
	ctrl.Infra.KeyStore = keys
	ctrl.Infra.KeyStoreErr = nil
	ctrl.Infra.Produce = &produce.Produce{VMService: publisher}

	return &lifecycle{ctrl: ctrl, db: db, keys: keys, publisher: publisher}
}

func (l *lifecycle) seedVM(t *testing.T, name string, status entity.VMStatus, owner uuid.UUID) *entity.VM {
	t.Helper()
	vm := &entity.VM{
		ID:            uuid.New(),
		Name:          name,
		Kind:          entity.VMKindStandard,
		Region:        "eastus",
		Size:          "Standard_B1s",
		Status:        status,
		ResourceGroup: produce.ResourceGroupName(name),
		Tags:          datatypes.NewJSONType(map[string]string{"Project": "VM-Management"}),
		OwnerID:       owner,
		CreatedAt:     "2026-01-01T00:00:00Z",
	}
	require.NoError(t, l.db.Create(vm).Error)
	return vm
}

func (l *lifecycle) reload(t *testing.T, name string) *entity.VM {
	t.Helper()
	var vm entity.VM
	require.NoError(t, l.db.Where("name = ?", name).First(&vm).Error)
	return &vm
}

func (l *lifecycle) operations(t *testing.T, name string) []entity.Operation {
	t.Helper()
	var ops []entity.Operation
	require.NoError(t, l.db.Where("vm_name = ?", name).Find(&ops).Error)
	return ops
}

func (l *lifecycle) vmCount(t *testing.T, name string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, l.db.Model(&entity.VM{}).Where("name = ?", name).Count(&n).Error)
	return n
}

// serveAs runs handler with the claims the JWT middleware would inject.
func serveAs(userID, permission, method, route, target, body string, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
			c.Set("permission", permission)
		}
		c.Next()
	}, handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), into), w.Body.String())
}

func TestCreateVMStoresKeyPairAfterRecording(t *testing.T) {
	l := newLifecycle(t)

	w := serveAs("", "", http.MethodPost, "/vms", "/vms",
		`{"name":"web2","region":"eastus","size":"small"}`, l.ctrl.CreateVM)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, entity.VMStatusCreating, l.reload(t, "web2").Status)

	ops := l.operations(t, "web2")
	require.Len(t, ops, 1)
	assert.Equal(t, entity.OperationStatusPending, ops[0].Status)

	pair, ok := l.keys.pair("web2")
	require.True(t, ok)
	require.Len(t, l.publisher.provisions, 1)
	msg := l.publisher.provisions[0]
	assert.Equal(t, pair.PublicKey, msg.SSHPublicKey)
	assert.Equal(t, ops[0].ID.String(), msg.OperationID)
}

func TestCreateVMDuplicateNameKeepsExistingKeyPair(t *testing.T) {
	l := newLifecycle(t)
	l.seedVM(t, "web1", entity.VMStatusRunning, uuid.Nil)
	original := infra.SSHKeyPair{PrivateKey: "original-private", PublicKey: "original-public"}
	l.keys.pairs["web1"] = original

	w := serveAs("", "", http.MethodPost, "/vms", "/vms",
		`{"name":"web1","region":"eastus","size":"small"}`, l.ctrl.CreateVM)

	assert.Equal(t, http.StatusConflict, w.Code)
	pair, ok := l.keys.pair("web1")
	require.True(t, ok)
	assert.Equal(t, original, pair)
	assert.Zero(t, l.keys.stores)
	assert.Empty(t, l.publisher.provisions)
	assert.Empty(t, l.operations(t, "web1"))
}

func TestCreateVMRejectsNamesThatAliasAnotherVM(t *testing.T) {
	l := newLifecycle(t)
	l.seedVM(t, "web1", entity.VMStatusRunning, uuid.Nil)
	l.keys.pairs["web1"] = infra.SSHKeyPair{PrivateKey: "original-private", PublicKey: "original-public"}

	for _, name := range []string{"web1/", "x/../web1", "./web1"} {
		w := serveAs("", "", http.MethodPost, "/vms", "/vms",
			`{"name":"`+name+`","region":"eastus","size":"small"}`, l.ctrl.CreateVM)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, name)
	}
	assert.Zero(t, l.keys.stores)
	assert.Equal(t, "original-private", l.keys.pairs["web1"].PrivateKey)
}

func TestSubmitProvisionRejectsTakenNameForEveryCreate(t *testing.T) {
	for _, action := range []produce.Action{produce.ActionCreate, produce.ActionCreateKyubo, produce.ActionCreateSolo} {
		l := newLifecycle(t)
		l.seedVM(t, "kyubo-acme-prod-1a2b3c4d", entity.VMStatusRunning, uuid.Nil)
		l.keys.pairs["kyubo-acme-prod-1a2b3c4d"] = infra.SSHKeyPair{PrivateKey: "kept"}

		reg := registry.Default()
		spec := produce.VMSpec{Name: "kyubo-acme-prod-1a2b3c4d", Region: "westus2", Size: "Standard_B2s"}

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/kyubo", nil)

		op, ok := l.ctrl.submitProvision(c, "Kyubo", provisionJob{
			reg:            reg,
			subscriptionID: testSubscription,
			action:         action,
			spec:           spec,
			request:        map[string]string{"name": spec.Name},
			vm:             &entity.VM{ID: uuid.New(), Name: spec.Name, Region: spec.Region, Size: spec.Size, CreatedAt: now()},
			status:         entity.VMStatusCreating,
		})

		assert.False(t, ok, action)
		assert.Nil(t, op, action)
		assert.Equal(t, http.StatusConflict, w.Code, action)
		assert.Equal(t, "kept", l.keys.pairs[spec.Name].PrivateKey, action)
		assert.Zero(t, l.keys.stores, action)
		assert.Equal(t, int64(1), l.vmCount(t, spec.Name), action)
	}
}

func TestCreateVMPublishFailureRollsBack(t *testing.T) {
	l := newLifecycle(t)
	l.publisher.err = errors.New("broker unreachable")

	w := serveAs("", "", http.MethodPost, "/vms", "/vms",
		`{"name":"web3","region":"eastus","size":"small"}`, l.ctrl.CreateVM)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, l.vmCount(t, "web3"))
	_, ok := l.keys.pair("web3")
	assert.False(t, ok)

	ops := l.operations(t, "web3")
	require.Len(t, ops, 1)
	assert.Equal(t, entity.OperationStatusFailed, ops[0].Status)
	assert.Equal(t, "broker unreachable", ops[0].Message)

	l.publisher.err = nil
	w = serveAs("", "", http.MethodPost, "/vms", "/vms",
		`{"name":"web3","region":"eastus","size":"small"}`, l.ctrl.CreateVM)
	assert.Equal(t, http.StatusAccepted, w.Code, "name must be reusable after a rollback")
}

func TestCreateVMKeyStoreFailureRollsBack(t *testing.T) {
	l := newLifecycle(t)
	l.keys.storeErr = errors.New("bucket is read-only")

	w := serveAs("", "", http.MethodPost, "/vms", "/vms",
		`{"name":"web4","region":"eastus","size":"small"}`, l.ctrl.CreateVM)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, l.vmCount(t, "web4"))
	assert.Empty(t, l.publisher.provisions)

	ops := l.operations(t, "web4")
	require.Len(t, ops, 1)
	assert.Equal(t, entity.OperationStatusFailed, ops[0].Status)
}

func TestCreateKyuboVMDuplicateRequestID(t *testing.T) {
	l := newLifecycle(t)
	vm := l.seedVM(t, "kyubo-acme-prod-00000000", entity.VMStatusRunning, uuid.Nil)
	require.NoError(t, l.db.Model(vm).Update("request_id", "r-1").Error)

	body := `{"tenant":"acme","region":"westus2","max_concurrent_sessions":5,"request_id":"r-1","entorno":"prod"}`
	w := serveAs("", "", http.MethodPost, "/kyubo", "/kyubo", body, l.ctrl.CreateKyuboVM)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = serveAs("", "", http.MethodPost, "/kyubo", "/kyubo",
		strings.Replace(body, `"r-1"`, `"r-2"`, 1), l.ctrl.CreateKyuboVM)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp dto.KyuboVMResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "creating", resp.Status)
	require.Len(t, l.publisher.provisions, 1)
	name := l.publisher.provisions[0].VMName
	assert.True(t, strings.HasPrefix(name, "kyubo-acme-prod-"), name)
	_, ok := l.keys.pair(name)
	assert.True(t, ok)
}

func TestCreateKyuboVMEmptyRequestIDIsRejected(t *testing.T) {
	l := newLifecycle(t)
	l.seedVM(t, "web1", entity.VMStatusRunning, uuid.Nil)

	w := serveAs("", "", http.MethodPost, "/kyubo", "/kyubo",
		`{"tenant":"acme","region":"westus2","max_concurrent_sessions":5,"request_id":"","entorno":"prod"}`,
		l.ctrl.CreateKyuboVM)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp map[string]any
	decodeBody(t, w, &resp)
	details := resp["details"].(map[string]any)
	assert.Equal(t, "RequiredFieldMissing", details["kind"])
	assert.Equal(t, "request_id", details["field"])
}

func TestUpdateVMWithoutTagsIsNoop(t *testing.T) {
	l := newLifecycle(t)
	l.seedVM(t, "web1", entity.VMStatusCreating, uuid.Nil)

	w := serveAs("", "", http.MethodPatch, "/vms/:name", "/vms/web1", `{}`, l.ctrl.UpdateVM)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, l.publisher.provisions)
	assert.Equal(t, entity.VMStatusCreating, l.reload(t, "web1").Status)
}

func TestUpdateVMBusyIsConflict(t *testing.T) {
	l := newLifecycle(t)

	for _, status := range []entity.VMStatus{entity.VMStatusCreating, entity.VMStatusUpdating, entity.VMStatusResizing, entity.VMStatusDeleting} {
		name := "vm-" + string(status)
		l.seedVM(t, name, status, uuid.Nil)

		w := serveAs("", "", http.MethodPatch, "/vms/:name", "/vms/"+name, `{"tags":{"team":"infra"}}`, l.ctrl.UpdateVM)
		assert.Equal(t, http.StatusConflict, w.Code, status)

		w = serveAs("", "", http.MethodPost, "/vms/:name/resize", "/vms/"+name+"/resize", `{"size":"medium"}`, l.ctrl.ResizeVM)
		assert.Equal(t, http.StatusConflict, w.Code, status)
	}
	assert.Empty(t, l.publisher.provisions)
}

func TestUpdateVMKeepsTagsUntilSettled(t *testing.T) {
	l := newLifecycle(t)
	l.seedVM(t, "web1", entity.VMStatusRunning, uuid.Nil)

	w := serveAs("", "", http.MethodPatch, "/vms/:name", "/vms/web1", `{"tags":{"team":"infra"}}`, l.ctrl.UpdateVM)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	vm := l.reload(t, "web1")
	assert.Equal(t, entity.VMStatusUpdating, vm.Status)
	assert.Equal(t, map[string]string{"Project": "VM-Management"}, vm.Tags.Data())
	require.Len(t, l.publisher.provisions, 1)
	assert.Equal(t, "infra", l.publisher.provisions[0].Tags["team"])
}

func TestUpdateVMPublishFailureRestoresRecord(t *testing.T) {
	l := newLifecycle(t)
	l.seedVM(t, "web1", entity.VMStatusError, uuid.Nil)
	l.publisher.err = errors.New("broker unreachable")

	w := serveAs("", "", http.MethodPatch, "/vms/:name", "/vms/web1", `{"tags":{"team":"infra"}}`, l.ctrl.UpdateVM)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	vm := l.reload(t, "web1")
	assert.Equal(t, entity.VMStatusError, vm.Status)
	assert.Equal(t, map[string]string{"Project": "VM-Management"}, vm.Tags.Data())

	ops := l.operations(t, "web1")
	require.Len(t, ops, 1)
	assert.Equal(t, entity.OperationStatusFailed, ops[0].Status)
}

func TestResizeVMToSameSizeIsNoop(t *testing.T) {
	l := newLifecycle(t)
	l.seedVM(t, "web1", entity.VMStatusRunning, uuid.Nil)

	for _, size := range []string{"small", "Standard_B1s"} {
		w := serveAs("", "", http.MethodPost, "/vms/:name/resize", "/vms/web1/resize", `{"size":"`+size+`"}`, l.ctrl.ResizeVM)
		assert.Equal(t, http.StatusOK, w.Code, size)
	}
	assert.Empty(t, l.publisher.provisions)
	assert.Empty(t, l.operations(t, "web1"))
}

func TestResizeVMKeepsSizeUntilSettled(t *testing.T) {
	l := newLifecycle(t)
	l.seedVM(t, "web1", entity.VMStatusRunning, uuid.Nil)

	w := serveAs("", "", http.MethodPost, "/vms/:name/resize", "/vms/web1/resize", `{"size":"medium"}`, l.ctrl.ResizeVM)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	vm := l.reload(t, "web1")
	assert.Equal(t, entity.VMStatusResizing, vm.Status)
	assert.Equal(t, "Standard_B1s", vm.Size)
	require.Len(t, l.publisher.provisions, 1)
	assert.Equal(t, "Standard_B2s", l.publisher.provisions[0].Size)

	l.publisher.err = errors.New("broker unreachable")
	l.seedVM(t, "web2", entity.VMStatusRunning, uuid.Nil)
	w = serveAs("", "", http.MethodPost, "/vms/:name/resize", "/vms/web2/resize", `{"size":"large"}`, l.ctrl.ResizeVM)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	vm = l.reload(t, "web2")
	assert.Equal(t, entity.VMStatusRunning, vm.Status)
	assert.Equal(t, "Standard_B1s", vm.Size)
}

func TestVMLookupsAreScopedToOwner(t *testing.T) {
	l := newLifecycle(t)
	owner, other := uuid.New(), uuid.New()
	l.seedVM(t, "web1", entity.VMStatusRunning, owner)
	l.keys.pairs["web1"] = infra.SSHKeyPair{PrivateKey: "secret", PublicKey: "public"}

	w := serveAs(other.String(), "", http.MethodGet, "/vms/:name", "/vms/web1", "", l.ctrl.GetVM)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serveAs(other.String(), "", http.MethodGet, "/vms/:name/ssh-key", "/vms/web1/ssh-key", "", l.ctrl.GetSSHKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.Zero(t, l.keys.fetches)

	w = serveAs(other.String(), "", http.MethodPost, "/vms/:name/resize", "/vms/web1/resize", `{"size":"medium"}`, l.ctrl.ResizeVM)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, l.publisher.provisions)

	w = serveAs(owner.String(), "", http.MethodGet, "/vms/:name", "/vms/web1", "", l.ctrl.GetVM)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serveAs(other.String(), "admin", http.MethodGet, "/vms/:name", "/vms/web1", "", l.ctrl.GetVM)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListVMsIsScopedToOwner(t *testing.T) {
	l := newLifecycle(t)
	owner, other := uuid.New(), uuid.New()
	l.seedVM(t, "web1", entity.VMStatusRunning, owner)
	l.seedVM(t, "web2", entity.VMStatusRunning, other)

	for user, want := range map[string][]string{owner.String(): {"web1"}, other.String(): {"web2"}} {
		w := serveAs(user, "", http.MethodGet, "/vms", "/vms", "", l.ctrl.ListVMs)
		require.Equal(t, http.StatusOK, w.Code)

		var vms []dto.VMResponse
		decodeBody(t, w, &vms)
		names := make([]string, 0, len(vms))
		for _, vm := range vms {
			names = append(names, vm.Name)
		}
		assert.Equal(t, want, names)
		assert.Equal(t, "1", w.Header().Get("X-Total-Count"))
	}

	w := serveAs(owner.String(), "admin", http.MethodGet, "/vms", "/vms", "", l.ctrl.ListVMs)
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))
}

func TestOperationsAreScopedToOwner(t *testing.T) {
	l := newLifecycle(t)
	owner, other := uuid.New(), uuid.New()

	op, err := newOperation("create", "web1", map[string]string{"name": "web1"}, owner)
	require.NoError(t, err)
	require.NoError(t, l.db.Create(op).Error)

	w := serveAs(other.String(), "", http.MethodGet, "/operations/:id", "/operations/"+op.ID.String(), "", l.ctrl.GetOperation)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serveAs(owner.String(), "", http.MethodGet, "/operations/:id", "/operations/"+op.ID.String(), "", l.ctrl.GetOperation)
	assert.Equal(t, http.StatusOK, w.Code)

	var ops []dto.OperationResponse
	w = serveAs(other.String(), "", http.MethodGet, "/vms/:name/operations", "/vms/web1/operations", "", l.ctrl.ListVMOperations)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &ops)
	assert.Empty(t, ops)

	w = serveAs(owner.String(), "", http.MethodGet, "/vms/:name/operations", "/vms/web1/operations", "", l.ctrl.ListVMOperations)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &ops)
	require.Len(t, ops, 1)
	require.NotNil(t, ops[0].OperationID)
	assert.Equal(t, op.ID.String(), *ops[0].OperationID)
}
