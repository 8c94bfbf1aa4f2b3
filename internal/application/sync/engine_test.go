package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/fulfillment/internal/domain/order"
	"github.com/erp/fulfillment/internal/infrastructure/marketplace"
)

func okResult(t *testing.T, response any) marketplace.Result {
	t.Helper()
	body, err := json.Marshal(map[string]any{"error": "", "response": response})
	require.NoError(t, err)
	return marketplace.Result{Kind: marketplace.ResultOK, Body: body}
}

func expiredResult() marketplace.Result {
	return marketplace.Result{Kind: marketplace.ResultAuthExpired, Body: []byte(`{"error":"error_auth"}`)}
}

// listPage is one canned response for a (status, cursor) pair.
type listPage struct {
	ids        []string
	more       bool
	nextCursor string
}

// fakeAPI serves canned list/detail/document fixtures and counts calls.
type fakeAPI struct {
	t *testing.T

	pages      map[string]map[string]listPage // status -> cursor -> page
	details    map[string]marketplace.OrderDetail
	docStatus  map[string]string
	expireOnce bool // next list call reports an expired session, once

	listCalls   int
	detailCalls int
	docCalls    int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	return &fakeAPI{
		t:         t,
		pages:     make(map[string]map[string]listPage),
		details:   make(map[string]marketplace.OrderDetail),
		docStatus: make(map[string]string),
	}
}

func (f *fakeAPI) addPage(status, cursor string, page listPage) {
	if f.pages[status] == nil {
		f.pages[status] = make(map[string]listPage)
	}
	f.pages[status][cursor] = page
}

// setOrders wires a single-page bucket and matching detail payloads.
func (f *fakeAPI) setOrders(status string, ids ...string) {
	f.addPage(status, "", listPage{ids: ids})
	for _, id := range ids {
		f.details[id] = marketplace.OrderDetail{
			OrderSN:     id,
			OrderStatus: status,
			UpdateTime:  100,
			ItemList: []marketplace.OrderDetailItem{
				{ItemID: 1, ItemName: "Widget", ModelName: "[3N2] Red", ModelQuantityPurchased: 1},
			},
		}
	}
}

func (f *fakeAPI) ListOrders(_ context.Context, status string, _, _ int64, _ int, cursor string) marketplace.Result {
	f.listCalls++
	if f.expireOnce {
		f.expireOnce = false
		return expiredResult()
	}
	page, ok := f.pages[status][cursor]
	if !ok {
		return okResult(f.t, map[string]any{"order_list": []any{}, "more": false})
	}
	entries := make([]map[string]string, 0, len(page.ids))
	for _, id := range page.ids {
		entries = append(entries, map[string]string{"order_sn": id})
	}
	return okResult(f.t, map[string]any{
		"order_list":  entries,
		"more":        page.more,
		"next_cursor": page.nextCursor,
	})
}

func (f *fakeAPI) GetOrderDetail(_ context.Context, orderSNs []string) marketplace.Result {
	f.detailCalls++
	require.LessOrEqual(f.t, len(orderSNs), 50)
	var list []marketplace.OrderDetail
	for _, sn := range orderSNs {
		if d, ok := f.details[sn]; ok {
			list = append(list, d)
		}
	}
	return okResult(f.t, map[string]any{"order_list": list})
}

func (f *fakeAPI) GetShippingDocumentResult(_ context.Context, orderSNs []string) marketplace.Result {
	f.docCalls++
	var list []map[string]string
	for _, sn := range orderSNs {
		status, ok := f.docStatus[sn]
		if !ok {
			status = marketplace.DocumentStatusProcessing
		}
		list = append(list, map[string]string{"order_sn": sn, "status": status})
	}
	return okResult(f.t, map[string]any{"result_list": list})
}

// fakeSession controls token presence and refresh outcomes.
type fakeSession struct {
	hasToken   bool
	refreshErr error
	refreshes  int
}

func (s *fakeSession) HasToken() bool { return s.hasToken }

func (s *fakeSession) Refresh(context.Context) error {
	s.refreshes++
	return s.refreshErr
}

func newTestEngine(api *fakeAPI, session *fakeSession, store *order.Store) *Engine {
	return NewEngine(Config{LookbackDays: 15, PageSize: 50}, api, session, store, zap.NewNop())
}

func TestRunMergesNewOrders(t *testing.T) {
	api := newFakeAPI(t)
	api.setOrders(marketplace.OrderStatusReadyToShip, "SN001", "SN002")
	api.setOrders(marketplace.OrderStatusProcessed, "SN003")

	store := order.NewStore()
	engine := newTestEngine(api, &fakeSession{hasToken: true}, store)

	require.NoError(t, engine.Run(context.Background()))
	assert.Equal(t, 3, store.Len())

	o, ok := store.Find("SN001")
	require.True(t, ok)
	assert.Equal(t, order.StatusUnprocessed, o.Status)
	require.Len(t, o.Items, 1)
	require.NotNil(t, o.Items[0].Location)
	assert.Equal(t, "3", o.Items[0].Location.Shelf)

	shipped, ok := store.Find("SN003")
	require.True(t, ok)
	assert.Equal(t, order.StatusProcessed, shipped.Status)
}

func TestRunIsIdempotent(t *testing.T) {
	api := newFakeAPI(t)
	api.setOrders(marketplace.OrderStatusReadyToShip, "SN001", "SN002")

	store := order.NewStore()
	engine := newTestEngine(api, &fakeSession{hasToken: true}, store)

	require.NoError(t, engine.Run(context.Background()))
	firstDetailCalls := api.detailCalls

	require.NoError(t, engine.Run(context.Background()))
	assert.Equal(t, 2, store.Len())
	// The second cycle found nothing new, so no detail fetch happened
	assert.Equal(t, firstDetailCalls, api.detailCalls)
}

func TestRunPaginatesWithCursor(t *testing.T) {
	api := newFakeAPI(t)
	api.addPage(marketplace.OrderStatusReadyToShip, "", listPage{ids: []string{"SN001"}, more: true, nextCursor: "50"})
	api.addPage(marketplace.OrderStatusReadyToShip, "50", listPage{ids: []string{"SN002"}, more: true, nextCursor: "100"})
	api.addPage(marketplace.OrderStatusReadyToShip, "100", listPage{ids: []string{"SN003"}})
	for _, id := range []string{"SN001", "SN002", "SN003"} {
		api.details[id] = marketplace.OrderDetail{OrderSN: id, UpdateTime: 100}
	}

	store := order.NewStore()
	engine := newTestEngine(api, &fakeSession{hasToken: true}, store)

	require.NoError(t, engine.Run(context.Background()))
	assert.Equal(t, 3, store.Len())
}

func TestRunReconcilesPerBucket(t *testing.T) {
	api := newFakeAPI(t)
	api.setOrders(marketplace.OrderStatusReadyToShip, "SN002")
	api.setOrders(marketplace.OrderStatusProcessed, "SN003")

	store := order.NewStore()
	// SN001 vanished from the unprocessed bucket remotely
	store.UpsertIfAbsent(order.Order{ID: "SN001", Status: order.StatusUnprocessed})
	// SN003 stays processed; its absence from the unprocessed bucket must not evict it
	store.UpsertIfAbsent(order.Order{ID: "SN003", Status: order.StatusProcessed})

	engine := newTestEngine(api, &fakeSession{hasToken: true}, store)
	require.NoError(t, engine.Run(context.Background()))

	assert.False(t, store.Has("SN001"))
	assert.True(t, store.Has("SN002"))
	assert.True(t, store.Has("SN003"))
}

func TestRunRefreshesOnceAndRetries(t *testing.T) {
	api := newFakeAPI(t)
	api.setOrders(marketplace.OrderStatusReadyToShip, "SN001")
	api.expireOnce = true

	session := &fakeSession{hasToken: true}
	store := order.NewStore()
	engine := newTestEngine(api, session, store)

	require.NoError(t, engine.Run(context.Background()))
	assert.Equal(t, 1, session.refreshes)
	assert.True(t, store.Has("SN001"))
}

func TestRunAbortsBeforeMergeOnRefreshFailure(t *testing.T) {
	api := newFakeAPI(t)
	api.setOrders(marketplace.OrderStatusReadyToShip, "SN001")
	api.expireOnce = true

	session := &fakeSession{hasToken: true, refreshErr: errors.New("refresh rejected")}
	store := order.NewStore()
	store.UpsertIfAbsent(order.Order{ID: "SN900", Status: order.StatusUnprocessed})

	engine := newTestEngine(api, session, store)
	err := engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrSyncAborted)

	// Nothing was merged or reconciled
	assert.False(t, store.Has("SN001"))
	assert.True(t, store.Has("SN900"))
	assert.Equal(t, 0, api.detailCalls)
}

func TestRunSkipsWithoutSession(t *testing.T) {
	api := newFakeAPI(t)
	engine := newTestEngine(api, &fakeSession{hasToken: false}, order.NewStore())

	err := engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Equal(t, 0, api.listCalls)
}

func TestRunMarksPrintedFromDocumentStatus(t *testing.T) {
	api := newFakeAPI(t)
	api.setOrders(marketplace.OrderStatusProcessed, "SN001", "SN002")
	api.docStatus["SN001"] = marketplace.DocumentStatusReady
	api.docStatus["SN002"] = marketplace.DocumentStatusProcessing

	store := order.NewStore()
	engine := newTestEngine(api, &fakeSession{hasToken: true}, store)
	require.NoError(t, engine.Run(context.Background()))

	ready, _ := store.Find("SN001")
	assert.True(t, ready.Printed)
	pending, _ := store.Find("SN002")
	assert.False(t, pending.Printed)
}

func TestRunNeverDemotesPrinted(t *testing.T) {
	api := newFakeAPI(t)
	api.setOrders(marketplace.OrderStatusProcessed, "SN001")
	api.docStatus["SN001"] = marketplace.DocumentStatusFailed

	store := order.NewStore()
	store.UpsertIfAbsent(order.Order{ID: "SN001", Status: order.StatusProcessed, Printed: true})

	engine := newTestEngine(api, &fakeSession{hasToken: true}, store)
	require.NoError(t, engine.Run(context.Background()))

	o, _ := store.Find("SN001")
	assert.True(t, o.Printed)
}

func TestRunBatchesDetailCalls(t *testing.T) {
	api := newFakeAPI(t)
	ids := make([]string, 0, 120)
	for i := 0; i < 120; i++ {
		ids = append(ids, fmt.Sprintf("SN%03d", i))
	}
	api.setOrders(marketplace.OrderStatusReadyToShip, ids...)

	store := order.NewStore()
	engine := newTestEngine(api, &fakeSession{hasToken: true}, store)
	require.NoError(t, engine.Run(context.Background()))

	assert.Equal(t, 120, store.Len())
	assert.Equal(t, 3, api.detailCalls)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk(nil, 50))
	assert.Len(t, chunk([]string{"a"}, 50), 1)

	batches := chunk([]string{"a", "b", "c"}, 2)
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"a", "b"}, batches[0])
	assert.Equal(t, []string{"c"}, batches[1])
}
