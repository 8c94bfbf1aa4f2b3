// Package sync implements the periodic reconciliation between the
// marketplace order book and the local order store.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/fulfillment/internal/domain/order"
	"github.com/erp/fulfillment/internal/infrastructure/marketplace"
)

// detailBatchSize is the platform cap on order ids per detail request.
const detailBatchSize = 50

var (
	// ErrSyncAborted marks a cycle stopped before any merge happened.
	ErrSyncAborted = errors.New("sync: cycle aborted")
	// ErrNotAuthorized marks a cycle skipped for lack of a session.
	ErrNotAuthorized = errors.New("sync: no marketplace session")
)

// MarketplaceAPI is the slice of the marketplace client the engine uses.
type MarketplaceAPI interface {
	ListOrders(ctx context.Context, status string, timeFrom, timeTo int64, pageSize int, cursor string) marketplace.Result
	GetOrderDetail(ctx context.Context, orderSNs []string) marketplace.Result
	GetShippingDocumentResult(ctx context.Context, orderSNs []string) marketplace.Result
}

// SessionSource owns the shop session the engine operates under.
type SessionSource interface {
	HasToken() bool
	Refresh(ctx context.Context) error
}

// Config holds the engine's tunables.
type Config struct {
	LookbackDays int
	PageSize     int
}

// bucket binds a local status to the remote list filter that feeds it.
type bucket struct {
	local  order.Status
	remote string
}

var buckets = []bucket{
	{local: order.StatusUnprocessed, remote: marketplace.OrderStatusReadyToShip},
	{local: order.StatusProcessed, remote: marketplace.OrderStatusProcessed},
}

// Engine runs one reconciliation cycle at a time. Cycles share no state
// beyond the order store, so overlapping runs stay safe.
type Engine struct {
	config  Config
	api     MarketplaceAPI
	session SessionSource
	store   *order.Store
	logger  *zap.Logger
}

// NewEngine creates a sync engine.
func NewEngine(config Config, api MarketplaceAPI, session SessionSource, store *order.Store, logger *zap.Logger) *Engine {
	if config.LookbackDays <= 0 {
		config.LookbackDays = 15
	}
	if config.PageSize <= 0 {
		config.PageSize = detailBatchSize
	}
	return &Engine{
		config:  config,
		api:     api,
		session: session,
		store:   store,
		logger:  logger,
	}
}

// Run executes one full sync cycle: list both buckets, reconcile the
// store, fetch details for new orders, then reconcile printed flags.
// Both buckets are fetched completely before anything is merged, so an
// aborted cycle leaves the store untouched.
func (e *Engine) Run(ctx context.Context) error {
	if !e.session.HasToken() {
		e.logger.Debug("Sync skipped, not authorized")
		return ErrNotAuthorized
	}

	start := time.Now()
	timeTo := start.Unix()
	timeFrom := start.AddDate(0, 0, -e.config.LookbackDays).Unix()

	live := make(map[order.Status]map[string]bool, len(buckets))
	for _, b := range buckets {
		ids, err := e.fetchBucketIDs(ctx, b.remote, timeFrom, timeTo)
		if err != nil {
			e.logger.Warn("Sync cycle aborted",
				zap.String("bucket", b.remote),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %v", ErrSyncAborted, err)
		}
		live[b.local] = ids
	}

	removed := e.reconcile(live)
	added := 0
	for _, b := range buckets {
		n, err := e.mergeNewOrders(ctx, b, live[b.local])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSyncAborted, err)
		}
		added += n
	}

	e.reconcilePrinted(ctx)

	e.logger.Info("Sync cycle finished",
		zap.Int("added", added),
		zap.Int("removed", removed),
		zap.Int("known", e.store.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// callWithAuthRetry performs a marketplace call and, when the session
// looks expired, refreshes once and retries the same call once. A failed
// refresh is terminal for the cycle.
func (e *Engine) callWithAuthRetry(ctx context.Context, call func() marketplace.Result) (marketplace.Result, error) {
	result := call()
	if !result.AuthExpired() {
		return result, nil
	}

	e.logger.Info("Session expired mid-sync, refreshing token")
	if err := e.session.Refresh(ctx); err != nil {
		return result, fmt.Errorf("refresh failed: %w", err)
	}

	return call(), nil
}

// fetchBucketIDs pages through one remote status bucket and returns the
// complete live id set.
func (e *Engine) fetchBucketIDs(ctx context.Context, remoteStatus string, timeFrom, timeTo int64) (map[string]bool, error) {
	ids := make(map[string]bool)
	cursor := ""

	for {
		result, err := e.callWithAuthRetry(ctx, func() marketplace.Result {
			return e.api.ListOrders(ctx, remoteStatus, timeFrom, timeTo, e.config.PageSize, cursor)
		})
		if err != nil {
			return nil, err
		}
		if !result.OK() {
			return nil, fmt.Errorf("list %s: %w", remoteStatus, result.Error())
		}

		var page marketplace.OrderListResponse
		if err := json.Unmarshal(result.Body, &page); err != nil {
			return nil, fmt.Errorf("parse list %s: %w", remoteStatus, err)
		}
		if page.Response == nil {
			return nil, fmt.Errorf("list %s: empty payload", remoteStatus)
		}

		for _, entry := range page.Response.OrderList {
			ids[entry.OrderSN] = true
		}
		if !page.Response.More {
			return ids, nil
		}
		cursor = page.Response.NextCursor
	}
}

// reconcile drops stored orders that vanished from their own bucket's
// live set. Buckets are independent, an id absent from one bucket never
// evicts an order held in the other.
func (e *Engine) reconcile(live map[order.Status]map[string]bool) int {
	removed := e.store.RemoveWhere(func(o *order.Order) bool {
		ids, tracked := live[o.Status]
		return tracked && !ids[o.ID]
	})
	if removed > 0 {
		e.logger.Info("Stale orders removed", zap.Int("count", removed))
	}
	return removed
}

// mergeNewOrders fetches details for live ids the store doesn't hold yet
// and inserts them. A plain detail failure skips that batch; the rest of
// the cycle continues.
func (e *Engine) mergeNewOrders(ctx context.Context, b bucket, live map[string]bool) (int, error) {
	var fresh []string
	for id := range live {
		if !e.store.Has(id) {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	added := 0
	for _, batch := range chunk(fresh, detailBatchSize) {
		result, err := e.callWithAuthRetry(ctx, func() marketplace.Result {
			return e.api.GetOrderDetail(ctx, batch)
		})
		if err != nil {
			return added, err
		}
		if !result.OK() {
			e.logger.Warn("Order detail batch failed",
				zap.Int("batch_size", len(batch)),
				zap.Error(result.Error()),
			)
			continue
		}

		var detail marketplace.OrderDetailResponse
		if err := json.Unmarshal(result.Body, &detail); err != nil {
			e.logger.Warn("Order detail batch unparseable", zap.Error(err))
			continue
		}
		if detail.Response == nil {
			continue
		}

		for i := range detail.Response.OrderList {
			o := mapOrder(&detail.Response.OrderList[i], b.local)
			// Existence is re-checked right before insert; an overlapping
			// cycle may have inserted the same id since the diff above.
			if e.store.Has(o.ID) {
				continue
			}
			if e.store.UpsertIfAbsent(o) {
				added++
			}
		}
	}
	return added, nil
}

// reconcilePrinted marks orders printed when the platform reports their
// shipping document ready. The flag is never cleared here.
func (e *Engine) reconcilePrinted(ctx context.Context) {
	ids := e.store.IDs()
	if len(ids) == 0 {
		return
	}

	for _, batch := range chunk(ids, detailBatchSize) {
		result := e.api.GetShippingDocumentResult(ctx, batch)
		if !result.OK() {
			e.logger.Debug("Document status batch failed", zap.Error(result.Error()))
			continue
		}

		var statuses marketplace.DocumentResultResponse
		if err := json.Unmarshal(result.Body, &statuses); err != nil || statuses.Response == nil {
			continue
		}

		for _, doc := range statuses.Response.ResultList {
			if doc.Status != marketplace.DocumentStatusReady {
				continue
			}
			e.store.Mutate(doc.OrderSN, func(o *order.Order) {
				o.Printed = true
			})
		}
	}
}

// mapOrder converts a platform order payload into the domain model,
// parsing shelf locations out of each item's model name.
func mapOrder(d *marketplace.OrderDetail, status order.Status) order.Order {
	items := make([]order.Item, 0, len(d.ItemList))
	for _, it := range d.ItemList {
		items = append(items, order.Item{
			ProductID: it.ItemID,
			ModelID:   it.ModelID,
			Name:      it.ItemName,
			ModelName: it.ModelName,
			ImageURL:  it.ImageInfo.ImageURL,
			Quantity:  it.ModelQuantityPurchased,
			Price:     it.ModelDiscountedPrice,
			Location:  order.ParseLocation(it.ModelName),
		})
	}

	return order.Order{
		ID:              d.OrderSN,
		Status:          status,
		UpdatedAt:       d.UpdateTime,
		Items:           items,
		TotalAmount:     d.TotalAmount,
		ShippingCarrier: d.ShippingCarrier,
	}
}

// chunk splits ids into platform-sized batches.
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
