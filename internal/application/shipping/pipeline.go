// Package shipping drives the ship command and the label print flow for
// marketplace orders.
package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/fulfillment/internal/domain/order"
	"github.com/erp/fulfillment/internal/infrastructure/marketplace"
	"github.com/erp/fulfillment/internal/infrastructure/printing"
	"github.com/erp/fulfillment/internal/infrastructure/storage"
)

var (
	// ErrShipRejected means the platform refused the ship command.
	ErrShipRejected = errors.New("shipping: ship command rejected")
	// ErrDocumentTimeout means the label never became ready within the
	// polling bound.
	ErrDocumentTimeout = errors.New("shipping: document not ready in time")
)

// MarketplaceAPI is the slice of the marketplace client the pipeline uses.
type MarketplaceAPI interface {
	GetShippingParameter(ctx context.Context, orderSN string) marketplace.Result
	ShipOrder(ctx context.Context, req *marketplace.ShipOrderRequest) marketplace.Result
	CreateShippingDocument(ctx context.Context, orderSN string) marketplace.Result
	GetShippingDocumentResult(ctx context.Context, orderSNs []string) marketplace.Result
	DownloadShippingDocument(ctx context.Context, orderSN string) ([]byte, error)
}

// SyncKicker requests an out-of-band sync cycle.
type SyncKicker interface {
	Kick()
}

// Config holds the label polling bounds.
type Config struct {
	PollAttempts int
	PollDelay    time.Duration
}

// BatchResult carries the per-order outcome of one print batch.
type BatchResult struct {
	Processed []string `json:"processed"`
	Failed    []string `json:"failed"`
}

// Pipeline owns the two fulfillment workflows: shipping an order and
// issuing plus printing its label.
type Pipeline struct {
	config  Config
	api     MarketplaceAPI
	store   *order.Store
	printer printing.Printer
	archive storage.DocumentArchive
	kicker  SyncKicker
	logger  *zap.Logger
}

// NewPipeline creates a shipping pipeline.
func NewPipeline(
	config Config,
	api MarketplaceAPI,
	store *order.Store,
	printer printing.Printer,
	archive storage.DocumentArchive,
	kicker SyncKicker,
	logger *zap.Logger,
) *Pipeline {
	if config.PollAttempts <= 0 {
		config.PollAttempts = 15
	}
	if config.PollDelay <= 0 {
		config.PollDelay = 1500 * time.Millisecond
	}
	return &Pipeline{
		config:  config,
		api:     api,
		store:   store,
		printer: printer,
		archive: archive,
		kicker:  kicker,
		logger:  logger,
	}
}

// Ship resolves the collection method for an order and submits the ship
// command. This is a single attempt; a rejected command leaves the local
// order untouched. On success the order turns Processed locally and a
// sync cycle is kicked so the remote bucket move is picked up promptly.
func (p *Pipeline) Ship(ctx context.Context, orderID string) error {
	result := p.api.GetShippingParameter(ctx, orderID)
	if !result.OK() {
		return fmt.Errorf("shipping: get parameters for %s: %w", orderID, result.Error())
	}

	var params marketplace.ShippingParameterResponse
	if err := json.Unmarshal(result.Body, &params); err != nil {
		return fmt.Errorf("shipping: parse parameters for %s: %w", orderID, err)
	}
	if params.Response == nil {
		return fmt.Errorf("shipping: empty parameters for %s", orderID)
	}

	req := buildShipRequest(orderID, params.Response)
	p.logger.Info("Shipping order",
		zap.String("order_id", orderID),
		zap.Bool("pickup", req.Pickup != nil),
	)

	shipResult := p.api.ShipOrder(ctx, req)
	if !shipResult.OK() {
		return fmt.Errorf("%w: %s: %v", ErrShipRejected, orderID, shipResult.Error())
	}

	p.store.Mutate(orderID, func(o *order.Order) {
		o.Status = order.StatusProcessed
	})
	p.kicker.Kick()
	return nil
}

// buildShipRequest picks the collection method from the parameter
// payload: the first pickup address with its first time slot when pickup
// is offered, plain dropoff otherwise.
func buildShipRequest(orderID string, params *marketplace.ShippingParameter) *marketplace.ShipOrderRequest {
	req := &marketplace.ShipOrderRequest{OrderSN: orderID}

	if params.Pickup != nil && len(params.Pickup.AddressList) > 0 {
		address := params.Pickup.AddressList[0]
		choice := &marketplace.PickupChoice{AddressID: address.AddressID}
		if len(address.TimeSlotList) > 0 {
			choice.PickupTimeID = address.TimeSlotList[0].PickupTimeID
		}
		req.Pickup = choice
		return req
	}

	req.Dropoff = map[string]any{}
	return req
}

// PrintBatch issues and prints the label of every order independently.
// One order's failure never aborts the rest; the result carries parallel
// processed and failed id lists.
func (p *Pipeline) PrintBatch(ctx context.Context, orderIDs []string) BatchResult {
	result := BatchResult{Processed: []string{}, Failed: []string{}}

	for _, id := range orderIDs {
		if err := p.printOne(ctx, id); err != nil {
			p.logger.Warn("Label print failed",
				zap.String("order_id", id),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Processed = append(result.Processed, id)
	}
	return result
}

// printOne waits for the order's document, downloads it, archives it,
// hands it to the printer and marks the order printed.
func (p *Pipeline) printOne(ctx context.Context, orderID string) error {
	if err := p.waitForDocument(ctx, orderID); err != nil {
		return err
	}

	data, err := p.api.DownloadShippingDocument(ctx, orderID)
	if err != nil {
		return fmt.Errorf("download label: %w", err)
	}

	if location, err := p.archive.Store(ctx, orderID, data); err != nil {
		// The physical print still proceeds without an archive copy
		p.logger.Warn("Label archive failed",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	} else {
		p.logger.Debug("Label archived", zap.String("location", location))
	}

	if err := p.printer.Print(ctx, orderID, data); err != nil {
		return err
	}

	p.store.Mutate(orderID, func(o *order.Order) {
		o.Printed = true
	})
	return nil
}

// waitForDocument polls the document status within the configured bound.
// A status that is neither processing nor ready means the document was
// never requested or failed, so a create request is re-issued before the
// next poll.
func (p *Pipeline) waitForDocument(ctx context.Context, orderID string) error {
	for attempt := 0; attempt < p.config.PollAttempts; attempt++ {
		status := p.documentStatus(ctx, orderID)
		if status == marketplace.DocumentStatusReady {
			return nil
		}
		if status != marketplace.DocumentStatusProcessing {
			p.logger.Debug("Re-issuing document create",
				zap.String("order_id", orderID),
				zap.String("status", status),
			)
			if createResult := p.api.CreateShippingDocument(ctx, orderID); !createResult.OK() {
				p.logger.Debug("Document create rejected",
					zap.String("order_id", orderID),
					zap.Error(createResult.Error()),
				)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.config.PollDelay):
		}
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrDocumentTimeout, orderID, p.config.PollAttempts)
}

// documentStatus fetches the current generation status for one order.
// Any malformed or failed response reads as an unknown status, which the
// poll loop treats the same as failed.
func (p *Pipeline) documentStatus(ctx context.Context, orderID string) string {
	result := p.api.GetShippingDocumentResult(ctx, []string{orderID})
	if !result.OK() {
		return ""
	}

	var statuses marketplace.DocumentResultResponse
	if err := json.Unmarshal(result.Body, &statuses); err != nil || statuses.Response == nil {
		return ""
	}
	for _, doc := range statuses.Response.ResultList {
		if doc.OrderSN == orderID {
			return doc.Status
		}
	}
	return ""
}
