package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/food-orders/internal/domain/cart"
	"github.com/xenking/food-orders/internal/domain/menu"
	"github.com/xenking/food-orders/internal/domain/notification"
	"github.com/xenking/food-orders/internal/domain/pricing"
	"github.com/xenking/food-orders/internal/domain/restaurant"
	"github.com/xenking/food-orders/internal/domain/user"
)

const instrumentationName = "github.com/xenking/food-orders/internal/domain/order"

// Cart loads the lines to check out and removes them afterwards.
type Cart interface {
	Load(ctx context.Context, userID string) (*cart.Contents, error)
	// Clear removes the documents returned by Load.
	Clear(ctx context.Context, userID string, documents int) error
}

// PlaceOrderRequest holds the checkout input. The coupon is validated by a
// separate call beforehand; only its outcome is passed here.
type PlaceOrderRequest struct {
	UserID         string
	CouponDiscount decimal.NullDecimal
	CouponID       string
}

// RateResult is the outcome of rating an order.
type RateResult struct {
	Order      *Order
	Restaurant *restaurant.Restaurant
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider. Defaults to no-op.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets the meter provider. Defaults to no-op.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meter = mp.Meter(instrumentationName)
	}
}

// Service encapsulates the order pipeline and the order lifecycle.
type Service struct {
	users     user.Repository
	menu      menu.Repository
	carts     Cart
	orders    Repository
	publisher notification.Publisher
	now       func() time.Time

	tracer trace.Tracer
	meter  metric.Meter
	placed metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	users user.Repository,
	items menu.Repository,
	carts Cart,
	orders Repository,
	publisher notification.Publisher,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		users:     users,
		menu:      items,
		carts:     carts,
		orders:    orders,
		publisher: publisher,
		now:       time.Now,
		tracer:    tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:     metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	placed, err := s.meter.Int64Counter("orders.placed",
		metric.WithDescription("Number of orders placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	s.placed = placed

	return s, nil
}

// PlaceOrder turns the user's cart into an order.
//
// Persisting the order is the durability boundary: once it succeeds the
// order is returned to the caller even if the notification or the cart
// cleanup afterwards fails.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.String("user.id", req.UserID)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()
	lg := zctx.From(ctx)

	if req.UserID == "" {
		return nil, ErrUserIDRequired
	}
	if req.CouponDiscount.Valid {
		if err := pricing.ValidatePercentage(req.CouponDiscount.Decimal); err != nil {
			return nil, ErrInvalidDiscount
		}
	}

	u, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	if missing := u.Address.Missing(); len(missing) > 0 {
		return nil, &IncompleteAddressError{Missing: missing}
	}

	contents, err := s.carts.Load(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	lines := contents.Lines

	priced := make([]pricing.Line, len(lines))
	for i, l := range lines {
		priced[i] = l.Priced()
		if err := priced[i].Validate(); err != nil {
			return nil, err
		}
	}
	total := pricing.Total(priced, req.CouponDiscount)

	o := &Order{
		ID:          uuid.New().String(),
		UserID:      u.ID,
		User:        NewUserSnapshot(u),
		Items:       s.orderItems(ctx, lines),
		TotalAmount: total,
		Status:      StatusPending,
		OrderDate:   s.now().UTC(),
	}
	if req.CouponDiscount.Valid {
		o.CouponID = req.CouponID
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	s.placed.Add(ctx, 1)
	span.SetAttributes(attribute.String("order.id", o.ID))

	s.publisher.Broadcast(ctx, notification.EventNewOrder, newOrderPayload(o))

	if err := s.carts.Clear(ctx, req.UserID, contents.Documents); err != nil {
		lg.Warn("Clear cart after checkout",
			zap.Error(err),
			zap.String("order_id", o.ID),
			zap.String("user_id", req.UserID),
		)
	}

	return o, nil
}

// orderItems copies cart lines into order items, filling names and images
// from the catalog. Items removed from the catalog keep their price and get
// a placeholder name.
func (s *Service) orderItems(ctx context.Context, lines []cart.Line) []Item {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.MenuItemID
	}

	catalog := make(map[string]menu.Item, len(lines))
	found, err := s.menu.GetByIDs(ctx, ids)
	if err != nil {
		zctx.From(ctx).Warn("Lookup menu items for order, using placeholders", zap.Error(err))
	}
	for _, mi := range found {
		catalog[mi.ID] = mi
	}

	items := make([]Item, len(lines))
	for i, l := range lines {
		it := Item{
			RestaurantID: l.RestaurantID,
			MenuItemID:   l.MenuItemID,
			Name:         menu.PlaceholderName,
			Image:        menu.PlaceholderImage,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			Size:         l.Size,
			AddOns:       append([]menu.Option(nil), l.AddOns...),
		}
		if mi, ok := catalog[l.MenuItemID]; ok {
			it.Name = mi.Name
			it.Image = mi.Image
		}
		items[i] = it
	}
	return items
}

func newOrderPayload(o *Order) notification.Payload {
	items := make([]notification.Item, len(o.Items))
	for i, it := range o.Items {
		ni := notification.Item{
			RestaurantID: it.RestaurantID,
			MenuItemID:   it.MenuItemID,
			Name:         it.Name,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
		}
		if it.Size != nil {
			ni.Size = it.Size.Name
		}
		for _, a := range it.AddOns {
			ni.AddOns = append(ni.AddOns, a.Name)
		}
		items[i] = ni
	}

	p := notification.Payload{
		MessageType:   notification.TypeNewOrder,
		Action:        notification.ActionCreate,
		Message:       "New order " + o.ID,
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        string(o.Status),
		RestaurantIDs: o.RestaurantIDs(),
		Items:         items,
	}
	if len(o.Items) > 0 {
		p.RestaurantID = o.Items[0].RestaurantID
	}
	return p
}

// Get returns the order with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// UpdateStatus moves an order along its lifecycle and notifies sessions.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if !o.Status.CanTransition(next) {
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}
	if err := s.orders.UpdateStatus(ctx, id, o.Status, next); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = next

	s.publisher.Broadcast(ctx, notification.EventOrderStatus, notification.Payload{
		MessageType:   notification.TypeNewOrder,
		Action:        notification.ActionUpdate,
		Message:       "Order " + o.ID + " is " + string(next),
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        string(next),
		RestaurantIDs: o.RestaurantIDs(),
	})
	return o, nil
}

// Rate stores the customer rating of a completed order and updates the
// restaurant average.
func (s *Service) Rate(ctx context.Context, orderID, restaurantID string, rating int) (_ *RateResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Rate",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("restaurant.id", restaurantID),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if o.Rating != nil {
		return nil, ErrAlreadyRated
	}
	if o.Status != StatusCompleted {
		return nil, ErrNotRatable
	}
	if !o.HasRestaurant(restaurantID) {
		return nil, ErrRestaurantNotInOrder
	}

	r, err := s.orders.Rate(ctx, orderID, restaurantID, rating)
	if err != nil {
		return nil, errors.Wrap(err, "rate order")
	}
	o.Rating = &rating

	return &RateResult{Order: o, Restaurant: r}, nil
}
