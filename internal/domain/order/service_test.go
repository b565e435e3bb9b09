package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/food-orders/internal/domain/cart"
	"github.com/xenking/food-orders/internal/domain/menu"
	"github.com/xenking/food-orders/internal/domain/notification"
	"github.com/xenking/food-orders/internal/domain/restaurant"
	"github.com/xenking/food-orders/internal/domain/user"
)

// --- Mock implementations ---

// callLog records the order of side effects across mocks.
type callLog []string

func (l *callLog) add(s string) { *l = append(*l, s) }

type mockUserRepo struct {
	users map[string]*user.User
	err   error
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type mockMenuRepo struct {
	items map[string]menu.Item
	err   error
}

func (m *mockMenuRepo) GetByID(_ context.Context, id string) (*menu.Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	return &it, nil
}

func (m *mockMenuRepo) GetByIDs(_ context.Context, ids []string) ([]menu.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []menu.Item
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

type mockCart struct {
	log      *callLog
	lines    []cart.Line
	loadErr  error
	clearErr error
	cleared  int
	consumed []int
}

func (m *mockCart) Load(_ context.Context, _ string) (*cart.Contents, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if len(m.lines) == 0 {
		return nil, cart.ErrEmptyCart
	}
	return &cart.Contents{Lines: m.lines, Documents: len(m.lines)}, nil
}

func (m *mockCart) Clear(_ context.Context, _ string, documents int) error {
	m.log.add("clear")
	m.cleared++
	m.consumed = append(m.consumed, documents)
	if m.clearErr != nil {
		return m.clearErr
	}
	m.lines = nil
	return nil
}

type mockOrderRepo struct {
	log       *callLog
	created   []*Order
	byID      map[string]*Order
	createErr error
	updateErr error
	rateErr   error
	rated     *restaurant.Restaurant
	updates   [][2]Status
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.log.add("create")
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, o)
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *o
	return &c, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, _ string, from, to Status) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, [2]Status{from, to})
	return nil
}

func (m *mockOrderRepo) Rate(_ context.Context, _, _ string, _ int) (*restaurant.Restaurant, error) {
	if m.rateErr != nil {
		return nil, m.rateErr
	}
	return m.rated, nil
}

type published struct {
	event   string
	payload notification.Payload
}

type mockPublisher struct {
	log    *callLog
	events []published
}

func (m *mockPublisher) Broadcast(_ context.Context, event string, p notification.Payload) {
	m.log.add("publish")
	m.events = append(m.events, published{event: event, payload: p})
}

// --- Helpers ---

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T { return &v }

func completeUser() *user.User {
	return &user.User{
		ID:    "u1",
		Name:  "Ann",
		Email: "ann@example.com",
		Phone: "+100",
		Address: user.Address{
			Name:      "Home",
			Lat:       ptr(52.5),
			Lng:       ptr(13.4),
			Building:  "7",
			Floor:     "2",
			Apartment: "12",
		},
	}
}

type fixture struct {
	log    *callLog
	users  *mockUserRepo
	menu   *mockMenuRepo
	cart   *mockCart
	orders *mockOrderRepo
	pub    *mockPublisher
	svc    *Service
}

func newFixture(t *testing.T, lines ...cart.Line) *fixture {
	t.Helper()

	log := &callLog{}
	f := &fixture{
		log:   log,
		users: &mockUserRepo{users: map[string]*user.User{"u1": completeUser()}},
		menu: &mockMenuRepo{items: map[string]menu.Item{
			"burger": {ID: "burger", RestaurantID: "r1", Name: "Burger", Image: "burger.png", Price: d("10.00")},
			"salad":  {ID: "salad", RestaurantID: "r2", Name: "Salad", Image: "salad.png", Price: d("8.00")},
		}},
		cart:   &mockCart{log: log, lines: lines},
		orders: &mockOrderRepo{log: log, byID: map[string]*Order{}},
		pub:    &mockPublisher{log: log},
	}
	svc, err := NewService(f.users, f.menu, f.cart, f.orders, f.pub)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func burgerLine() cart.Line {
	return cart.Line{
		RestaurantID: "r1",
		MenuItemID:   "burger",
		Quantity:     2,
		UnitPrice:    d("10.00"),
		Size:         &menu.Option{Name: "L", Price: d("2.00")},
		AddOns:       []menu.Option{{Name: "cheese", Price: d("1.00")}, {Name: "bacon", Price: d("0.50")}},
	}
}

// --- PlaceOrder ---

func TestPlaceOrder_Totals(t *testing.T) {
	tests := []struct {
		name     string
		lines    []cart.Line
		discount decimal.NullDecimal
		want     decimal.Decimal
	}{
		{name: "single line", lines: []cart.Line{burgerLine()}, want: d("27.00")},
		{name: "with coupon", lines: []cart.Line{burgerLine()}, discount: decimal.NewNullDecimal(d("25")), want: d("20.25")},
		{
			name: "duplicate lines priced independently",
			lines: []cart.Line{
				{RestaurantID: "r2", MenuItemID: "salad", Quantity: 1, UnitPrice: d("7.50")},
				{RestaurantID: "r2", MenuItemID: "salad", Quantity: 1, UnitPrice: d("7.50")},
			},
			want: d("15.00"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.lines...)

			o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
				UserID:         "u1",
				CouponDiscount: tt.discount,
				CouponID:       "c1",
			})
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(o.TotalAmount), "expected %s, got %s", tt.want, o.TotalAmount)
			assert.Equal(t, StatusPending, o.Status)
			assert.Len(t, o.Items, len(tt.lines))
			if tt.discount.Valid {
				assert.Equal(t, "c1", o.CouponID)
			} else {
				assert.Empty(t, o.CouponID)
			}
		})
	}
}

func TestPlaceOrder_SideEffectOrder(t *testing.T) {
	f := newFixture(t, burgerLine())

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, callLog{"create", "publish", "clear"}, *f.log)
	require.Len(t, f.orders.created, 1)
	assert.Same(t, o, f.orders.created[0])

	require.Len(t, f.pub.events, 1, "newOrder is published exactly once")
	ev := f.pub.events[0]
	assert.Equal(t, notification.EventNewOrder, ev.event)
	assert.Equal(t, notification.TypeNewOrder, ev.payload.MessageType)
	assert.Equal(t, o.ID, ev.payload.OrderID)
	assert.Equal(t, "r1", ev.payload.RestaurantID)
	require.Len(t, ev.payload.Items, 1)
	assert.Equal(t, "L", ev.payload.Items[0].Size)
	assert.Equal(t, []string{"cheese", "bacon"}, ev.payload.Items[0].AddOns)

	assert.Empty(t, f.cart.lines, "cart is empty after checkout")
	assert.Equal(t, []int{1}, f.cart.consumed, "only the documents read are cleared")
}

func TestPlaceOrder_MultiRestaurantPayload(t *testing.T) {
	f := newFixture(t,
		cart.Line{RestaurantID: "r1", MenuItemID: "burger", Quantity: 1, UnitPrice: d("10")},
		cart.Line{RestaurantID: "r2", MenuItemID: "salad", Quantity: 1, UnitPrice: d("8")},
		cart.Line{RestaurantID: "r1", MenuItemID: "burger", Quantity: 1, UnitPrice: d("10")},
	)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, f.pub.events, 1)
	p := f.pub.events[0].payload
	assert.Equal(t, "r1", p.RestaurantID)
	assert.Equal(t, []string{"r1", "r2"}, p.RestaurantIDs)
	assert.Len(t, p.Items, 3)
}

func TestPlaceOrder_Rejections(t *testing.T) {
	incomplete := completeUser()
	incomplete.Address.Floor = ""
	incomplete.Address.Lat = nil

	tests := []struct {
		name    string
		req     PlaceOrderRequest
		setup   func(f *fixture)
		wantErr error
	}{
		{name: "missing user id", req: PlaceOrderRequest{}, wantErr: ErrUserIDRequired},
		{
			name:    "discount above 100",
			req:     PlaceOrderRequest{UserID: "u1", CouponDiscount: decimal.NewNullDecimal(d("101"))},
			wantErr: ErrInvalidDiscount,
		},
		{
			name:    "negative discount",
			req:     PlaceOrderRequest{UserID: "u1", CouponDiscount: decimal.NewNullDecimal(d("-5"))},
			wantErr: ErrInvalidDiscount,
		},
		{name: "unknown user", req: PlaceOrderRequest{UserID: "ghost"}, wantErr: user.ErrNotFound},
		{
			name:    "incomplete address",
			req:     PlaceOrderRequest{UserID: "u1"},
			setup:   func(f *fixture) { f.users.users["u1"] = incomplete },
			wantErr: ErrIncompleteAddress,
		},
		{
			name:    "empty cart",
			req:     PlaceOrderRequest{UserID: "u1"},
			setup:   func(f *fixture) { f.cart.lines = nil },
			wantErr: cart.ErrEmptyCart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, burgerLine())
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.svc.PlaceOrder(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)

			assert.Empty(t, *f.log, "no side effects on rejection")
			assert.Empty(t, f.orders.created)
			assert.Empty(t, f.pub.events)
		})
	}
}

func TestPlaceOrder_IncompleteAddressListsFields(t *testing.T) {
	f := newFixture(t, burgerLine())
	u := completeUser()
	u.Address.Building = ""
	u.Address.Lng = nil
	f.users.users["u1"] = u

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1"})

	var addrErr *IncompleteAddressError
	require.ErrorAs(t, err, &addrErr)
	assert.Equal(t, []string{"lng", "building"}, addrErr.Missing)
}

func TestPlaceOrder_InvalidLine(t *testing.T) {
	line := burgerLine()
	line.Quantity = 0
	f := newFixture(t, line)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1"})
	require.Error(t, err)
	assert.Empty(t, f.orders.created)
}

func TestPlaceOrder_PersistFailure(t *testing.T) {
	f := newFixture(t, burgerLine())
	f.orders.createErr = errors.New("db write failed")

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")

	assert.Equal(t, callLog{"create"}, *f.log, "no publish and no cart clear after a failed write")
	assert.NotEmpty(t, f.cart.lines)
}

func TestPlaceOrder_ClearFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, burgerLine())
	f.cart.clearErr = errors.New("redis down")

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1"})
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, 1, f.cart.cleared)
	assert.Len(t, f.pub.events, 1)
}

func TestPlaceOrder_DeletedMenuItemKeepsPrice(t *testing.T) {
	f := newFixture(t, cart.Line{RestaurantID: "r9", MenuItemID: "gone", Quantity: 3, UnitPrice: d("4.00")})

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, o.Items, 1)
	assert.Equal(t, menu.PlaceholderName, o.Items[0].Name)
	assert.Equal(t, menu.PlaceholderImage, o.Items[0].Image)
	assert.True(t, d("12.00").Equal(o.TotalAmount))
}

func TestPlaceOrder_MenuLookupFailureDegrades(t *testing.T) {
	f := newFixture(t, burgerLine())
	f.menu.err = errors.New("catalog unavailable")

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, menu.PlaceholderName, o.Items[0].Name)
	assert.True(t, d("27.00").Equal(o.TotalAmount))
}

func TestPlaceOrder_SnapshotIsDetached(t *testing.T) {
	f := newFixture(t, burgerLine())

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{UserID: "u1"})
	require.NoError(t, err)

	u := f.users.users["u1"]
	u.Name = "Changed"
	u.Address.Building = "99"
	*u.Address.Lat = 0

	assert.Equal(t, "Ann", o.User.Name)
	assert.Equal(t, "7", o.User.Address.Building)
	assert.InDelta(t, 52.5, *o.User.Address.Lat, 0.0001)
	assert.Equal(t, "Burger", o.Items[0].Name)
}

// --- Lifecycle ---

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCompleted, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("InProgress")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, st)

	_, err = ParseStatus("Shipped")
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	f.orders.byID["o1"] = &Order{
		ID:     "o1",
		UserID: "u1",
		Status: StatusPending,
		Items:  []Item{{RestaurantID: "r1"}},
	}

	o, err := f.svc.UpdateStatus(context.Background(), "o1", StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, o.Status)
	assert.Equal(t, [][2]Status{{StatusPending, StatusInProgress}}, f.orders.updates)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, notification.EventOrderStatus, f.pub.events[0].event)
	assert.Equal(t, "InProgress", f.pub.events[0].payload.Status)
}

func TestUpdateStatus_Invalid(t *testing.T) {
	f := newFixture(t)
	f.orders.byID["o1"] = &Order{ID: "o1", Status: StatusCompleted}

	_, err := f.svc.UpdateStatus(context.Background(), "o1", StatusCancelled)

	var trErr *InvalidTransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, StatusCompleted, trErr.From)
	assert.Empty(t, f.pub.events)

	_, err = f.svc.UpdateStatus(context.Background(), "missing", StatusCancelled)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_Concurrent(t *testing.T) {
	f := newFixture(t)
	f.orders.byID["o1"] = &Order{ID: "o1", Status: StatusPending}
	f.orders.updateErr = ErrConcurrentUpdate

	_, err := f.svc.UpdateStatus(context.Background(), "o1", StatusCancelled)
	require.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Empty(t, f.pub.events)
}

func TestRate(t *testing.T) {
	completed := func() *Order {
		return &Order{
			ID:     "o1",
			Status: StatusCompleted,
			Items:  []Item{{RestaurantID: "r1"}, {RestaurantID: "r2"}},
		}
	}

	tests := []struct {
		name       string
		order      *Order
		restaurant string
		rating     int
		rateErr    error
		wantErr    error
	}{
		{name: "rating too low", order: completed(), restaurant: "r1", rating: 0, wantErr: ErrInvalidRating},
		{name: "rating too high", order: completed(), restaurant: "r1", rating: 6, wantErr: ErrInvalidRating},
		{name: "order missing", restaurant: "r1", rating: 5, wantErr: ErrNotFound},
		{
			name:       "order not completed",
			order:      &Order{ID: "o1", Status: StatusInProgress, Items: []Item{{RestaurantID: "r1"}}},
			restaurant: "r1",
			rating:     5,
			wantErr:    ErrNotRatable,
		},
		{name: "foreign restaurant", order: completed(), restaurant: "r3", rating: 5, wantErr: ErrRestaurantNotInOrder},
		{
			name: "already rated",
			order: func() *Order {
				o := completed()
				o.Rating = ptr(4)
				return o
			}(),
			restaurant: "r1",
			rating:     5,
			wantErr:    ErrAlreadyRated,
		},
		{name: "lost race", order: completed(), restaurant: "r1", rating: 5, rateErr: ErrAlreadyRated, wantErr: ErrAlreadyRated},
		{name: "success", order: completed(), restaurant: "r2", rating: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.order != nil {
				f.orders.byID[tt.order.ID] = tt.order
			}
			f.orders.rateErr = tt.rateErr
			f.orders.rated = &restaurant.Restaurant{ID: tt.restaurant, Rating: d("4.2"), NumberOfRatings: 5}

			res, err := f.svc.Rate(context.Background(), "o1", tt.restaurant, tt.rating)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, res.Order.Rating)
			assert.Equal(t, tt.rating, *res.Order.Rating)
			assert.Equal(t, 5, res.Restaurant.NumberOfRatings)
		})
	}
}
