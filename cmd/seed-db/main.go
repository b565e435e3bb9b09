package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/food-orders/internal/domain/coupon"
	"github.com/xenking/food-orders/internal/domain/menu"
	"github.com/xenking/food-orders/internal/domain/restaurant"
	"github.com/xenking/food-orders/internal/domain/user"
	"github.com/xenking/food-orders/internal/handler"
	"github.com/xenking/food-orders/internal/storage/postgres"
)

type catalogJSON struct {
	Restaurants []restaurantJSON `json:"restaurants"`
	Users       []userJSON       `json:"users"`
	Coupons     []couponJSON     `json:"coupons"`
}

type restaurantJSON struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Contact string     `json:"contact"`
	Menu    []itemJSON `json:"menu"`
}

type itemJSON struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Image      string           `json:"image"`
	Price      decimal.Decimal  `json:"price"`
	IsOffer    bool             `json:"isOffer"`
	OfferPrice *decimal.Decimal `json:"offerPrice"`
	Sizes      []menu.Option    `json:"sizes"`
	AddOns     []menu.Option    `json:"addOns"`
}

type userJSON struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Phone   string       `json:"phone"`
	Address user.Address `json:"address"`
}

type couponJSON struct {
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	MinOrders          int             `json:"minOrders"`
	ExpiresAt          time.Time       `json:"expiresAt"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
		jwtSecret   string
		tokenTTL    time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "secret to sign an admin token with (or FOOD_JWT_SECRET env)")
	flag.DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "lifetime of the printed admin token")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if jwtSecret == "" {
		jwtSecret = os.Getenv("FOOD_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")

	if jwtSecret != "" {
		auth := handler.NewAuthenticator([]byte(jwtSecret))
		token, err := auth.IssueToken(handler.Principal{UserID: "admin", IsAdmin: true}, tokenTTL)
		if err != nil {
			slog.Error("issue admin token", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Println(token)
	}
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedRestaurants(ctx, pool, catalog.Restaurants); err != nil {
		return errors.Wrap(err, "seed restaurants")
	}
	if err := seedUsers(ctx, postgres.NewUserRepository(pool), catalog.Users); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool), catalog.Coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	return nil
}

func seedRestaurants(ctx context.Context, p *pgxpool.Pool, restaurants []restaurantJSON) error {
	restaurantRepo := postgres.NewRestaurantRepository(p)
	menuRepo := postgres.NewMenuRepository(p)

	for _, r := range restaurants {
		if err := restaurantRepo.Upsert(ctx, &restaurant.Restaurant{
			ID:      r.ID,
			Name:    r.Name,
			Contact: r.Contact,
		}); err != nil {
			return errors.Wrapf(err, "upsert restaurant %s", r.ID)
		}
		slog.Info("upserted restaurant", slog.String("id", r.ID), slog.String("name", r.Name))

		for _, it := range r.Menu {
			item := &menu.Item{
				ID:           it.ID,
				RestaurantID: r.ID,
				Name:         it.Name,
				Image:        it.Image,
				Price:        it.Price,
				IsOffer:      it.IsOffer,
				Sizes:        it.Sizes,
				AddOns:       it.AddOns,
			}
			if it.OfferPrice != nil {
				item.OfferPrice = decimal.NewNullDecimal(*it.OfferPrice)
			}
			if err := menuRepo.Upsert(ctx, item); err != nil {
				return errors.Wrapf(err, "upsert menu item %s", it.ID)
			}
			slog.Info("upserted menu item", slog.String("id", it.ID), slog.String("name", it.Name))
		}
	}
	return nil
}

func seedUsers(ctx context.Context, repo *postgres.UserRepository, users []userJSON) error {
	for _, u := range users {
		if err := repo.Upsert(ctx, &user.User{
			ID:      u.ID,
			Name:    u.Name,
			Email:   u.Email,
			Phone:   u.Phone,
			Address: u.Address,
		}); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.ID)
		}
		slog.Info("upserted user", slog.String("id", u.ID), slog.Bool("address_complete", u.Address.Complete()))
	}
	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository, coupons []couponJSON) error {
	for _, c := range coupons {
		if err := repo.Upsert(ctx, &coupon.Coupon{
			ID:                 uuid.NewString(),
			Code:               c.Code,
			DiscountPercentage: c.DiscountPercentage,
			MinOrders:          c.MinOrders,
			ExpiresAt:          c.ExpiresAt,
		}); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("discount", c.DiscountPercentage.String()))
	}
	return nil
}
