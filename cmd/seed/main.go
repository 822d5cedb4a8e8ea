package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
)

type seedProduct struct {
	name        string
	description string
	price       string
	stock       int
	category    string
}

var products = []seedProduct{
	{"Wireless Bluetooth Headphones", "Premium quality wireless headphones with noise cancellation, 30-hour battery life, and superior sound quality. Perfect for music lovers and professionals.", "79.99", 50, "Electronics"},
	{"Smart Watch Pro", "Feature-rich smartwatch with heart rate monitor, GPS tracking, and 7-day battery life. Compatible with iOS and Android.", "199.99", 30, "Electronics"},
	{"Cotton T-Shirt", "Comfortable 100% organic cotton t-shirt. Available in multiple colors. Perfect for everyday wear.", "24.99", 100, "Clothing"},
	{"Denim Jeans", "Classic fit denim jeans made from premium quality denim. Durable and stylish for any occasion.", "59.99", 75, "Clothing"},
	{"Running Shoes", "Lightweight running shoes with cushioned sole and breathable mesh upper. Perfect for jogging and daily workouts.", "89.99", 60, "Footwear"},
	{"Leather Wallet", "Genuine leather wallet with multiple card slots and cash compartment. Sleek design for modern professionals.", "39.99", 45, "Accessories"},
	{"Coffee Maker", "Programmable coffee maker with 12-cup capacity. Auto shut-off feature and reusable filter included.", "49.99", 25, "Home & Kitchen"},
	{"Yoga Mat", "Non-slip yoga mat with extra cushioning. Perfect for yoga, pilates, and floor exercises. Easy to clean.", "29.99", 40, "Sports & Fitness"},
	{"Backpack", "Durable backpack with laptop compartment and multiple pockets. Water-resistant material. Perfect for students and professionals.", "69.99", 35, "Accessories"},
	{"Wireless Mouse", "Ergonomic wireless mouse with 2.4GHz connectivity. Long battery life and precise tracking. Compatible with Windows and Mac.", "19.99", 80, "Electronics"},
}

const (
	adminEmail    = "admin@store.com"
	adminPassword = "admin123"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := seed(ctx, cfg, logger); err != nil {
		logger.Fatal("Seeding failed", zap.Error(err))
	}
}

func seed(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	mongo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() { _ = mongo.Close(context.Background()) }()

	if err := mongo.EnsureIndexes(ctx); err != nil {
		return err
	}

	logger.Info("Clearing existing data")
	if err := mongo.Products().Clear(ctx); err != nil {
		return err
	}
	if err := mongo.Admins().Clear(ctx); err != nil {
		return err
	}

	perCategory := make(map[string]int)
	var categories []string
	for i, sp := range products {
		// Distinct timestamps give listings a deterministic order.
		at := time.Now().Add(time.Duration(i-len(products)) * time.Second)
		p := &models.Product{
			ID:          uuid.NewString(),
			Name:        sp.name,
			Description: sp.description,
			Price:       decimal.RequireFromString(sp.price),
			Stock:       sp.stock,
			Category:    sp.category,
			Status:      models.ProductActive,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
		if err := mongo.Products().CreateProduct(ctx, p); err != nil {
			return err
		}
		if perCategory[sp.category] == 0 {
			categories = append(categories, sp.category)
		}
		perCategory[sp.category]++
	}
	logger.Info("Products created", zap.Int("count", len(products)))

	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return err
	}
	if err := mongo.Admins().CreateAdmin(ctx, &models.AdminUser{
		ID:           uuid.NewString(),
		Email:        adminEmail,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now(),
	}); err != nil {
		return err
	}
	logger.Info("Admin user created", zap.String("email", adminEmail), zap.String("password", adminPassword))

	for _, c := range categories {
		logger.Info("Category seeded", zap.String("category", c), zap.Int("products", perCategory[c]))
	}
	return nil
}
