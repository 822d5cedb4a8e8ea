package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/storefront/pkg/models"
)

type ProductStore struct {
	coll *mongo.Collection
}

func (s *ProductStore) FindProduct(ctx context.Context, id string) (*models.Product, error) {
	var doc productDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return doc.model()
}

func productQuery(filter models.ProductFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Search != "" {
		pattern := literalPattern(filter.Search)
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}
	return query
}

// literalPattern matches s literally, ignoring case.
func literalPattern(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

func (s *ProductStore) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	query := productQuery(filter)
	page := filter.Page.Normalize()

	total, err := s.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))

	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode products: %w", err)
	}

	products := make([]models.Product, 0, len(docs))
	for i := range docs {
		p, err := docs[i].model()
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	return products, total, nil
}

func (s *ProductStore) CreateProduct(ctx context.Context, p *models.Product) error {
	doc, err := newProductDoc(p)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// UpdateProduct replaces the editable fields. An empty ImageURL keeps the stored image.
func (s *ProductStore) UpdateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return nil, err
	}

	set := bson.M{
		"name":        p.Name,
		"description": p.Description,
		"price":       price,
		"stock":       p.Stock,
		"category":    p.Category,
		"status":      string(p.Status),
		"updatedAt":   p.UpdatedAt,
	}
	if p.ImageURL != "" {
		set["imageUrl"] = p.ImageURL
	}

	return s.findAndUpdate(ctx, bson.M{"_id": p.ID}, bson.M{"$set": set})
}

func (s *ProductStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ProductStore) SetProductStatus(ctx context.Context, id string, status models.ProductStatus) (*models.Product, error) {
	return s.findAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":    string(status),
		"updatedAt": time.Now(),
	}})
}

// AdjustStock adds delta to the product's stock in a single update. A negative
// delta carries a stock >= -delta guard, so concurrent debits cannot oversell.
func (s *ProductStore) AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error) {
	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["stock"] = bson.M{"$gte": -delta}
	}

	p, err := s.findAndUpdate(ctx, filter, bson.M{
		"$inc": bson.M{"stock": delta},
		"$set": bson.M{"updatedAt": time.Now()},
	})
	if errors.Is(err, ErrNotFound) && delta < 0 {
		n, cerr := s.coll.CountDocuments(ctx, bson.M{"_id": id})
		if cerr != nil {
			return nil, fmt.Errorf("failed to check product: %w", cerr)
		}
		if n > 0 {
			return nil, ErrInsufficientStock
		}
	}
	return p, err
}

func (s *ProductStore) findAndUpdate(ctx context.Context, filter, update bson.M) (*models.Product, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc productDoc
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return doc.model()
}

func (s *ProductStore) ProductCategories(ctx context.Context) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "category", bson.M{"status": string(models.ProductActive)})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := make([]string, 0, len(values))
	for _, v := range values {
		if c, ok := v.(string); ok {
			categories = append(categories, c)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (s *ProductStore) CountLowStockProducts(ctx context.Context, threshold int) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{
		"stock":  bson.M{"$lt": threshold},
		"status": string(models.ProductActive),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count low stock products: %w", err)
	}
	return n, nil
}

// Clear removes every product.
func (s *ProductStore) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear products: %w", err)
	}
	return nil
}
