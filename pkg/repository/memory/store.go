// Package memory provides in-process stores with the same semantics as the
// MongoDB repositories, including conditional stock decrements and
// compare-and-set status updates. The service and gateway tests run on it.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
)

type Store struct {
	mu       sync.Mutex
	products map[string]*models.Product
	orders   map[string]*models.Order
	lines    map[string][]models.OrderLine
	admins   map[string]*models.AdminUser

	hook     func(op string)
	failures map[string]error
}

func NewStore() *Store {
	return &Store{
		products: make(map[string]*models.Product),
		orders:   make(map[string]*models.Order),
		lines:    make(map[string][]models.OrderLine),
		admins:   make(map[string]*models.AdminUser),
		failures: make(map[string]error),
	}
}

// OnMutate registers fn to run before every mutating operation, outside the lock.
func (s *Store) OnMutate(fn func(op string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

// FailNext makes the next call of op return err.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// enter runs the mutation hook and returns with s.mu held, unless an injected
// failure is returned, in which case the lock is released.
func (s *Store) enter(op string) error {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(op)
	}

	s.mu.Lock()
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		s.mu.Unlock()
		return err
	}
	return nil
}

// Products

func (s *Store) FindProduct(ctx context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(filter.Search)
	var matched []models.Product
	for _, p := range s.products {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		matched = append(matched, *p)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return paginate(matched, filter.Page), int64(len(matched)), nil
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := s.enter("CreateProduct"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; ok {
		return repository.ErrDuplicate
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	if err := s.enter("UpdateProduct"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	existing.Name = p.Name
	existing.Description = p.Description
	existing.Price = p.Price
	existing.Stock = p.Stock
	existing.Category = p.Category
	existing.Status = p.Status
	if p.ImageURL != "" {
		existing.ImageURL = p.ImageURL
	}
	existing.UpdatedAt = p.UpdatedAt

	cp := *existing
	return &cp, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if err := s.enter("DeleteProduct"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) SetProductStatus(ctx context.Context, id string, status models.ProductStatus) (*models.Product, error) {
	if err := s.enter("SetProductStatus"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

// AdjustStock adds delta to the product's stock. Negative deltas only apply
// when the current stock covers them.
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error) {
	if err := s.enter("AdjustStock"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if delta < 0 && p.Stock < -delta {
		return nil, repository.ErrInsufficientStock
	}
	p.Stock += delta
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

// SetStock overwrites a product's stock without hooks, for test setup.
func (s *Store) SetStock(id string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		p.Stock = stock
	}
}

func (s *Store) ProductCategories(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for _, p := range s.products {
		if p.Status == models.ProductActive {
			seen[p.Category] = struct{}{}
		}
	}
	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories, nil
}

func (s *Store) CountLowStockProducts(ctx context.Context, threshold int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, p := range s.products {
		if p.Status == models.ProductActive && p.Stock < threshold {
			n++
		}
	}
	return n, nil
}

// Orders

func (s *Store) CreateOrder(ctx context.Context, o *models.Order) error {
	if err := s.enter("CreateOrder"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; ok {
		return repository.ErrDuplicate
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *Store) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matchOrders(filter)
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Page), int64(len(matched)), nil
}

func (s *Store) CountOrders(ctx context.Context, filter models.OrderFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.matchOrders(filter))), nil
}

func (s *Store) SumOrderTotals(ctx context.Context, filter models.OrderFilter) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := decimal.Zero
	for _, o := range s.matchOrders(filter) {
		sum = sum.Add(o.Total)
	}
	return sum, nil
}

func (s *Store) matchOrders(filter models.OrderFilter) []models.Order {
	var matched []models.Order
	for _, o := range s.orders {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, o.Status) {
			continue
		}
		if containsStatus(filter.ExcludeStatuses, o.Status) {
			continue
		}
		if !filter.From.IsZero() && o.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !o.CreatedAt.Before(filter.To) {
			continue
		}
		matched = append(matched, *o)
	}
	return matched
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) (*models.Order, error) {
	if err := s.enter("UpdateOrderStatus"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if o.Status != from {
		return nil, repository.ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = at
	cp := *o
	return &cp, nil
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	if err := s.enter("DeleteOrder"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

// Order lines

func (s *Store) CreateOrderLines(ctx context.Context, lines []models.OrderLine) error {
	if err := s.enter("CreateOrderLines"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	for _, l := range lines {
		s.lines[l.OrderID] = append(s.lines[l.OrderID], l)
	}
	return nil
}

func (s *Store) FindOrderLines(ctx context.Context, orderID string) ([]models.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]models.OrderLine, len(s.lines[orderID]))
	copy(lines, s.lines[orderID])
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Position < lines[j].Position })
	return lines, nil
}

func (s *Store) DeleteOrderLines(ctx context.Context, orderID string) error {
	if err := s.enter("DeleteOrderLines"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	delete(s.lines, orderID)
	return nil
}

// Counts exposes the number of stored orders and order lines.
func (s *Store) Counts() (orders, lines int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.lines {
		lines += len(l)
	}
	return len(s.orders), lines
}

// Admins

func (s *Store) CreateAdmin(ctx context.Context, a *models.AdminUser) error {
	if err := s.enter("CreateAdmin"); err != nil {
		return err
	}
	defer s.mu.Unlock()

	for _, existing := range s.admins {
		if existing.Email == a.Email {
			return repository.ErrDuplicate
		}
	}
	cp := *a
	s.admins[a.ID] = &cp
	return nil
}

func (s *Store) FindAdmin(ctx context.Context, id string) (*models.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.admins[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) FindAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.admins {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func containsStatus(statuses []models.OrderStatus, s models.OrderStatus) bool {
	for _, status := range statuses {
		if status == s {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page models.Page) []T {
	page = page.Normalize()
	start := int(page.Skip())
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
