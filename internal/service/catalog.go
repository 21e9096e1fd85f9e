package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/pricing"
	"gstpos/backend/internal/store"
)

const barcodeAttempts = 10

// GenerateBarcode returns a random six digit code.
func GenerateBarcode() string {
	return fmt.Sprintf("%06d", 100000+rand.IntN(900000))
}

// ListProducts returns non-deleted products, optionally narrowed by a
// case-insensitive match on name or barcode.
func (s *Service) ListProducts(ctx context.Context, search string) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return nil, err
	}
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return products, nil
	}
	filtered := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), search) || strings.Contains(p.Barcode, search) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Deleted {
		return nil, store.ErrNotFound
	}
	return product, nil
}

// LookupBarcode resolves a scanned code. The cache is advisory: read or
// write failures fall through to the repository.
func (s *Service) LookupBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, invalid("barcode", "barcode is required")
	}

	cached, ok, err := s.cache.Get(ctx, barcode)
	if err != nil {
		s.log.WithError(err).Warn("product cache read failed")
	}
	if ok {
		return cached, nil
	}

	product, err := s.repo.FindProductByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, barcode, product, s.cacheTTL); err != nil {
		s.log.WithError(err).Warn("product cache write failed")
	}
	return product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if err := pricing.ValidateSlab(req.GST); err != nil {
		return nil, invalid("gst", "%s", err.Error())
	}

	product := domain.Product{
		Name:        req.Name,
		Barcode:     strings.TrimSpace(req.Barcode),
		Category:    req.Category,
		SubCategory: strings.TrimSpace(req.SubCategory),
		MRP:         req.MRP,
		Price:       req.Price,
		CostPrice:   req.CostPrice,
		GST:         req.GST,
		Stock:       req.Stock,
	}
	if product.Barcode != "" {
		return s.repo.CreateProduct(ctx, product)
	}

	var lastErr error
	for range barcodeAttempts {
		product.Barcode = GenerateBarcode()
		created, err := s.repo.CreateProduct(ctx, product)
		if err == nil {
			return created, nil
		}
		if !store.IsConflictOn(err, store.FieldBarcode) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("generate barcode: %w", lastErr)
}

// UpdateProduct applies a partial update. An explicitly empty barcode asks for
// a freshly generated one.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	current, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	oldBarcode := current.Barcode

	next := *current
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, invalid("name", "name cannot be empty")
		}
		next.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		if strings.TrimSpace(*req.Category) == "" {
			return nil, invalid("category", "category cannot be empty")
		}
		next.Category = strings.TrimSpace(*req.Category)
	}
	if req.SubCategory != nil {
		next.SubCategory = strings.TrimSpace(*req.SubCategory)
	}
	if req.MRP != nil {
		if *req.MRP < 0 {
			return nil, invalid("mrp", "mrp cannot be negative")
		}
		next.MRP = req.MRP
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return nil, invalid("price", "price must be positive")
		}
		next.Price = *req.Price
	}
	if req.CostPrice != nil {
		if *req.CostPrice < 0 {
			return nil, invalid("costPrice", "cost price cannot be negative")
		}
		next.CostPrice = *req.CostPrice
	}
	if req.GST != nil {
		if err := pricing.ValidateSlab(*req.GST); err != nil {
			return nil, invalid("gst", "%s", err.Error())
		}
		next.GST = *req.GST
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, invalid("stock", "stock cannot be negative")
		}
		next.Stock = *req.Stock
	}

	regenerate := req.Barcode != nil && strings.TrimSpace(*req.Barcode) == ""
	if req.Barcode != nil && !regenerate {
		next.Barcode = strings.TrimSpace(*req.Barcode)
	}

	attempts := 1
	if regenerate {
		attempts = barcodeAttempts
	}
	var updated *domain.Product
	for range attempts {
		if regenerate {
			next.Barcode = GenerateBarcode()
		}
		updated, err = s.repo.UpdateProduct(ctx, next)
		if err == nil || !regenerate || !store.IsConflictOn(err, store.FieldBarcode) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.dropCached(ctx, oldBarcode, updated.Barcode)
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDeleteProduct(ctx, id); err != nil {
		return err
	}
	s.dropCached(ctx, product.Barcode)
	return nil
}

func (s *Service) invalidateProducts(ctx context.Context, products map[string]domain.Product) {
	barcodes := make([]string, 0, len(products))
	for _, p := range products {
		barcodes = append(barcodes, p.Barcode)
	}
	s.dropCached(ctx, barcodes...)
}

func (s *Service) dropCached(ctx context.Context, barcodes ...string) {
	if len(barcodes) == 0 {
		return
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), barcodes...); err != nil && !errors.Is(err, context.Canceled) {
		s.log.WithError(err).Warn("product cache invalidation failed")
	}
}
