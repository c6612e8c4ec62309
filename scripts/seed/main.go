package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/app"
	"github.com/lumbung-pos/lumbung/internal/masterdata/categories"
	"github.com/lumbung-pos/lumbung/internal/masterdata/outlets"
	"github.com/lumbung-pos/lumbung/internal/masterdata/products"
	"github.com/lumbung-pos/lumbung/internal/masterdata/suppliers"
	"github.com/lumbung-pos/lumbung/internal/platform/db"
	"github.com/lumbung-pos/lumbung/internal/purchasing"
	"github.com/lumbung-pos/lumbung/internal/sales"
	"github.com/lumbung-pos/lumbung/internal/shared"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
)

const demoSlug = "lumbung-demo"

type seeder struct {
	pool       *pgxpool.Pool
	tenancy    *tenancy.Service
	outlets    *outlets.Service
	suppliers  *suppliers.Service
	categories *categories.Service
	products   *products.Service
	purchasing *purchasing.Service
	sales      *sales.Service
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	var existing int64
	err = pool.QueryRow(ctx, `SELECT id FROM organizations WHERE slug=$1`, demoSlug).Scan(&existing)
	switch {
	case err == nil:
		fmt.Printf("organization %s already seeded (id=%d)\n", demoSlug, existing)
		return
	case !errors.Is(err, pgx.ErrNoRows):
		log.Fatalf("check organization: %v", err)
	}

	tenancySvc := tenancy.NewService(tenancy.NewRepository(pool), nil, nil)
	audit := shared.NewAuditLogger(pool)
	idem := shared.NewIdempotencyStore(pool)
	s := seeder{
		pool:       pool,
		tenancy:    tenancySvc,
		outlets:    outlets.NewService(outlets.NewRepository(pool), tenancySvc),
		suppliers:  suppliers.NewService(suppliers.NewRepository(pool)),
		categories: categories.NewService(categories.NewRepository(pool)),
		products:   products.NewService(products.NewRepository(pool), tenancySvc),
		purchasing: purchasing.NewService(purchasing.NewRepository(pool), audit, idem, nil),
		sales:      sales.NewService(sales.NewRepository(pool), audit, idem, nil, nil, sales.ServiceConfig{}),
	}
	if err := s.run(ctx); err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func (s seeder) run(ctx context.Context) error {
	fmt.Println("→ Seeding organization...")
	org, err := s.tenancy.Create(ctx, tenancy.CreateOrganizationInput{Name: "Toko Lumbung Demo", Slug: demoSlug, Plan: tenancy.PlanPro})
	if err != nil {
		return fmt.Errorf("organization: %w", err)
	}

	fmt.Println("→ Seeding outlets...")
	pusat, err := s.outlets.Create(ctx, outlets.Outlet{OrganizationID: org.ID, Code: "PST", Name: "Toko Pusat", Address: "Jl. Merdeka No. 1, Bandung", IsActive: true})
	if err != nil {
		return fmt.Errorf("outlet: %w", err)
	}
	if _, err := s.outlets.Create(ctx, outlets.Outlet{OrganizationID: org.ID, Code: "CBG1", Name: "Cabang Dago", IsActive: true}); err != nil {
		return fmt.Errorf("outlet: %w", err)
	}

	fmt.Println("→ Seeding suppliers...")
	supplier, err := s.suppliers.Create(ctx, suppliers.Supplier{
		OrganizationID: org.ID, Code: "SUP-001", Name: "PT Sumber Pangan", ContactPerson: "Budi", Phone: "022-555-0101", IsActive: true,
	})
	if err != nil {
		return fmt.Errorf("supplier: %w", err)
	}

	fmt.Println("→ Seeding catalog...")
	catIDs := map[string]int64{}
	for _, name := range []string{"Minuman", "Makanan Ringan", "Sembako"} {
		c, err := s.categories.Create(ctx, categories.Category{OrganizationID: org.ID, Name: name})
		if err != nil {
			return fmt.Errorf("category %s: %w", name, err)
		}
		catIDs[name] = c.ID
	}
	catalog := []struct {
		sku, name, category string
		cost, price, min    int64
	}{
		{"MNM-001", "Teh Botol 350ml", "Minuman", 3500, 5000, 24},
		{"MNM-002", "Air Mineral 600ml", "Minuman", 2200, 4000, 48},
		{"SNK-001", "Keripik Singkong 100g", "Makanan Ringan", 6500, 10000, 12},
		{"SBK-001", "Beras Premium 5kg", "Sembako", 62000, 75000, 10},
		{"SBK-002", "Minyak Goreng 1L", "Sembako", 14500, 18000, 20},
	}
	items := make([]purchasing.ItemInput, 0, len(catalog))
	for _, c := range catalog {
		catID := catIDs[c.category]
		p, err := s.products.Create(ctx, products.Product{
			OrganizationID: org.ID,
			CategoryID:     &catID,
			SKU:            c.sku,
			Name:           c.name,
			Unit:           "pcs",
			CostPrice:      decimal.NewFromInt(c.cost),
			SellingPrice:   decimal.NewFromInt(c.price),
			MinStock:       decimal.NewFromInt(c.min),
			IsActive:       true,
		})
		if err != nil {
			return fmt.Errorf("product %s: %w", c.sku, err)
		}
		items = append(items, purchasing.ItemInput{ProductID: p.ID, Quantity: decimal.NewFromInt(c.min * 3), UnitCost: decimal.NewFromInt(c.cost)})
	}

	fmt.Println("→ Seeding purchasing...")
	po, err := s.purchasing.Create(ctx, org.ID, purchasing.DraftInput{
		OutletID:   pusat.ID,
		SupplierID: supplier.ID,
		OrderDate:  time.Now().UTC().AddDate(0, 0, -7),
		Notes:      "Stok awal",
		Items:      items,
	})
	if err != nil {
		return fmt.Errorf("purchase order: %w", err)
	}
	if po, err = s.purchasing.ChangeStatus(ctx, org.ID, po.ID, purchasing.StatusOrdered, 0); err != nil {
		return fmt.Errorf("order purchase: %w", err)
	}
	lines := make([]purchasing.ReceiveLine, 0, len(po.Items))
	for _, it := range po.Items {
		lines = append(lines, purchasing.ReceiveLine{ItemID: it.ID, Quantity: it.QuantityOrdered})
	}
	if _, err := s.purchasing.ReceiveGoods(ctx, org.ID, po.ID, purchasing.ReceiveInput{Items: lines, Note: "diterima lengkap"}); err != nil {
		return fmt.Errorf("receive goods: %w", err)
	}

	fmt.Println("→ Seeding sales...")
	baskets := [][]int{{0, 2}, {1, 1, 4}, {3}}
	for n, basket := range baskets {
		input := sales.CheckoutInput{OutletID: pusat.ID, PaymentMethod: sales.PaymentCash, AmountPaid: decimal.NewFromInt(200000), TaxRate: decimal.NewFromInt(11)}
		if n == 1 {
			input.PaymentMethod = sales.PaymentQRIS
			input.AmountPaid = decimal.Zero
		}
		for _, idx := range basket {
			input.Items = append(input.Items, sales.ItemInput{ProductID: items[idx].ProductID, Quantity: decimal.NewFromInt(2)})
		}
		if _, err := s.sales.Checkout(ctx, org.ID, input); err != nil {
			return fmt.Errorf("sale %d: %w", n+1, err)
		}
	}
	return nil
}
