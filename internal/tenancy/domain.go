package tenancy

import (
	"fmt"
	"time"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

// Plan names a subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanBasic      Plan = "basic"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

var planRank = map[Plan]int{
	PlanFree:       0,
	PlanBasic:      1,
	PlanPro:        2,
	PlanEnterprise: 3,
}

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	_, ok := planRank[p]
	return ok
}

// AtLeast reports whether p is the same tier as other or above it.
func (p Plan) AtLeast(other Plan) bool {
	return planRank[p] >= planRank[other]
}

// FeatureKey names a gated capability.
type FeatureKey string

const (
	FeaturePurchaseOrders     FeatureKey = "purchase_orders"
	FeatureSuppliers          FeatureKey = "suppliers"
	FeatureAdvancedReports    FeatureKey = "advanced_reports"
	FeatureInventoryValuation FeatureKey = "inventory_valuation"
	FeatureMultiOutlet        FeatureKey = "multi_outlet"
	FeatureStockOpname        FeatureKey = "stock_opname"
	FeatureLowStockAlerts     FeatureKey = "low_stock_alerts"
)

// featureMinPlan is the cheapest plan carrying each feature.
var featureMinPlan = map[FeatureKey]Plan{
	FeatureStockOpname:        PlanBasic,
	FeatureLowStockAlerts:     PlanBasic,
	FeatureSuppliers:          PlanBasic,
	FeaturePurchaseOrders:     PlanPro,
	FeatureAdvancedReports:    PlanPro,
	FeatureInventoryValuation: PlanPro,
	FeatureMultiOutlet:        PlanPro,
}

// Valid reports whether k is a known feature.
func (k FeatureKey) Valid() bool {
	_, ok := featureMinPlan[k]
	return ok
}

// AllFeatures lists every feature key in a stable order.
func AllFeatures() []FeatureKey {
	return []FeatureKey{
		FeaturePurchaseOrders,
		FeatureSuppliers,
		FeatureAdvancedReports,
		FeatureInventoryValuation,
		FeatureMultiOutlet,
		FeatureStockOpname,
		FeatureLowStockAlerts,
	}
}

// PlanIncludes reports whether plan grants the feature without overrides.
func PlanIncludes(plan Plan, key FeatureKey) bool {
	min, ok := featureMinPlan[key]
	if !ok {
		return false
	}
	return plan.AtLeast(min)
}

// LimitKey names a numeric plan quota.
type LimitKey string

const (
	LimitOutlets  LimitKey = "max_outlets"
	LimitProducts LimitKey = "max_products"
)

// enterprise is absent: it has no quotas.
var planLimits = map[Plan]map[LimitKey]int{
	PlanFree:  {LimitOutlets: 1, LimitProducts: 100},
	PlanBasic: {LimitOutlets: 2, LimitProducts: 1000},
	PlanPro:   {LimitOutlets: 5, LimitProducts: 10000},
}

// PlanLimit returns the quota for plan or nil when unlimited.
func PlanLimit(plan Plan, key LimitKey) *int {
	limits, ok := planLimits[plan]
	if !ok {
		return nil
	}
	v, ok := limits[key]
	if !ok {
		return nil
	}
	return &v
}

// Organization is a tenant.
type Organization struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	Plan          Plan       `json:"plan"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// EffectivePlan downgrades to free once a paid plan has lapsed.
func (o Organization) EffectivePlan(now time.Time) Plan {
	if !o.Plan.Valid() {
		return PlanFree
	}
	if o.PlanExpiresAt != nil && !o.PlanExpiresAt.After(now) {
		return PlanFree
	}
	return o.Plan
}

// Decision is a cached feature verdict for an organization.
type Decision struct {
	Allowed bool
	Plan    Plan
}

// CreateOrganizationInput describes a new tenant.
type CreateOrganizationInput struct {
	Name          string
	Slug          string
	Plan          Plan
	PlanExpiresAt *time.Time
}

var (
	// ErrOrganizationNotFound is returned for unknown tenants.
	ErrOrganizationNotFound = fmt.Errorf("tenancy: organization %w", shared.ErrNotFound)
	// ErrDuplicateSlug reports a slug owned by another organization.
	ErrDuplicateSlug = fmt.Errorf("tenancy: slug already taken: %w", shared.ErrConflict)
	// ErrUnknownPlan rejects plans outside the catalogue.
	ErrUnknownPlan = fmt.Errorf("tenancy: unknown plan: %w", shared.ErrValidation)
	// ErrUnknownFeature rejects feature keys outside the catalogue.
	ErrUnknownFeature = fmt.Errorf("tenancy: unknown feature: %w", shared.ErrValidation)
	// ErrLimitReached signals a plan quota was exhausted.
	ErrLimitReached = fmt.Errorf("tenancy: plan limit reached: %w", shared.ErrFeatureUnavailable)
	// ErrInvalidOrganization rejects incomplete organization input.
	ErrInvalidOrganization = fmt.Errorf("tenancy: name and slug required: %w", shared.ErrValidation)
)
