package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"pos-service/internal/apperrors"
	"pos-service/internal/models"

	"github.com/shopspring/decimal"
)

// PricingResolver computes the effective unit price of a menu item at a
// point in time. It is side-effect free and safe for concurrent use.
type PricingResolver struct {
	store Store
	cache MenuCache
}

// NewPricingResolver creates a pricing resolver.
func NewPricingResolver(store Store, cache MenuCache) *PricingResolver {
	return &PricingResolver{store: store, cache: cache}
}

// EffectivePrice resolves the price for a menu item at the given time,
// fetching the item through the cache when one is configured.
func (r *PricingResolver) EffectivePrice(ctx context.Context, restaurantID, menuItemID int64, at time.Time) (decimal.Decimal, error) {
	item, err := r.menuItem(ctx, menuItemID)
	if err != nil {
		return decimal.Zero, err
	}
	if item == nil || item.RestaurantID != restaurantID {
		return decimal.Zero, apperrors.NotFound("menu item %d not found", menuItemID)
	}
	return r.EffectivePriceFor(ctx, item, at)
}

// EffectivePriceFor resolves the price for an already-fetched menu item.
// The highest-priority matching rule wins; on a priority tie a limited-time
// rule beats a recurring one. With no match the base price applies.
func (r *PricingResolver) EffectivePriceFor(ctx context.Context, item *models.MenuItem, at time.Time) (decimal.Decimal, error) {
	rules, err := r.store.GetActivePricingRules(ctx, item.RestaurantID, item.ID)
	if err != nil {
		return decimal.Zero, err
	}

	// Rules arrive pre-sorted by priority desc, limited-time first on ties,
	// so the first match is the winner.
	for _, rule := range rules {
		if ruleMatches(&rule, at) {
			return rule.Price, nil
		}
	}
	return item.BasePrice, nil
}

func (r *PricingResolver) menuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	if r.cache != nil {
		if item, ok := r.cache.GetMenuItem(ctx, id); ok {
			return item, nil
		}
	}
	item, err := r.store.GetMenuItemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item != nil && r.cache != nil {
		r.cache.SetMenuItem(ctx, item)
	}
	return item, nil
}

func ruleMatches(rule *models.PricingRule, at time.Time) bool {
	switch rule.RuleType {
	case models.RuleTypeLimitedTime:
		if rule.StartDate != nil && at.Before(*rule.StartDate) {
			return false
		}
		if rule.EndDate != nil && at.After(*rule.EndDate) {
			return false
		}
	case models.RuleTypeRecurring:
		if !weekdayInSet(rule.DaysOfWeek, at.Weekday()) {
			return false
		}
	default:
		return false
	}

	if rule.StartTime != "" && rule.EndTime != "" {
		return clockInWindow(at, rule.StartTime, rule.EndTime)
	}
	return true
}

func weekdayInSet(daysCSV string, day time.Weekday) bool {
	for _, part := range strings.Split(daysCSV, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if time.Weekday(n) == day {
			return true
		}
	}
	return false
}

// clockInWindow checks the HH:MM of at against [start, end]. A window with
// start after end wraps past midnight (happy hour 22:00-02:00).
func clockInWindow(at time.Time, start, end string) bool {
	t := at.Format("15:04")
	if start <= end {
		return t >= start && t <= end
	}
	return t >= start || t <= end
}
