// Package stats folds orders and their sorting batches into dashboard totals.
//
// Every function here is pure. Sums are integer and buckets are keyed, so the
// result for a scope never depends on the order of the input slices.
package stats

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sortirkopi/bean-order-api/models"
)

// ScopeKind names a reporting scope
type ScopeKind string

const (
	ScopePerOrder ScopeKind = "order"
	ScopeMonth    ScopeKind = "month"
	ScopeYear     ScopeKind = "year"
)

// Scope selects the batches a report covers. OrderID 0 in a per-order scope
// means every order passed to Aggregate.
type Scope struct {
	Kind    ScopeKind  `json:"kind"`
	OrderID uint       `json:"order_id,omitempty"`
	Year    int        `json:"year,omitempty"`
	Month   time.Month `json:"month,omitempty"`
}

// PerOrder scopes to one order, or to all orders when id is 0
func PerOrder(id uint) Scope { return Scope{Kind: ScopePerOrder, OrderID: id} }

// Month scopes to batches created in the given calendar month (UTC)
func Month(year int, month time.Month) Scope {
	return Scope{Kind: ScopeMonth, Year: year, Month: month}
}

// Year scopes to batches created in the given calendar year (UTC)
func Year(year int) Scope { return Scope{Kind: ScopeYear, Year: year} }

// Validate checks the scope's parameters
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopePerOrder:
		return nil
	case ScopeMonth:
		if s.Month < time.January || s.Month > time.December {
			return fmt.Errorf("month must be between 1 and 12")
		}
		fallthrough
	case ScopeYear:
		if s.Year < 1 || s.Year > 9999 {
			return fmt.Errorf("year must be between 1 and 9999")
		}
		return nil
	default:
		return fmt.Errorf("unknown scope %q", s.Kind)
	}
}

// Bounds returns the [from, to) window of a month or year scope
func (s Scope) Bounds() (from, to time.Time, ok bool) {
	switch s.Kind {
	case ScopeMonth:
		from = time.Date(s.Year, s.Month, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, 0), true
	case ScopeYear:
		from = time.Date(s.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(1, 0, 0), true
	}
	return time.Time{}, time.Time{}, false
}

func (s Scope) inWindow(t time.Time) bool {
	from, to, ok := s.Bounds()
	if !ok {
		return true
	}
	t = t.UTC()
	return !t.Before(from) && t.Before(to)
}

// Totals are the bean counts for a set of batches
type Totals struct {
	Total    int64   `json:"total"`
	Healthy  int64   `json:"healthy"`
	Defect   int64   `json:"defect"`
	Accuracy float64 `json:"accuracy"`
}

func (t *Totals) add(b models.Batch) {
	t.Total += b.TotalBeans
	t.Healthy += b.HealthyBeans
	t.Defect += b.DefectiveBeans
}

func (t *Totals) finish() {
	t.Accuracy = Accuracy(t.Healthy, t.Total)
}

// Bucket is one point of the time (or per-order) series
type Bucket struct {
	Label string `json:"label"`
	Totals
}

// OrderSummary counts the scoped orders by fulfillment status. Spent ignores
// cancelled orders.
type OrderSummary struct {
	Count         int             `json:"count"`
	Pending       int             `json:"pending"`
	Processing    int             `json:"processing"`
	Completed     int             `json:"completed"`
	Cancelled     int             `json:"cancelled"`
	TotalWeightKg decimal.Decimal `json:"total_weight_kg"`
	TotalSpent    int64           `json:"total_spent"`
}

// Stats is the aggregate for one scope
type Stats struct {
	Scope   Scope        `json:"scope"`
	Totals
	Batches int          `json:"batches"`
	Series  []Bucket     `json:"series"`
	Orders  OrderSummary `json:"orders"`
}

// Accuracy is healthy/total as a percentage rounded to one decimal, or 0
// when there are no beans.
func Accuracy(healthy, total int64) float64 {
	if total <= 0 {
		return 0
	}
	// tenths of a percent, rounded half up on the exact remainder
	t := decimal.NewFromInt(total)
	tenths, rem := decimal.NewFromInt(healthy).Mul(decimal.NewFromInt(1000)).QuoRem(t, 0)
	if rem.Mul(decimal.NewFromInt(2)).GreaterThanOrEqual(t) {
		tenths = tenths.Add(decimal.NewFromInt(1))
	}
	return tenths.Shift(-1).InexactFloat64()
}

// Aggregate folds the batches of the given orders that fall in scope
func Aggregate(orders []models.Order, batches []models.Batch, scope Scope) Stats {
	scopedOrders := SelectOrders(orders, scope)
	scopedBatches := SelectBatches(orders, batches, scope)

	st := Stats{Scope: scope, Batches: len(scopedBatches)}
	for _, b := range scopedBatches {
		st.add(b)
	}
	st.finish()

	st.Series = series(scopedOrders, scopedBatches, scope)
	st.Orders = summarize(scopedOrders)
	return st
}

// SelectOrders returns the orders a scope reports on: the selected order (or
// all) for per-order scopes, orders created inside the window otherwise.
func SelectOrders(orders []models.Order, scope Scope) []models.Order {
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		switch {
		case scope.Kind == ScopePerOrder && scope.OrderID != 0:
			if o.ID == scope.OrderID {
				out = append(out, o)
			}
		case scope.inWindow(o.CreatedAt):
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SelectBatches returns the batches linked to the given orders that fall in
// scope, sorted by creation time then ID.
func SelectBatches(orders []models.Order, batches []models.Batch, scope Scope) []models.Batch {
	known := make(map[uint]bool, len(orders))
	for _, o := range orders {
		known[o.ID] = true
	}

	out := make([]models.Batch, 0, len(batches))
	for _, b := range batches {
		if !known[b.OrderID] {
			continue
		}
		if scope.Kind == ScopePerOrder && scope.OrderID != 0 && b.OrderID != scope.OrderID {
			continue
		}
		if !scope.inWindow(b.CreatedAt) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// series buckets per day for a month, per month for a year, per order otherwise.
// Every bucket of the period is present, including empty ones.
func series(orders []models.Order, batches []models.Batch, scope Scope) []Bucket {
	var keys []int
	labels := map[int]string{}
	keyOf := func(b models.Batch) int { return int(b.OrderID) }

	switch scope.Kind {
	case ScopeMonth:
		from, to, _ := scope.Bounds()
		for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
			keys = append(keys, d.Day())
			labels[d.Day()] = d.Format("2006-01-02")
		}
		keyOf = func(b models.Batch) int { return b.CreatedAt.UTC().Day() }
	case ScopeYear:
		for m := time.January; m <= time.December; m++ {
			keys = append(keys, int(m))
			labels[int(m)] = fmt.Sprintf("%04d-%02d", scope.Year, int(m))
		}
		keyOf = func(b models.Batch) int { return int(b.CreatedAt.UTC().Month()) }
	default:
		for _, o := range orders {
			keys = append(keys, int(o.ID))
			labels[int(o.ID)] = strconv.FormatUint(uint64(o.ID), 10)
		}
	}

	totals := make(map[int]*Totals, len(keys))
	for _, k := range keys {
		totals[k] = &Totals{}
	}
	for _, b := range batches {
		if t, ok := totals[keyOf(b)]; ok {
			t.add(b)
		}
	}

	sort.Ints(keys)
	out := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		t := totals[k]
		t.finish()
		out = append(out, Bucket{Label: labels[k], Totals: *t})
	}
	return out
}

func summarize(orders []models.Order) OrderSummary {
	sum := OrderSummary{Count: len(orders), TotalWeightKg: decimal.Zero}
	for _, o := range orders {
		switch o.FulfillmentStatus {
		case models.FulfillmentPending:
			sum.Pending++
		case models.FulfillmentProcessing:
			sum.Processing++
		case models.FulfillmentCompleted:
			sum.Completed++
		case models.FulfillmentCancelled:
			sum.Cancelled++
		}
		if o.FulfillmentStatus != models.FulfillmentCancelled {
			sum.TotalWeightKg = sum.TotalWeightKg.Add(o.WeightKg)
			sum.TotalSpent += o.TotalPrice
		}
	}
	return sum
}
