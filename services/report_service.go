package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sortirkopi/bean-order-api/apperror"
	"github.com/sortirkopi/bean-order-api/models"
	"github.com/sortirkopi/bean-order-api/repository"
	"github.com/sortirkopi/bean-order-api/stats"
)

// Report is the data behind a dashboard export
type Report struct {
	Stats       stats.Stats    `json:"stats"`
	Batches     []models.Batch `json:"batches"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// ReportService builds dashboard statistics and report exports
type ReportService struct {
	orders  *repository.OrderRepository
	batches *repository.BatchRepository
	now     func() time.Time
}

// NewReportService creates a report service
func NewReportService(orders *repository.OrderRepository, batches *repository.BatchRepository) *ReportService {
	return &ReportService{
		orders:  orders,
		batches: batches,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Stats aggregates the orders visible to user for scope
func (s *ReportService) Stats(ctx context.Context, user *models.User, scope stats.Scope) (stats.Stats, error) {
	orders, batches, err := s.load(ctx, user, scope)
	if err != nil {
		return stats.Stats{}, err
	}
	return stats.Aggregate(orders, batches, scope), nil
}

// Build assembles the stats and the scoped batches for an export
func (s *ReportService) Build(ctx context.Context, user *models.User, scope stats.Scope) (*Report, error) {
	orders, batches, err := s.load(ctx, user, scope)
	if err != nil {
		return nil, err
	}
	return &Report{
		Stats:       stats.Aggregate(orders, batches, scope),
		Batches:     stats.SelectBatches(orders, batches, scope),
		GeneratedAt: s.now(),
	}, nil
}

func (s *ReportService) load(ctx context.Context, user *models.User, scope stats.Scope) ([]models.Order, []models.Batch, error) {
	if err := scope.Validate(); err != nil {
		return nil, nil, apperror.Invalid(err.Error())
	}

	var orders []models.Order
	if scope.Kind == stats.ScopePerOrder && scope.OrderID != 0 {
		order, err := s.orders.GetOrder(ctx, scope.OrderID)
		if err != nil {
			return nil, nil, err
		}
		if err := checkOwner(user, order); err != nil {
			return nil, nil, err
		}
		orders = []models.Order{*order}
	} else {
		filter := repository.OrderFilter{}
		if !user.IsAdmin() {
			filter.CustomerID = user.ID
		}
		var err error
		if orders, _, err = s.orders.ListOrders(ctx, filter); err != nil {
			return nil, nil, err
		}
	}

	ids := make([]uint, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	from, to, _ := scope.Bounds()
	batches, err := s.batches.ListBatches(ctx, repository.BatchFilter{OrderIDs: ids, From: from, To: to})
	if err != nil {
		return nil, nil, err
	}
	return orders, batches, nil
}

// WriteCSV renders a report as CSV: a summary block, the series, then one
// row per batch.
func WriteCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	st := r.Stats

	rows := [][]string{
		{"report", reportTitle(st.Scope)},
		{"generated_at", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"orders", strconv.Itoa(st.Orders.Count)},
		{"total_weight_kg", st.Orders.TotalWeightKg.String()},
		{"total_spent", strconv.FormatInt(st.Orders.TotalSpent, 10)},
		{"batches", strconv.Itoa(st.Batches)},
		{"total_beans", strconv.FormatInt(st.Total, 10)},
		{"healthy_beans", strconv.FormatInt(st.Healthy, 10)},
		{"defective_beans", strconv.FormatInt(st.Defect, 10)},
		{"accuracy", formatPercent(st.Accuracy)},
		{},
		{"period", "total", "healthy", "defect", "accuracy"},
	}
	for _, b := range st.Series {
		rows = append(rows, []string{
			b.Label,
			strconv.FormatInt(b.Total, 10),
			strconv.FormatInt(b.Healthy, 10),
			strconv.FormatInt(b.Defect, 10),
			formatPercent(b.Accuracy),
		})
	}

	rows = append(rows, []string{}, []string{"batch_id", "order_id", "created_at", "weight_kg", "total", "healthy", "defect", "accuracy"})
	for _, b := range r.Batches {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(b.ID), 10),
			strconv.FormatUint(uint64(b.OrderID), 10),
			b.CreatedAt.UTC().Format(time.RFC3339),
			b.Weight.String(),
			strconv.FormatInt(b.TotalBeans, 10),
			strconv.FormatInt(b.HealthyBeans, 10),
			strconv.FormatInt(b.DefectiveBeans, 10),
			formatPercent(stats.Accuracy(b.HealthyBeans, b.TotalBeans)),
		})
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReportFilename names an export after its scope
func ReportFilename(scope stats.Scope) string {
	return "bean-report-" + reportTitle(scope) + ".csv"
}

func reportTitle(scope stats.Scope) string {
	switch scope.Kind {
	case stats.ScopeMonth:
		return fmt.Sprintf("%04d-%02d", scope.Year, int(scope.Month))
	case stats.ScopeYear:
		return fmt.Sprintf("%04d", scope.Year)
	}
	if scope.OrderID != 0 {
		return fmt.Sprintf("order-%d", scope.OrderID)
	}
	return "all-orders"
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
