package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/visioncraft/storefront/internal/models"
)

// StatsStore answers the read-only admin dashboard queries.
type StatsStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewStatsStore(db *sql.DB) *StatsStore {
	return &StatsStore{db: db, now: time.Now}
}

func (s *StatsStore) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	var (
		stats   models.DashboardStats
		revenue decimal.Decimal
	)

	if err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(total), 0) FROM orders WHERE status != 'cancelled'").Scan(&revenue); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	stats.TotalRevenue = models.NewMoney(revenue)

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM orders", &stats.TotalOrders},
		{"SELECT COUNT(*) FROM products WHERE is_active = TRUE", &stats.ActiveProducts},
		{"SELECT COUNT(*) FROM users WHERE role = 'customer'", &stats.TotalCustomers},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count (%s): %w", c.query, err)
		}
	}

	top, err := s.topProducts(ctx)
	if err != nil {
		return nil, err
	}
	stats.TopProducts = top

	recent, err := s.recentOrders(ctx)
	if err != nil {
		return nil, err
	}
	stats.RecentOrders = recent
	return &stats, nil
}

func (s *StatsStore) topProducts(ctx context.Context) ([]models.TopProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name,
		       COALESCE(SUM(oi.quantity), 0) AS sales,
		       COALESCE(SUM(oi.price * oi.quantity), 0) AS revenue
		FROM products p
		LEFT JOIN order_items oi ON oi.product_id = p.id
		GROUP BY p.id, p.name
		ORDER BY sales DESC
		LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("failed to load top products: %w", err)
	}
	defer rows.Close()

	top := []models.TopProduct{}
	for rows.Next() {
		var t models.TopProduct
		if err := rows.Scan(&t.ID, &t.Name, &t.Sales, &t.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan top product: %w", err)
		}
		top = append(top, t)
	}
	return top, rows.Err()
}

func (s *StatsStore) recentOrders(ctx context.Context) ([]models.RecentOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.id, CONCAT(u.first_name, ' ', u.last_name),
		       GROUP_CONCAT(p.name ORDER BY p.name SEPARATOR ', '),
		       o.total, o.status, o.created_at
		FROM orders o
		JOIN users u ON u.id = o.user_id
		JOIN order_items oi ON oi.order_id = o.id
		JOIN products p ON p.id = oi.product_id
		GROUP BY o.id, u.first_name, u.last_name, o.total, o.status, o.created_at
		ORDER BY o.created_at DESC
		LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent orders: %w", err)
	}
	defer rows.Close()

	recent := []models.RecentOrder{}
	for rows.Next() {
		var (
			r       models.RecentOrder
			created time.Time
		)
		if err := rows.Scan(&r.ID, &r.Customer, &r.Product, &r.Amount, &r.Status, &created); err != nil {
			return nil, fmt.Errorf("failed to scan recent order: %w", err)
		}
		r.Customer = strings.TrimSpace(r.Customer)
		r.Date = created.Format("2006-01-02")
		recent = append(recent, r)
	}
	return recent, rows.Err()
}

// PeriodDays maps a chart period to a day count. Unknown periods are 7 days.
func PeriodDays(period string) int {
	switch period {
	case "30d":
		return 30
	case "3m":
		return 90
	default:
		return 7
	}
}

// SalesChart returns one point per day from the start of the period through
// today, with days that had no orders filled with zeros.
func (s *StatsStore) SalesChart(ctx context.Context, period string) ([]models.SalesPoint, error) {
	now := s.now().UTC()
	start := now.AddDate(0, 0, -PeriodDays(period))

	rows, err := s.db.QueryContext(ctx, `
		SELECT DATE_FORMAT(created_at, '%Y-%m-%d') AS day, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		WHERE created_at >= ? AND status != 'cancelled'
		GROUP BY day
		ORDER BY day`, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales chart: %w", err)
	}
	defer rows.Close()

	byDay := map[string]models.SalesPoint{}
	for rows.Next() {
		var p models.SalesPoint
		if err := rows.Scan(&p.Date, &p.Sales, &p.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan sales point: %w", err)
		}
		byDay[p.Date] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fillSalesDays(start, now, byDay), nil
}

func fillSalesDays(start, end time.Time, byDay map[string]models.SalesPoint) []models.SalesPoint {
	out := []models.SalesPoint{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		if p, ok := byDay[key]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, models.SalesPoint{Date: key, Revenue: models.NewMoney(decimal.Zero)})
	}
	return out
}
