package models

// DashboardStats backs GET /api/admin/stats.
type DashboardStats struct {
	TotalRevenue   Money         `json:"totalRevenue"`
	TotalOrders    int           `json:"totalOrders"`
	ActiveProducts int           `json:"activeProducts"`
	TotalCustomers int           `json:"totalCustomers"`
	TopProducts    []TopProduct  `json:"topProducts"`
	RecentOrders   []RecentOrder `json:"recentOrders"`
}

type TopProduct struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Sales   int    `json:"sales"`
	Revenue Money  `json:"revenue"`
}

type RecentOrder struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Product  string `json:"product"`
	Amount   Money  `json:"amount"`
	Status   string `json:"status"`
	Date     string `json:"date"`
}

// SalesPoint is one day of GET /api/admin/sales-chart.
type SalesPoint struct {
	Date    string `json:"date"`
	Sales   int    `json:"sales"`
	Revenue Money  `json:"revenue"`
}
