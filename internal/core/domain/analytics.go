package domain

import "time"

type SalesSummary struct {
	From              time.Time           `json:"from"`
	To                time.Time           `json:"to"`
	TotalOrders       int                 `json:"total_orders"`
	Revenue           Money               `json:"revenue"`
	PreviousRevenue   Money               `json:"previous_revenue"`
	RevenueGrowth     float64             `json:"revenue_growth"`
	AverageOrderValue float64             `json:"average_order_value"`
	MedianOrderValue  float64             `json:"median_order_value"`
	OrdersByStatus    map[OrderStatus]int `json:"orders_by_status"`
	RevenueByDay      []DailyRevenue      `json:"revenue_by_day"`
	TopProducts       []ProductSales      `json:"top_products"`
}

type DailyRevenue struct {
	Day     string `json:"day"`
	Orders  int    `json:"orders"`
	Revenue Money  `json:"revenue"`
}

type ProductSales struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Revenue     Money  `json:"revenue"`
}
