package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/workflow"
)

const historyLimit = 50

type checkoutBody struct {
	CustomerName    string     `json:"customerName" binding:"required" label:"Customer name"`
	Email           string     `json:"email" binding:"required,contact_email" label:"Email"`
	ContactNumber   string     `json:"contactNumber" binding:"required" label:"Contact number"`
	ShippingAddress string     `json:"shippingAddress" binding:"required" label:"Shipping address"`
	Items           []itemBody `json:"items" binding:"required,min=1,dive" label:"Order items"`
}

type itemBody struct {
	ProductID string  `json:"productId" binding:"required" label:"Product ID"`
	Quantity  float64 `json:"quantity" binding:"required,gte=1,lte=2147483647,whole" label:"Quantity"`
}

func (b checkoutBody) request() workflow.CheckoutRequest {
	items := make([]workflow.ItemRequest, len(b.Items))
	for i, item := range b.Items {
		items[i] = workflow.ItemRequest{ProductID: item.ProductID, Quantity: int(item.Quantity)}
	}
	return workflow.CheckoutRequest{
		Customer: workflow.CustomerProfile{
			Name:            b.CustomerName,
			Email:           b.Email,
			ContactNumber:   b.ContactNumber,
			ShippingAddress: b.ShippingAddress,
		},
		Items: items,
	}
}

func (g *Gateway) checkout(c *gin.Context) {
	var body checkoutBody
	if err := bindJSON(c, &body); err != nil {
		g.fail(c, err)
		return
	}

	order, err := g.services.Orders.Checkout(c.Request.Context(), body.request())
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"order": order})
}

func (g *Gateway) getCustomerOrder(c *gin.Context) {
	g.findOrder(c, workflow.ViewTracking)
}

func (g *Gateway) getAdminOrder(c *gin.Context) {
	g.findOrder(c, workflow.ViewAdmin)
}

func (g *Gateway) findOrder(c *gin.Context, view workflow.View) {
	order, err := g.services.Orders.FindOrder(c.Request.Context(), c.Param("id"), view)
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"order": order})
}

// orderFilter reads status, startDate and endDate. A date-only endDate
// covers that whole day.
func orderFilter(c *gin.Context, now time.Time) (models.OrderFilter, error) {
	filter := models.OrderFilter{Page: pageQuery(c)}

	if s := strings.TrimSpace(c.Query("status")); s != "" {
		status := models.OrderStatus(s)
		if !status.Valid() {
			return filter, apperr.Validation("Status must be one of: " + models.OrderStatusList())
		}
		filter.Statuses = []models.OrderStatus{status}
	}

	if s := c.Query("startDate"); s != "" {
		from, _, err := parseDate(s, now.Location())
		if err != nil {
			return filter, apperr.Validation("Invalid startDate")
		}
		filter.From = from
	}
	if s := c.Query("endDate"); s != "" {
		to, dateOnly, err := parseDate(s, now.Location())
		if err != nil {
			return filter, apperr.Validation("Invalid endDate")
		}
		if dateOnly {
			filter.To = to.AddDate(0, 0, 1)
		} else {
			// stored timestamps have millisecond precision
			filter.To = to.Add(time.Millisecond)
		}
	}
	return filter, nil
}

func parseDate(s string, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	if t, err = time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	return t, false, err
}

func (g *Gateway) listAdminOrders(c *gin.Context) {
	filter, err := orderFilter(c, time.Now())
	if err != nil {
		g.fail(c, err)
		return
	}

	orders, total, err := g.services.Orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"orders":      orders,
		"totalPages":  filter.Page.TotalPages(total),
		"currentPage": filter.Page.Number,
		"total":       total,
	})
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var body statusBody
	if err := bindJSON(c, &body); err != nil {
		g.fail(c, err)
		return
	}
	if strings.TrimSpace(body.Status) == "" {
		g.fail(c, apperr.Validation("Order status is required"))
		return
	}

	order, err := g.services.Orders.TransitionStatus(c.Request.Context(), c.Param("id"), models.OrderStatus(body.Status))
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"order": order})
}

func (g *Gateway) getOrderHistory(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := g.services.Orders.FindOrder(ctx, c.Param("id"), workflow.ViewReceipt); err != nil {
		g.fail(c, err)
		return
	}

	events, err := g.services.History.GetAuditLogs(ctx, c.Param("id"), historyLimit)
	if err != nil {
		g.fail(c, apperr.Unexpected(err, "failed to load order history"))
		return
	}
	ok(c, http.StatusOK, gin.H{"history": events})
}
