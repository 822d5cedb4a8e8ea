package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/models"
)

// formOverhead is the room left for the non-file fields of a product form.
const formOverhead = 1 << 20

// productBody is accepted as JSON or as a multipart form with an optional
// "image" file.
type productBody struct {
	Name        string      `form:"name" json:"name"`
	Description string      `form:"description" json:"description"`
	Price       json.Number `form:"price" json:"price"`
	Stock       json.Number `form:"stock" json:"stock"`
	Category    string      `form:"category" json:"category"`
	Status      string      `form:"status" json:"status"`
}

func (b productBody) input() (catalog.ProductInput, error) {
	in := catalog.ProductInput{
		Name:        b.Name,
		Description: b.Description,
		Category:    b.Category,
		Status:      models.ProductStatus(strings.TrimSpace(b.Status)),
	}
	if strings.TrimSpace(b.Name) == "" {
		return in, apperr.Validation("Product name is required")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(b.Price.String()))
	if err != nil || price.IsNegative() {
		return in, apperr.Validation("Product price is required and must be a valid positive number")
	}
	stock, err := strconv.Atoi(strings.TrimSpace(b.Stock.String()))
	if err != nil || stock < 0 {
		return in, apperr.Validation("Product stock is required and must be a valid non-negative number")
	}

	in.Price = price
	in.Stock = stock
	return in, nil
}

// productInput binds a product form and stores its image, if one was sent.
func (g *Gateway) productInput(c *gin.Context) (catalog.ProductInput, error) {
	images := g.services.Images
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, images.MaxBytes()+formOverhead)

	var body productBody
	if err := c.ShouldBind(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return catalog.ProductInput{}, images.TooLarge()
		}
		return catalog.ProductInput{}, apperr.Validation("Invalid request body")
	}

	in, err := body.input()
	if err != nil {
		return in, err
	}

	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		return in, nil
	}
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return in, apperr.Validation(err.Error())
	}
	if in.ImageURL, err = images.Save(fh); err != nil {
		return in, err
	}
	return in, nil
}

func listing(l *catalog.Listing) gin.H {
	return gin.H{
		"products":    l.Products,
		"totalPages":  l.TotalPages,
		"currentPage": l.CurrentPage,
		"total":       l.Total,
	}
}

func (g *Gateway) listCustomerProducts(c *gin.Context) {
	l, err := g.services.Catalog.ListForCustomers(c.Request.Context(), c.Query("search"), c.Query("category"), pageQuery(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, listing(l))
}

func (g *Gateway) getCustomerProduct(c *gin.Context) {
	p, err := g.services.Catalog.GetForCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"product": p})
}

func (g *Gateway) listCategories(c *gin.Context) {
	categories, err := g.services.Catalog.Categories(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"categories": categories})
}

func (g *Gateway) listAdminProducts(c *gin.Context) {
	status := models.ProductStatus(c.Query("status"))
	l, err := g.services.Catalog.ListForAdmin(c.Request.Context(), status, c.Query("category"), pageQuery(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, listing(l))
}

func (g *Gateway) getAdminProduct(c *gin.Context) {
	p, err := g.services.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"product": p})
}

func (g *Gateway) createProduct(c *gin.Context) {
	in, err := g.productInput(c)
	if err != nil {
		g.fail(c, err)
		return
	}

	p, err := g.services.Catalog.Create(c.Request.Context(), in)
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"product": p})
}

func (g *Gateway) updateProduct(c *gin.Context) {
	in, err := g.productInput(c)
	if err != nil {
		g.fail(c, err)
		return
	}

	p, err := g.services.Catalog.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"product": p})
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	if err := g.services.Catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

type statusBody struct {
	Status string `json:"status"`
}

func (g *Gateway) setProductStatus(c *gin.Context) {
	var body statusBody
	if err := bindJSON(c, &body); err != nil {
		g.fail(c, err)
		return
	}

	p, err := g.services.Catalog.SetStatus(c.Request.Context(), c.Param("id"), models.ProductStatus(body.Status))
	if err != nil {
		g.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"product": p})
}
