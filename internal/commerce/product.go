package commerce

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/slug"
)

type productListResponse struct {
	Products []domain.Product `json:"products"`
	Count    int              `json:"count"`
}

// productFields asks for the price and inventory data enrichment needs.
const productFields = "*variants.calculated_price,+variants.inventory_quantity"

// ProductQuery filters a product listing.
type ProductQuery struct {
	IDs      []string
	RegionID string
	Page     pagination.Params
}

// ListProducts lists products with variant prices. An empty ID filter lists
// the catalog page described by q.Page.
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (pagination.Result[domain.Product], error) {
	params := q.Page.Normalize()
	// An ID filter must come back in one page.
	if len(q.IDs) > params.PerPage {
		params = pagination.Params{Page: 1, PerPage: len(q.IDs)}
	}

	query := url.Values{
		"fields": {productFields},
		"limit":  {strconv.Itoa(params.Limit())},
		"offset": {strconv.Itoa(params.Offset())},
	}
	for _, id := range q.IDs {
		query.Add("id[]", id)
	}
	if q.RegionID != "" {
		query.Set("region_id", q.RegionID)
	}

	var out productListResponse
	err := c.call(ctx, request{
		op:     "list_products",
		method: http.MethodGet,
		path:   "/store/products",
		query:  query,
	}, &out)
	if err != nil {
		return pagination.Result[domain.Product]{}, err
	}
	for i := range out.Products {
		if out.Products[i].Handle == "" {
			out.Products[i].Handle = slug.Generate(out.Products[i].Title)
		}
	}
	return pagination.NewResult(out.Products, out.Count, params), nil
}

// ProductsByID fetches the given products in one query.
func (c *Client) ProductsByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	res, err := c.ListProducts(ctx, ProductQuery{IDs: ids})
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}
