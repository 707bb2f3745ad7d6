package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_Resource(t *testing.T) {
	want := map[Collection]string{
		Customers:            "customers",
		Products:             "products",
		ProductBatches:       "product-batches",
		Orders:               "orders",
		Transactions:         "transactions",
		PurchaseOrders:       "vendor-orders",
		Categories:           "categories",
		Refunds:              "refunds",
		PlanOrders:           "plan-orders",
		Plans:                "plans",
		Expenses:             "expenses",
		CustomerTransactions: "customer-transactions",
		Suppliers:            "suppliers",
		SupplierTransactions: "supplier-transactions",
		DProducts:            "d-products",
	}

	assert.Len(t, Collections(), len(want))
	for c, res := range want {
		assert.Equal(t, res, c.Resource(), c)
	}
}

func TestCollection_Parse(t *testing.T) {
	c, err := Parse("vendor-orders")
	require.NoError(t, err)
	assert.Equal(t, PurchaseOrders, c)

	c, err = Parse("productBatches")
	require.NoError(t, err)
	assert.Equal(t, ProductBatches, c)

	_, err = Parse("invoices")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestCollection_Order(t *testing.T) {
	cs := Collections()
	assert.Equal(t, Customers, cs[0])
	assert.Equal(t, DProducts, cs[len(cs)-1])
}
