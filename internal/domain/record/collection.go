package record

import "fmt"

// Collection - имя коллекции в локальном хранилище
type Collection string

const (
	Customers            Collection = "customers"
	Products             Collection = "products"
	ProductBatches       Collection = "productBatches"
	Orders               Collection = "orders"
	Transactions         Collection = "transactions"
	PurchaseOrders       Collection = "purchaseOrders"
	Categories           Collection = "categories"
	Refunds              Collection = "refunds"
	PlanOrders           Collection = "planOrders"
	Plans                Collection = "plans"
	Expenses             Collection = "expenses"
	CustomerTransactions Collection = "customerTransactions"
	Suppliers            Collection = "suppliers"
	SupplierTransactions Collection = "supplierTransactions"
	DProducts            Collection = "dProducts"
)

// Порядок важен: коллекции синхронизируются в нем последовательно.
var registry = []struct {
	name     Collection
	resource string
}{
	{Customers, "customers"},
	{Products, "products"},
	{ProductBatches, "product-batches"},
	{Orders, "orders"},
	{Transactions, "transactions"},
	{PurchaseOrders, "vendor-orders"},
	{Categories, "categories"},
	{Refunds, "refunds"},
	{PlanOrders, "plan-orders"},
	{Plans, "plans"},
	{Expenses, "expenses"},
	{CustomerTransactions, "customer-transactions"},
	{Suppliers, "suppliers"},
	{SupplierTransactions, "supplier-transactions"},
	{DProducts, "d-products"},
}

// Collections возвращает все зарегистрированные коллекции.
func Collections() []Collection {
	out := make([]Collection, len(registry))
	for i, r := range registry {
		out[i] = r.name
	}
	return out
}

// Resource возвращает имя удаленного ресурса для коллекции.
func (c Collection) Resource() string {
	for _, r := range registry {
		if r.name == c {
			return r.resource
		}
	}
	return ""
}

// FromResource ищет коллекцию по имени ресурса delta API.
func FromResource(resource string) (Collection, error) {
	for _, r := range registry {
		if r.resource == resource {
			return r.name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCollection, resource)
}

// Parse принимает как имя коллекции, так и имя ресурса.
func Parse(s string) (Collection, error) {
	c := Collection(s)
	if c.Validate() == nil {
		return c, nil
	}
	return FromResource(s)
}

// Validate проверяет, что коллекция зарегистрирована.
func (c Collection) Validate() error {
	if c.Resource() == "" {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, string(c))
	}
	return nil
}

func (c Collection) String() string {
	return string(c)
}
