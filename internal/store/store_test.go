package store

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/visioncraft/storefront/internal/models"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var productCols = []string{
	"id", "slug", "name", "description", "price", "original_price", "category_id", "brand", "stock",
	"images", "images_360", "features", "specifications", "is_active", "created_at", "updated_at",
}

func productValues(id, name, price string, stock int, active bool) []interface{} {
	return []interface{}{
		id, id + "-slug", name, "desc", price, nil, nil, "Visio", stock,
		`["/img/` + id + `.jpg"]`, nil, `["UV400"]`, `{"frame":"acetate"}`, active, testTime, testTime,
	}
}

func productRows(values ...[]interface{}) *sqlmock.Rows {
	rows := sqlmock.NewRows(productCols)
	for _, v := range values {
		rows.AddRow(toDriver(v)...)
	}
	return rows
}

var cartCols = []string{"id", "user_id", "product_id", "quantity", "options", "created_at"}

// cartLineRows builds rows in listCartLines column order: product, then cart item.
func cartLineRows(lines ...cartLine) *sqlmock.Rows {
	rows := sqlmock.NewRows(append(append([]string{}, productCols...), cartCols...))
	for _, l := range lines {
		v := productValues(l.productID, l.name, l.price, l.stock, !l.inactive)
		v = append(v, l.itemID, l.userID, l.productID, l.quantity, l.options, testTime)
		rows.AddRow(toDriver(v)...)
	}
	return rows
}

type cartLine struct {
	itemID, userID, productID, name, price, options string
	quantity, stock                                 int
	inactive                                        bool
}

var orderCols = []string{
	"id", "user_id", "status", "subtotal", "tax", "shipping", "total",
	"shipping_address", "payment_intent_id", "created_at", "updated_at",
}

const addressJSON = `{"firstName":"Ada","lastName":"Lovelace","address":"1 Loop St","city":"London","state":"","zipCode":"N1","country":"UK"}`

func orderRow(id, userID, status, subtotal, tax, shipping, total, intent string) []interface{} {
	return []interface{}{id, userID, status, subtotal, tax, shipping, total, addressJSON, intent, testTime, testTime}
}

var orderItemCols = []string{"id", "order_id", "product_id", "quantity", "price", "options", "created_at", "name", "slug", "images"}

func toDriver(v []interface{}) []driver.Value {
	out := make([]driver.Value, len(v))
	for i := range v {
		out[i] = v[i]
	}
	return out
}

func testAddress() models.ShippingAddress {
	return models.ShippingAddress{
		FirstName: "Ada", LastName: "Lovelace", Address: "1 Loop St",
		City: "London", ZipCode: "N1", Country: "UK",
	}
}
