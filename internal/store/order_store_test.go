package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioncraft/storefront/internal/apperr"
	"github.com/visioncraft/storefront/internal/models"
)

const (
	lockUserSQL   = `SELECT id FROM users WHERE id = \? FOR UPDATE`
	findIntentSQL = `FROM orders o WHERE o.payment_intent_id = \?`
	lockCartSQL   = `FROM cart_items ci JOIN products p ON p.id = ci.product_id WHERE ci.user_id = \? .*FOR UPDATE`
	decrementSQL  = `UPDATE products SET stock = stock - \? WHERE id = \? AND stock >= \?`
	orderItemsSQL = `FROM order_items oi LEFT JOIN products p ON p.id = oi.product_id WHERE oi.order_id IN`
)

func threeLineCart() *sqlmock.Rows {
	return cartLineRows(
		cartLine{itemID: "i1", userID: "user-1", productID: "a", name: "Aviator", price: "60.00", quantity: 1, stock: 5, options: `{"color":"gold"}`},
		cartLine{itemID: "i2", userID: "user-1", productID: "b", name: "Wayfarer", price: "50.00", quantity: 1, stock: 5, options: `{}`},
		cartLine{itemID: "i3", userID: "user-1", productID: "c", name: "Round", price: "25.50", quantity: 2, stock: 5, options: `{"lens":"blue"}`},
	)
}

func expectPlacementStart(mock sqlmock.Sqlmock, intent string) {
	mock.ExpectBegin()
	mock.ExpectQuery(lockUserSQL).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-1"))
	mock.ExpectQuery(findIntentSQL).
		WithArgs(intent).
		WillReturnRows(sqlmock.NewRows(orderCols))
}

func TestOrderStore_PlaceFromCart_Atomic(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)
	expected := models.MustMoney("173.88")

	expectPlacementStart(mock, "pi_dev_1")
	mock.ExpectQuery(lockCartSQL).WithArgs("user-1").WillReturnRows(threeLineCart())
	mock.ExpectExec(decrementSQL).WithArgs(1, "a", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(decrementSQL).WithArgs(1, "b", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(decrementSQL).WithArgs(2, "c", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	// 60 + 50 + 51 = 161.00; tax 12.88; free shipping.
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(sqlmock.AnyArg(), "user-1", "completed", "161.00", "12.88", "0.00", "173.88",
			sqlmock.AnyArg(), "pi_dev_1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "a", 1, "60.00", `{"color":"gold"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "b", 1, "50.00", `{}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_items`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "c", 2, "25.50", `{"lens":"blue"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM cart_items WHERE user_id = \?`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	detail, created, err := s.PlaceFromCart(context.Background(), PlaceOrderRequest{
		UserID:          "user-1",
		PaymentIntentID: "pi_dev_1",
		ShippingAddress: testAddress(),
		Status:          models.OrderStatusCompleted,
		ExpectedTotal:   &expected,
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "173.88", detail.Total.String())
	require.Len(t, detail.Items, 3)
	for _, item := range detail.Items {
		assert.Equal(t, detail.ID, item.OrderID)
	}
	assert.Equal(t, "25.50", detail.Items[2].Price.String())
}

func TestOrderStore_PlaceFromCart_EmptyCart(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)

	expectPlacementStart(mock, "pi_dev_2")
	mock.ExpectQuery(lockCartSQL).WithArgs("user-1").WillReturnRows(cartLineRows())
	mock.ExpectRollback()

	detail, created, err := s.PlaceFromCart(context.Background(), PlaceOrderRequest{
		UserID: "user-1", PaymentIntentID: "pi_dev_2", Status: models.OrderStatusCompleted,
	})

	assert.True(t, apperr.Is(err, apperr.KindEmptyCart))
	assert.False(t, created)
	assert.Nil(t, detail)
}

func TestOrderStore_PlaceFromCart_InsufficientStock(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)

	expectPlacementStart(mock, "pi_dev_3")
	mock.ExpectQuery(lockCartSQL).WithArgs("user-1").WillReturnRows(threeLineCart())
	mock.ExpectExec(decrementSQL).WithArgs(1, "a", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(decrementSQL).WithArgs(1, "b", 1).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, _, err := s.PlaceFromCart(context.Background(), PlaceOrderRequest{
		UserID: "user-1", PaymentIntentID: "pi_dev_3", Status: models.OrderStatusCompleted,
	})

	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, apperr.Message(err), "Wayfarer")
}

func TestOrderStore_PlaceFromCart_CapturedTotalMustMatch(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)
	paid := models.MustMoney("150.00")

	expectPlacementStart(mock, "pi_live_9")
	mock.ExpectQuery(lockCartSQL).WithArgs("user-1").WillReturnRows(threeLineCart())
	mock.ExpectRollback()

	_, created, err := s.PlaceFromCart(context.Background(), PlaceOrderRequest{
		UserID: "user-1", PaymentIntentID: "pi_live_9", Status: models.OrderStatusProcessing, ExpectedTotal: &paid,
	})

	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, apperr.Message(err), "173.88")
	assert.False(t, created)
}

func TestOrderStore_PlaceFromCart_ItemFailureRollsBackEverything(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)

	expectPlacementStart(mock, "pi_dev_4")
	mock.ExpectQuery(lockCartSQL).WithArgs("user-1").WillReturnRows(threeLineCart())
	for i := 0; i < 3; i++ {
		mock.ExpectExec(decrementSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_items`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_items`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	detail, created, err := s.PlaceFromCart(context.Background(), PlaceOrderRequest{
		UserID: "user-1", PaymentIntentID: "pi_dev_4", Status: models.OrderStatusCompleted,
	})

	require.Error(t, err)
	assert.False(t, created)
	assert.Nil(t, detail)
}

func TestOrderStore_PlaceFromCart_ReturnsExistingOrder(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserSQL).WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-1"))
	mock.ExpectQuery(findIntentSQL).WithArgs("pi_dev_5").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(toDriver(
			orderRow("order-1", "user-1", "completed", "110.00", "8.80", "0.00", "118.80", "pi_dev_5"))...))
	mock.ExpectQuery(orderItemsSQL).WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows(orderItemCols))
	mock.ExpectCommit()

	detail, created, err := s.PlaceFromCart(context.Background(), PlaceOrderRequest{
		UserID: "user-1", PaymentIntentID: "pi_dev_5", Status: models.OrderStatusCompleted,
	})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "order-1", detail.ID)
	assert.Equal(t, "118.80", detail.Total.String())
}

func TestOrderStore_PlaceFromCart_IntentOwnedByAnotherUser(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserSQL).WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-1"))
	mock.ExpectQuery(findIntentSQL).WithArgs("pi_dev_6").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(toDriver(
			orderRow("order-2", "user-2", "completed", "10.00", "0.80", "15.00", "25.80", "pi_dev_6"))...))
	mock.ExpectQuery(orderItemsSQL).WithArgs("order-2").
		WillReturnRows(sqlmock.NewRows(orderItemCols))
	mock.ExpectRollback()

	_, _, err := s.PlaceFromCart(context.Background(), PlaceOrderRequest{
		UserID: "user-1", PaymentIntentID: "pi_dev_6", Status: models.OrderStatusCompleted,
	})

	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestOrderStore_PlaceFromCart_DuplicateIntentRace(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)

	expectPlacementStart(mock, "pi_dev_7")
	mock.ExpectQuery(lockCartSQL).WithArgs("user-1").WillReturnRows(threeLineCart())
	for i := 0; i < 3; i++ {
		mock.ExpectExec(decrementSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(`INSERT INTO orders`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'pi_dev_7'"})
	mock.ExpectRollback()
	mock.ExpectQuery(findIntentSQL).WithArgs("pi_dev_7").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(toDriver(
			orderRow("order-7", "user-1", "completed", "161.00", "12.88", "0.00", "173.88", "pi_dev_7"))...))
	mock.ExpectQuery(orderItemsSQL).WithArgs("order-7").
		WillReturnRows(sqlmock.NewRows(orderItemCols))

	detail, created, err := s.PlaceFromCart(context.Background(), PlaceOrderRequest{
		UserID: "user-1", PaymentIntentID: "pi_dev_7", Status: models.OrderStatusCompleted,
	})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "order-7", detail.ID)
}

func TestOrderStore_GetOrder_LinePriceIsTheStoredCopy(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)

	mock.ExpectQuery(`FROM orders o WHERE o.id = \?`).WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(toDriver(
			orderRow("order-1", "user-1", "processing", "100.00", "8.00", "0.00", "108.00", "pi_123"))...))
	// The product now costs 200.00; the line keeps the 100.00 it was bought at.
	mock.ExpectQuery(orderItemsSQL).WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows(orderItemCols).
			AddRow("line-1", "order-1", "prod-1", 1, "100.00", `{"color":"black"}`, testTime, "Aviator", "aviator", `["/a.jpg"]`))

	detail, err := s.GetOrder(context.Background(), "order-1")

	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "100.00", detail.Items[0].Price.String())
	assert.Equal(t, "black", detail.Items[0].Options["color"])
	assert.Equal(t, "Aviator", detail.Items[0].Product.Name)
	assert.Equal(t, "Lovelace", detail.ShippingAddress.LastName)
}

func TestOrderStore_GetOrder_NotFound(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)

	mock.ExpectQuery(`FROM orders o WHERE o.id = \?`).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(orderCols))

	_, err := s.GetOrder(context.Background(), "nope")

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestOrderStore_GetOrders_ScopedToUser(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)
	userID := "user-1"

	mock.ExpectQuery(`FROM orders o WHERE o.user_id = \? ORDER BY o.created_at DESC`).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow(toDriver(orderRow("o2", userID, "processing", "10.00", "0.80", "15.00", "25.80", "pi_2"))...).
			AddRow(toDriver(orderRow("o1", userID, "completed", "10.00", "0.80", "15.00", "25.80", "pi_1"))...))
	mock.ExpectQuery(orderItemsSQL).WithArgs("o2", "o1").
		WillReturnRows(sqlmock.NewRows(orderItemCols).
			AddRow("l1", "o1", "p", 1, "10.00", `{}`, testTime, "P", "p", `[]`).
			AddRow("l2", "o2", "p", 1, "10.00", `{}`, testTime, nil, nil, nil))

	orders, err := s.GetOrders(context.Background(), &userID)

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o2", orders[0].ID)
	require.Len(t, orders[0].Items, 1)
	assert.Nil(t, orders[0].Items[0].Product)
	require.Len(t, orders[1].Items, 1)
	assert.Equal(t, "P", orders[1].Items[0].Product.Name)
}

func TestOrderStore_GetOrders_AllOrdersLoadItemsInBatches(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)

	total := orderItemsBatch + 1
	rows := sqlmock.NewRows(orderCols)
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("o%04d", i)
		rows.AddRow(toDriver(orderRow(id, "user-1", "completed", "10.00", "0.80", "15.00", "25.80", "pi_"+id))...)
	}
	mock.ExpectQuery(`FROM orders o ORDER BY o.created_at DESC`).WillReturnRows(rows)

	firstBatch := make([]driver.Value, orderItemsBatch)
	for i := range firstBatch {
		firstBatch[i] = fmt.Sprintf("o%04d", i)
	}
	mock.ExpectQuery(orderItemsSQL).WithArgs(firstBatch...).
		WillReturnRows(sqlmock.NewRows(orderItemCols).
			AddRow("l0", "o0000", "p", 1, "10.00", `{}`, testTime, nil, nil, nil))
	last := fmt.Sprintf("o%04d", orderItemsBatch)
	mock.ExpectQuery(orderItemsSQL).WithArgs(last).
		WillReturnRows(sqlmock.NewRows(orderItemCols).
			AddRow("l1", last, "p", 2, "10.00", `{}`, testTime, nil, nil, nil))

	orders, err := s.GetOrders(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, orders, total)
	require.Len(t, orders[0].Items, 1)
	require.Len(t, orders[total-1].Items, 1)
	assert.Equal(t, 2, orders[total-1].Items[0].Quantity)
	assert.Empty(t, orders[1].Items)
}

func TestOrderStore_UpdateStatus(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM orders WHERE id = \? FOR UPDATE`).WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("processing"))
	mock.ExpectExec(`UPDATE orders SET status = \?, updated_at = \? WHERE id = \?`).
		WithArgs("shipped", sqlmock.AnyArg(), "order-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`FROM orders o WHERE o.id = \?`).WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(toDriver(
			orderRow("order-1", "user-1", "shipped", "100.00", "8.00", "0.00", "108.00", "pi_1"))...))
	mock.ExpectQuery(orderItemsSQL).WithArgs("order-1").WillReturnRows(sqlmock.NewRows(orderItemCols))

	detail, err := s.UpdateStatus(context.Background(), "order-1", "Shipped")

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, detail.Status)
}

func TestOrderStore_UpdateStatus_RejectsUnknownStatus(t *testing.T) {
	db, _ := newMock(t)
	s := NewOrderStore(db)

	_, err := s.UpdateStatus(context.Background(), "order-1", "refunded")

	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestOrderStore_UpdateStatus_RejectsIllegalTransition(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM orders WHERE id = \? FOR UPDATE`).WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("cancelled"))
	mock.ExpectRollback()

	_, err := s.UpdateStatus(context.Background(), "order-1", "shipped")

	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestOrderStore_CreateOrderTx_RequiresItems(t *testing.T) {
	db, mock := newMock(t)
	s := NewOrderStore(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.CreateOrderTx(context.Background(), &models.OrderDetail{})

	assert.True(t, apperr.Is(err, apperr.KindEmptyCart))
}
