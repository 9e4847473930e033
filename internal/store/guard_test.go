package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/visioncraft/storefront/internal/apperr"
)

func TestGuard_DeleteProduct_ReferencedByOrder(t *testing.T) {
	db, mock := newMock(t)
	g := NewGuard(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM products WHERE id = \? FOR UPDATE`).
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("prod-1"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM order_items WHERE product_id = \?`).
		WithArgs("prod-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := g.DeleteProduct(context.Background(), "prod-1")

	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, apperr.Message(err), "Deactivate it instead of deleting")
}

func TestGuard_DeleteProduct_RemovesLingeringCartItems(t *testing.T) {
	db, mock := newMock(t)
	g := NewGuard(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM products WHERE id = \? FOR UPDATE`).
		WithArgs("prod-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("prod-2"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM order_items WHERE product_id = \?`).
		WithArgs("prod-2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM cart_items WHERE product_id = \?`).
		WithArgs("prod-2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM products WHERE id = \?`).
		WithArgs("prod-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, g.DeleteProduct(context.Background(), "prod-2"))
}

func TestGuard_DeleteProduct_Missing(t *testing.T) {
	db, mock := newMock(t)
	g := NewGuard(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM products WHERE id = \? FOR UPDATE`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := g.DeleteProduct(context.Background(), "ghost")

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGuard_DeleteProduct_ForeignKeyRaceIsConflict(t *testing.T) {
	db, mock := newMock(t)
	g := NewGuard(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM products WHERE id = \? FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("prod-3"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM order_items`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM cart_items WHERE product_id = \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM products WHERE id = \?`).
		WillReturnError(&mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"})
	mock.ExpectRollback()

	err := g.DeleteProduct(context.Background(), "prod-3")

	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestGuard_DeleteUser_WithOrders(t *testing.T) {
	db, mock := newMock(t)
	g := NewGuard(db)

	mock.ExpectExec(`DELETE FROM cart_items WHERE user_id = \?`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders WHERE user_id = \?`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := g.DeleteUser(context.Background(), "user-1")

	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, "Cannot delete user with existing orders. Please contact support for account closure.", apperr.Message(err))
}

func TestGuard_DeleteUser_NoOrders(t *testing.T) {
	db, mock := newMock(t)
	g := NewGuard(db)

	mock.ExpectExec(`DELETE FROM cart_items WHERE user_id = \?`).
		WithArgs("user-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM orders WHERE user_id = \?`).
		WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM users WHERE id = \?`).
		WithArgs("user-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, g.DeleteUser(context.Background(), "user-2"))
}
