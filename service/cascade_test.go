package service

import (
	"testing"

	"budget/config"
	"budget/database/dbtest"
	"budget/errs"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func ownerCheck(userID, budgetID uint) Precheck {
	return func(tx *gorm.DB) error {
		_, err := NewOwnership().Authorize(tx, userID, BudgetID(budgetID))
		return err
	}
}

func TestDeleteBudget(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budgets`").WillReturnRows(dbtest.CountRows(1))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `user_budgets`").WillReturnRows(dbtest.CountRows(1))
	mock.ExpectExec("DELETE FROM `expenses` WHERE budget_id IN").
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM `user_budgets` WHERE budget_id IN").
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM `budgets` WHERE id IN").
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := NewCascade(config.CascadeConfig{DeleteSharedBudgets: true})
	require.NoError(t, c.DeleteBudget(db, 5, ownerCheck(1, 5)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBudget_PrecheckFails(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budgets`").WillReturnRows(dbtest.CountRows(1))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `user_budgets`").WillReturnRows(dbtest.CountRows(0))
	mock.ExpectRollback()

	c := NewCascade(config.CascadeConfig{})
	err := c.DeleteBudget(db, 5, ownerCheck(1, 5))
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBudget_NotFound(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `expenses`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `user_budgets`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `budgets`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewCascade(config.CascadeConfig{}).DeleteBudget(db, 5, nil)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBudget_RollbackOnFailure(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `expenses`").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM `user_budgets`").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := NewCascade(config.CascadeConfig{}).DeleteBudget(db, 5, nil)
	assert.Equal(t, errs.KindDatabase, errs.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `id` FROM `users` .* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("SELECT `budget_id` FROM `user_budgets` WHERE user_id = \\? ORDER BY budget_id").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"budget_id"}).AddRow(1).AddRow(2))
	mock.ExpectExec("DELETE FROM `expenses` WHERE budget_id IN \\(\\?,\\?\\)").
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("DELETE FROM `user_budgets` WHERE budget_id IN \\(\\?,\\?\\)").
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM `budgets` WHERE id IN \\(\\?,\\?\\)").
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM `user_budgets` WHERE user_id = \\?").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `users` WHERE `users`.`id` = \\?").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := NewCascade(config.CascadeConfig{DeleteSharedBudgets: true})
	require.NoError(t, c.DeleteUser(db, 7, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser_KeepsSharedBudgets(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `id` FROM `users` .* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery("SELECT `budget_id` FROM `user_budgets` WHERE user_id = \\? AND budget_id NOT IN \\(SELECT .* FROM `user_budgets` WHERE user_id <> \\?\\)").
		WithArgs(7, 7).
		WillReturnRows(sqlmock.NewRows([]string{"budget_id"}))
	mock.ExpectExec("DELETE FROM `user_budgets` WHERE user_id = \\?").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM `users`").
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c := NewCascade(config.CascadeConfig{DeleteSharedBudgets: false})
	require.NoError(t, c.DeleteUser(db, 7, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser_NotFound(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT `id` FROM `users` .* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := NewCascade(config.CascadeConfig{DeleteSharedBudgets: true}).DeleteUser(db, 7, nil)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser_PrecheckFails(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := NewCascade(config.CascadeConfig{}).DeleteUser(db, 7, func(tx *gorm.DB) error {
		return errs.Unauthorized("只能删除自己的账号")
	})
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
