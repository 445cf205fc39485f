package service

import (
	"testing"

	"budget/database/dbtest"
	"budget/errs"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name        string
		budgetCount int64
		ownerCount  int64
		wantKind    errs.Kind
		wantErr     bool
	}{
		{name: "拥有者", budgetCount: 1, ownerCount: 1},
		{name: "预算不存在", budgetCount: 0, wantErr: true, wantKind: errs.KindNotFound},
		{name: "非拥有者", budgetCount: 1, ownerCount: 0, wantErr: true, wantKind: errs.KindUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := dbtest.New(t)
			mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budgets`").
				WithArgs(5).
				WillReturnRows(dbtest.CountRows(tt.budgetCount))
			if tt.budgetCount > 0 {
				mock.ExpectQuery("SELECT count\\(\\*\\) FROM `user_budgets`").
					WithArgs(1, 5).
					WillReturnRows(dbtest.CountRows(tt.ownerCount))
			}

			budgetID, err := NewOwnership().Authorize(db, 1, BudgetID(5))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, errs.KindOf(err))
				assert.Zero(t, budgetID)
			} else {
				require.NoError(t, err)
				assert.Equal(t, uint(5), budgetID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAuthorize_ExpenseBudget(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectQuery("SELECT `budget_id` FROM `expenses`").
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"budget_id"}).AddRow(3))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `user_budgets`").
		WithArgs(1, 3).
		WillReturnRows(dbtest.CountRows(1))

	budgetID, err := NewOwnership().Authorize(db, 1, ExpenseBudget(9))
	require.NoError(t, err)
	assert.Equal(t, uint(3), budgetID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthorize_ExpenseMissing(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectQuery("SELECT `budget_id` FROM `expenses`").
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"budget_id"}))

	_, err := NewOwnership().Authorize(db, 1, ExpenseBudget(9))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthorize_DatabaseError(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `budgets`").
		WillReturnError(assert.AnError)

	_, err := NewOwnership().Authorize(db, 1, BudgetID(5))
	assert.Equal(t, errs.KindDatabase, errs.KindOf(err))
}

func TestGrant(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
		WithArgs(2).
		WillReturnRows(dbtest.CountRows(1))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `user_budgets`").
		WithArgs(2, 5).
		WillReturnRows(dbtest.CountRows(0))
	mock.ExpectExec("INSERT INTO `user_budgets`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.Transaction(func(tx *gorm.DB) error {
		return NewOwnership().Grant(tx, 2, 5)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrant_Rejected(t *testing.T) {
	t.Run("用户不存在", func(t *testing.T) {
		db, mock := dbtest.New(t)
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
			WillReturnRows(dbtest.CountRows(0))

		err := NewOwnership().Grant(db, 2, 5)
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("重复关联", func(t *testing.T) {
		db, mock := dbtest.New(t)
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM `users`").
			WillReturnRows(dbtest.CountRows(1))
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM `user_budgets`").
			WillReturnRows(dbtest.CountRows(1))

		err := NewOwnership().Grant(db, 2, 5)
		assert.Equal(t, errs.KindConflict, errs.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRevoke(t *testing.T) {
	t.Run("成功", func(t *testing.T) {
		db, mock := dbtest.New(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM `user_budgets` WHERE user_id = \\? AND budget_id = \\?").
			WithArgs(2, 5).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, NewOwnership().Revoke(db, 2, 5))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("关联不存在", func(t *testing.T) {
		db, mock := dbtest.New(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM `user_budgets`").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := NewOwnership().Revoke(db, 2, 5)
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBudgetsOf(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectQuery("SELECT .* FROM `budgets` JOIN user_budgets").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "settings"}).
			AddRow(1, "日常", []byte(`{}`)).
			AddRow(4, "旅行", []byte(`{"currency":"CNY"}`)))

	budgets, err := NewOwnership().BudgetsOf(db, 1)
	require.NoError(t, err)
	require.Len(t, budgets, 2)
	assert.Equal(t, "日常", budgets[0].Name)
	assert.Equal(t, uint(4), budgets[1].ID)
	assert.JSONEq(t, `{"currency":"CNY"}`, string(budgets[1].Settings))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembers(t *testing.T) {
	db, mock := dbtest.New(t)
	mock.ExpectQuery("SELECT .* FROM `users` JOIN user_budgets").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "alice").
			AddRow(2, "bob"))

	users, err := NewOwnership().Members(db, 5)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bob", users[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
