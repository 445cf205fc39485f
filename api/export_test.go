package api

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	"budget/database/dbtest"
	"budget/models"
	"budget/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newExportRouter(t *testing.T, userID uint) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := dbtest.New(t)
	h := NewExportHandler(testConfig(), db, service.NewOwnership())

	r := gin.New()
	r.Use(setUserIDMiddleware(userID))
	r.GET("/expenses/export", h.Export)
	return r, mock
}

func expectExportRows(mock sqlmock.Sqlmock) {
	expectOwner(mock, 1, 5, true)
	rows := sqlmock.NewRows(expenseColumns)
	expenseRow(rows, 2, 5, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "0.20")
	expenseRow(rows, 1, 5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "0.10")
	mock.ExpectQuery("SELECT \\* FROM `expenses` WHERE budget_id = \\?").
		WillReturnRows(rows)
}

func TestExportHandler_CSV(t *testing.T) {
	r, mock := newExportRouter(t, 1)
	expectExportRows(mock)

	w := doRequest(r, http.MethodGet, "/expenses/export?budgetid=5", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentTypeCSV, w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=expenses_5.csv", w.Header().Get("Content-Disposition"))

	body := strings.TrimPrefix(w.Body.String(), "\xEF\xBB\xBF")
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID,日期,描述,金额", lines[0])
	assert.Equal(t, "2,2024-01-02,描述,0.20", lines[1])
	assert.Equal(t, "合计,,,0.30", lines[3])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportHandler_XLSX(t *testing.T) {
	r, mock := newExportRouter(t, 1)
	expectExportRows(mock)

	w := doRequest(r, http.MethodGet, "/expenses/export?budgetid=5&format=xlsx", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contentTypeXLSX, w.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("消费记录", "B1")
	require.NoError(t, err)
	assert.Equal(t, "日期", header)
	label, err := f.GetCellValue("消费记录", "A4")
	require.NoError(t, err)
	assert.Equal(t, "合计", label)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportHandler_BadFormat(t *testing.T) {
	r, mock := newExportRouter(t, 1)

	w := doRequest(r, http.MethodGet, "/expenses/export?budgetid=5&format=pdf", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExportHandler_NonOwner(t *testing.T) {
	r, mock := newExportRouter(t, 2)
	expectOwner(mock, 2, 5, false)

	w := doRequest(r, http.MethodGet, "/expenses/export?budgetid=5", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSumAmounts(t *testing.T) {
	expenses := []models.Expense{
		{Amount: decimal.RequireFromString("0.1")},
		{Amount: decimal.RequireFromString("0.2")},
		{Amount: decimal.RequireFromString("-0.05")},
	}
	assert.True(t, sumAmounts(expenses).Equal(decimal.RequireFromString("0.25")))
	assert.True(t, sumAmounts(nil).IsZero())
}
