package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"budget/config"
	"budget/errs"
	"budget/middleware"
	"budget/models"
	"budget/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var exportHeaders = []string{"ID", "日期", "描述", "金额"}

// ExportHandler 导出处理器
type ExportHandler struct {
	store
	ownership *service.Ownership
}

// NewExportHandler 创建导出处理器
func NewExportHandler(cfg *config.Config, db *gorm.DB, ownership *service.Ownership) *ExportHandler {
	return &ExportHandler{
		store:     newStore(db, cfg),
		ownership: ownership,
	}
}

// Export 导出预算下的消费记录
// @Summary 导出消费记录
// @Description 导出预算下的消费记录为 CSV 或 Excel 文件，日期筛选规则与列表接口一致
// @Tags 导出
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param budgetid query int true "预算ID"
// @Param format query string false "文件格式 csv 或 xlsx" default(csv)
// @Param start_date query string false "开始日期 (2024-01-01)，含当天，省略则不限下界"
// @Param end_date query string false "结束日期 (2024-12-31)，含当天，省略则不限上界"
// @Success 200 {file} file "导出文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/expenses/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	budgetID, err := queryID(c, "budgetid")
	if err != nil {
		Fail(c, err)
		return
	}
	format := c.DefaultQuery("format", FormatCSV)
	if format != FormatCSV && format != FormatXLSX {
		BadRequest(c, "format 只支持 csv 或 xlsx")
		return
	}
	start, end, err := dateRange(c)
	if err != nil {
		Fail(c, err)
		return
	}
	userID := middleware.GetCurrentUserID(c)

	var expenses []models.Expense
	err = h.read(c, func(tx *gorm.DB) error {
		if _, err := h.ownership.Authorize(tx, userID, service.BudgetID(budgetID)); err != nil {
			return err
		}
		var err error
		expenses, err = findExpenses(tx, budgetID, start, end)
		return err
	})
	if err != nil {
		Fail(c, err)
		return
	}

	var buf *bytes.Buffer
	contentType := contentTypeCSV
	if format == FormatXLSX {
		buf, err = writeXLSX(expenses)
		contentType = contentTypeXLSX
	} else {
		buf, err = writeCSV(expenses)
	}
	if err != nil {
		Fail(c, errs.Internal("生成导出文件失败", err))
		return
	}

	filename := fmt.Sprintf("expenses_%d.%s", budgetID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// sumAmounts 精确求和
func sumAmounts(expenses []models.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

func writeCSV(expenses []models.Expense) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	// 添加 BOM 以支持 Excel 中文显示
	buf.WriteString("\xEF\xBB\xBF")

	writer := csv.NewWriter(buf)
	if err := writer.Write(exportHeaders); err != nil {
		return nil, err
	}
	for _, e := range expenses {
		row := []string{
			strconv.FormatUint(uint64(e.ID), 10),
			e.Date.String(),
			e.Description,
			e.Amount.StringFixed(models.AmountScale),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	if err := writer.Write([]string{"合计", "", "", sumAmounts(expenses).StringFixed(models.AmountScale)}); err != nil {
		return nil, err
	}
	writer.Flush()
	return buf, writer.Error()
}

func writeXLSX(expenses []models.Expense) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "消费记录"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return nil, err
	}
	// 金额列使用两位小数的数字格式
	amountFormat := "0.00"
	dataStyle, err := f.NewStyle(&excelize.Style{
		Border:       border,
		CustomNumFmt: &amountFormat,
	})
	if err != nil {
		return nil, err
	}

	f.SetColWidth(sheetName, "A", "A", 10)
	f.SetColWidth(sheetName, "B", "B", 14)
	f.SetColWidth(sheetName, "C", "C", 40)
	f.SetColWidth(sheetName, "D", "D", 14)

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}
	f.SetCellStyle(sheetName, "A1", "D1", headerStyle)

	for i, e := range expenses {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), e.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), e.Date.String())
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), e.Description)
		f.SetCellFloat(sheetName, fmt.Sprintf("D%d", row), e.Amount.InexactFloat64(), models.AmountScale, 64)
		f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), dataStyle)
	}

	summaryRow := len(expenses) + 2
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", summaryRow), "合计")
	f.SetCellValue(sheetName, fmt.Sprintf("C%d", summaryRow), fmt.Sprintf("共 %d 条记录", len(expenses)))
	f.SetCellFloat(sheetName, fmt.Sprintf("D%d", summaryRow), sumAmounts(expenses).InexactFloat64(), models.AmountScale, 64)
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("D%d", summaryRow), headerStyle)

	return f.WriteToBuffer()
}
