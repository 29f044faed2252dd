package export

import (
	"fmt"
	"io"

	"arenda/internal/logging"
	"arenda/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// OrderExporter пишет отчет по заказам жилья в формате xlsx.
type OrderExporter struct {
	logger zerolog.Logger
}

func NewOrderExporter(logger *zerolog.Logger) *OrderExporter {
	return &OrderExporter{logger: logging.Component(logger, "export")}
}

const ordersSheet = "Заказы"

// WriteOrdersReport пишет xlsx со всеми заказами хозяина прямо в ответ,
// без временного файла на диске.
func (e *OrderExporter) WriteOrdersReport(w io.Writer, orders []*models.Order) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ordersSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"ID", "Жилье", "Заезд", "Выезд", "Ночей", "Цена/сутки", "Сумма", "Статус", "Отзыв", "Создан",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ordersSheet, cell, header)
		_ = f.SetCellStyle(ordersSheet, cell, cell, headerStyle)
	}

	for i, order := range orders {
		row := i + 2
		_ = f.SetCellValue(ordersSheet, fmt.Sprintf("A%d", row), order.ID)
		_ = f.SetCellValue(ordersSheet, fmt.Sprintf("B%d", row), order.HouseTitle)
		_ = f.SetCellValue(ordersSheet, fmt.Sprintf("C%d", row), order.BeginDate.Format("02.01.2006"))
		_ = f.SetCellValue(ordersSheet, fmt.Sprintf("D%d", row), order.EndDate.Format("02.01.2006"))
		_ = f.SetCellValue(ordersSheet, fmt.Sprintf("E%d", row), order.Days)
		_ = f.SetCellValue(ordersSheet, fmt.Sprintf("F%d", row), formatMoney(order.HousePrice))
		_ = f.SetCellValue(ordersSheet, fmt.Sprintf("G%d", row), formatMoney(order.Amount))
		_ = f.SetCellValue(ordersSheet, fmt.Sprintf("H%d", row), statusLabel(order.Status))
		_ = f.SetCellValue(ordersSheet, fmt.Sprintf("I%d", row), order.Comment)
		_ = f.SetCellValue(ordersSheet, fmt.Sprintf("J%d", row), order.CreatedAt.Format("02.01.2006 15:04"))
	}

	_ = f.SetColWidth(ordersSheet, "A", "A", 8)
	_ = f.SetColWidth(ordersSheet, "B", "B", 30)
	_ = f.SetColWidth(ordersSheet, "C", "E", 12)
	_ = f.SetColWidth(ordersSheet, "F", "G", 14)
	_ = f.SetColWidth(ordersSheet, "H", "H", 18)
	_ = f.SetColWidth(ordersSheet, "I", "I", 40)
	_ = f.SetColWidth(ordersSheet, "J", "J", 18)

	_ = f.DeleteSheet("Sheet1")

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing file: %v", err)
	}

	e.logger.Info().Int("orders", len(orders)).Msg("orders report written")
	return nil
}

// formatMoney цены хранятся в минимальных единицах валюты.
func formatMoney(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

func statusLabel(status string) string {
	switch status {
	case models.StatusWaitAccept:
		return "Ожидает подтверждения"
	case models.StatusWaitPayment:
		return "Ожидает оплаты"
	case models.StatusPaid:
		return "Оплачен"
	case models.StatusWaitComment:
		return "Ожидает отзыва"
	case models.StatusComplete:
		return "Завершен"
	case models.StatusCanceled:
		return "Отменен"
	case models.StatusRejected:
		return "Отклонен"
	default:
		return status
	}
}
