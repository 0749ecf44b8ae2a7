package service

import (
	"context"
	"fmt"
	"time"

	"pharma-pos/internal/repository"

	"github.com/xuri/excelize/v2"
)

// ReportService builds spreadsheet exports of the inventory and of sales
// over a date range.
type ReportService interface {
	InventoryWorkbook(ctx context.Context) (*excelize.File, error)
	SalesWorkbook(ctx context.Context, from, to time.Time) (*excelize.File, error)
}

type reportService struct {
	products   repository.ProductRepository
	sales      repository.SaleRepository
	expirySoon int
}

// NewReportService creates a new instance of ReportService. expirySoonDays
// controls when an inventory row is flagged as expiring soon.
func NewReportService(products repository.ProductRepository, sales repository.SaleRepository, expirySoonDays int) ReportService {
	return &reportService{products: products, sales: sales, expirySoon: expirySoonDays}
}

// InventoryWorkbook lists the whole catalog with an expiry status column.
func (s *reportService) InventoryWorkbook(ctx context.Context) (*excelize.File, error) {
	products, err := s.products.Search(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Inventory"
	f.SetSheetName("Sheet1", sheet)

	headers := []interface{}{"Code", "Product", "Lab", "Location", "Stock", "Buy Price", "Sell Price", "Expires", "Status"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	for i, p := range products {
		expiryDate := ""
		if p.ExpiryDate != nil {
			expiryDate = p.ExpiryDate.Format("2006-01-02")
		}

		row := []interface{}{
			p.Code,
			p.Name,
			p.Lab,
			p.Location,
			p.Stock,
			p.BuyPrice.InexactFloat64(),
			p.SellPrice.InexactFloat64(),
			expiryDate,
			ExpiryStatus(p, s.expirySoon),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write inventory row: %w", err)
		}
	}

	f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	f.AutoFilter(sheet, "A1:I1", nil)

	return f, nil
}

// SalesWorkbook has a summary sheet of sale headers in the range and a
// detail sheet with every receipt line.
func (s *reportService) SalesWorkbook(ctx context.Context, from, to time.Time) (*excelize.File, error) {
	sales, err := s.sales.ListSales(ctx, &from, &to, MaxSaleListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}

	f := excelize.NewFile()
	const salesSheet = "Sales"
	const detailSheet = "Detail"
	f.SetSheetName("Sheet1", salesSheet)
	if _, err := f.NewSheet(detailSheet); err != nil {
		return nil, fmt.Errorf("failed to create detail sheet: %w", err)
	}

	salesHeader := []interface{}{"Sale ID", "Date", "Payment", "Total"}
	if err := f.SetSheetRow(salesSheet, "A1", &salesHeader); err != nil {
		return nil, fmt.Errorf("failed to write sales header: %w", err)
	}

	detailHeader := []interface{}{"Sale ID", "Date", "Code", "Product", "Qty", "Unit Price", "Subtotal"}
	if err := f.SetSheetRow(detailSheet, "A1", &detailHeader); err != nil {
		return nil, fmt.Errorf("failed to write detail header: %w", err)
	}

	detailRow := 2
	for i, sale := range sales {
		row := []interface{}{
			sale.ID,
			sale.Date.Format("2006-01-02 15:04"),
			sale.PaymentMethod,
			sale.Total.InexactFloat64(),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(salesSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write sale row: %w", err)
		}

		_, items, err := s.sales.FindByID(ctx, sale.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load sale %d items: %w", sale.ID, err)
		}
		for _, item := range items {
			row := []interface{}{
				sale.ID,
				sale.Date.Format("2006-01-02 15:04"),
				item.Code,
				item.Name,
				item.Qty,
				item.UnitPrice.InexactFloat64(),
				item.Subtotal.InexactFloat64(),
			}
			cell := fmt.Sprintf("A%d", detailRow)
			if err := f.SetSheetRow(detailSheet, cell, &row); err != nil {
				return nil, fmt.Errorf("failed to write detail row: %w", err)
			}
			detailRow++
		}
	}

	f.SetPanes(salesSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	f.SetPanes(detailSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	return f, nil
}
