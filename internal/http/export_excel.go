package httpapi

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"owl-location/internal/domain"

	"github.com/xuri/excelize/v2"
)

// LocationExportHeader 导出表头
var LocationExportHeader = []string{
	"Depth",
	"Path",
	"ID",
	"Building",
	"Name",
	"Number",
	"Area",
	"Parent ID",
	"Created At",
	"Updated At",
}

const locationSheetName = "Locations"

// LocationExportRow is one flattened tree node.
type LocationExportRow struct {
	Depth    int
	Path     string
	Location domain.Location
}

// FlattenTrees walks each tree pre-order. Path joins the names from the root
// down, separated by " / ".
func FlattenTrees(trees []*domain.LocationNode) []LocationExportRow {
	var rows []LocationExportRow
	for _, root := range trees {
		var names []string
		root.Walk(func(n *domain.LocationNode, depth int) {
			names = append(names[:depth], n.Name)
			rows = append(rows, LocationExportRow{
				Depth:    depth,
				Path:     strings.Join(names, " / "),
				Location: n.Location,
			})
		})
	}
	return rows
}

// GenerateLocationExport 生成位置树导出 Excel 文件
func GenerateLocationExport(trees []*domain.LocationNode) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(locationSheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	// 删除默认的 Sheet1
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(locationSheetName, "A1", &LocationExportHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(LocationExportHeader))
	if err := f.SetCellStyle(locationSheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	columnWidths := []float64{8, 40, 38, 15, 25, 12, 12, 38, 22, 22}
	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(locationSheetName, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, row := range FlattenTrees(trees) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		l := row.Location
		parentID := ""
		if l.ParentID != nil {
			parentID = *l.ParentID
		}
		values := []any{
			row.Depth,
			row.Path,
			l.ID,
			l.Building,
			l.Name,
			l.Number,
			l.Area,
			parentID,
			formatExportTime(l.CreatedAt),
			formatExportTime(l.UpdatedAt),
		}
		if err := f.SetSheetRow(locationSheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func formatExportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
