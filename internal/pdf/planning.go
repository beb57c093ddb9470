package pdf

import (
	"errors"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ErrNoRows means the requested export has nothing to render.
var ErrNoRows = errors.New("planning_export_empty")

// PlanningData is a generic table export (event planning, machine
// allocations). Landscape, since the tables are wide.
type PlanningData struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Planning renders a landscape A4 table.
func Planning(data PlanningData) ([]byte, error) {
	if len(data.Rows) == 0 || len(data.Columns) == 0 {
		return nil, ErrNoRows
	}

	cfg := config.NewBuilder().
		WithOrientation(orientation.Horizontal).
		WithLeftMargin(10).
		WithRightMargin(10).
		Build()
	m := maroto.New(cfg)

	m.AddRow(10, text.NewCol(12, data.Title, props.Text{Size: 13, Style: fontstyle.Bold}))

	colSize := 12 / len(data.Columns)
	if colSize < 1 {
		colSize = 1
	}

	header := row.New(7)
	for _, c := range data.Columns {
		header.Add(text.NewCol(colSize, c, props.Text{Size: 9, Style: fontstyle.Bold}))
	}
	rows := []core.Row{header}
	for _, r := range data.Rows {
		line := row.New(6)
		for i, cell := range r {
			if i >= len(data.Columns) {
				break
			}
			line.Add(text.NewCol(colSize, cell, props.Text{Size: 8}))
		}
		rows = append(rows, line)
	}
	m.AddRows(rows...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf generation: %w", err)
	}
	return doc.GetBytes(), nil
}
