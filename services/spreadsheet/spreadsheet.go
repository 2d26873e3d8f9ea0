// Package spreadsheet exports the billing reports as xlsx workbooks.
package spreadsheet

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/agape/core/billing"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	DelinquentsSheet = "Inadimplentes"
	ChargesSheet     = "Cobranças"

	moneyFmt = 4  // #,##0.00
	dateFmt  = 14 // dd/mm/yyyy under the pt-BR locale
)

type workbook struct {
	f      *excelize.File
	header int
	money  int
	date   int
}

func newWorkbook(firstSheet string) (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", firstSheet); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}

	wb := &workbook{f: f}
	var err error
	wb.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0EBF5"}, Pattern: 1},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}
	if wb.money, err = f.NewStyle(&excelize.Style{NumFmt: moneyFmt}); err != nil {
		return nil, errors.Wrap(err, "creating money style")
	}
	if wb.date, err = f.NewStyle(&excelize.Style{NumFmt: dateFmt}); err != nil {
		return nil, errors.Wrap(err, "creating date style")
	}
	return wb, nil
}

// writeRows writes the header then the rows, and styles the given columns (1-based) on the data rows.
func (wb *workbook) writeRows(sheet string, header []interface{}, rows [][]interface{}, moneyCols, dateCols []int) error {
	if err := wb.f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := wb.f.SetCellStyle(sheet, "A1", last, wb.header); err != nil {
		return errors.Wrap(err, "styling header")
	}

	for i, row := range rows {
		row := row
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := wb.f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}

	if len(rows) > 0 {
		for _, cols := range []struct {
			idx   []int
			style int
		}{{moneyCols, wb.money}, {dateCols, wb.date}} {
			for _, col := range cols.idx {
				top, _ := excelize.CoordinatesToCellName(col, 2)
				bottom, _ := excelize.CoordinatesToCellName(col, len(rows)+1)
				if err := wb.f.SetCellStyle(sheet, top, bottom, cols.style); err != nil {
					return errors.Wrap(err, "styling column")
				}
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(header))
	return errors.Wrap(wb.f.SetColWidth(sheet, "A", lastCol, 20), "sizing columns")
}

func (wb *workbook) buffer() (*bytes.Buffer, error) {
	buf, err := wb.f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	_ = wb.f.Close()
	return buf, nil
}

// DelinquencyWorkbook lists the delinquent students, then every overdue charge on a second sheet.
func DelinquencyWorkbook(delinquents []billing.Delinquent) (*bytes.Buffer, error) {
	wb, err := newWorkbook(DelinquentsSheet)
	if err != nil {
		return nil, err
	}
	if _, err = wb.f.NewSheet(ChargesSheet); err != nil {
		return nil, errors.Wrap(err, "creating sheet")
	}

	students := make([][]interface{}, 0, len(delinquents))
	charges := make([][]interface{}, 0)
	for _, d := range delinquents {
		total, _ := d.Total.Float64()
		students = append(students, []interface{}{d.StudentName, d.ClassName, d.GuardianName, d.GuardianPhone, d.Count, total})
		for _, c := range d.Charges {
			amount, _ := c.Amount.Float64()
			var link string
			if c.PaymentLink != nil {
				link = *c.PaymentLink
			}
			charges = append(charges, []interface{}{d.StudentName, string(c.Type), c.DueDate.Time(), amount, link})
		}
	}

	err = wb.writeRows(DelinquentsSheet,
		[]interface{}{"Aluno", "Turma", "Responsável", "Telefone", "Cobranças", "Total"},
		students, []int{6}, nil)
	if err != nil {
		return nil, err
	}
	err = wb.writeRows(ChargesSheet,
		[]interface{}{"Aluno", "Tipo", "Vencimento", "Valor", "Link"},
		charges, []int{4}, []int{3})
	if err != nil {
		return nil, err
	}
	return wb.buffer()
}

// ChargesWorkbook lists charges with their effective status.
func ChargesWorkbook(charges []billing.ChargeView) (*bytes.Buffer, error) {
	wb, err := newWorkbook(ChargesSheet)
	if err != nil {
		return nil, err
	}

	rows := make([][]interface{}, 0, len(charges))
	for _, c := range charges {
		amount, _ := c.Amount.Float64()
		var paidAt interface{}
		if c.PaidAt != nil {
			paidAt = c.PaidAt.Format("02/01/2006 15:04")
		}
		rows = append(rows, []interface{}{
			c.StudentName, string(c.Type), c.DueDate.Time(), amount, string(c.EffectiveStatus), paidAt, c.Note,
		})
	}

	err = wb.writeRows(ChargesSheet,
		[]interface{}{"Aluno", "Tipo", "Vencimento", "Valor", "Situação", "Pago em", "Observação"},
		rows, []int{4}, []int{3})
	if err != nil {
		return nil, err
	}
	return wb.buffer()
}
