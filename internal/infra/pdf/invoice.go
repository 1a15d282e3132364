package pdf

import (
	"bytes"
	"fmt"

	"shop/internal/domain/invoice"

	"github.com/go-pdf/fpdf"
)

// 請求書の行をPDFにする
type InvoiceEncoder struct {
	compress bool
}

func NewInvoiceEncoder() *InvoiceEncoder {
	return &InvoiceEncoder{compress: true}
}

func (e *InvoiceEncoder) Encode(doc invoice.DocumentSpec) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(e.compress)
	pdf.SetTitle(doc.FileName, true)
	pdf.AddPage()

	//標準フォントはcp1252なので変換する
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, l := range doc.Lines {
		switch l.Kind {
		case invoice.LineTitle:
			pdf.SetFont("Helvetica", "U", 26)
			pdf.CellFormat(0, 12, tr(l.Text), "", 1, "L", false, 0, "")
		case invoice.LineTotal:
			pdf.SetFont("Helvetica", "", 20)
			pdf.CellFormat(0, 10, tr(l.Text), "", 1, "L", false, 0, "")
		default:
			pdf.SetFont("Helvetica", "", 14)
			pdf.CellFormat(0, 8, tr(l.Text), "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}
