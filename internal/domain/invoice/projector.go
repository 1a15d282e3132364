package invoice

import (
	"fmt"

	"shop/internal/domain/model"
)

const (
	Title = "Invoice"
	Rule  = "-----------------------"
	// 合計の前の短い区切り
	ShortRule = "---"
)

// 行の種類（PDF側で文字サイズを変えるためだけに使う）
type LineKind int

const (
	LineTitle LineKind = iota
	LineRule
	LineItem
	LineTotal
)

type Line struct {
	Kind LineKind
	Text string
}

// 印刷用の文書。順序付きの行だけを持つ。
type DocumentSpec struct {
	FileName string
	Lines    []Line
}

// 行テキストだけを返す
func (d DocumentSpec) Texts() []string {
	out := make([]string, 0, len(d.Lines))
	for _, l := range d.Lines {
		out = append(out, l.Text)
	}
	return out
}

// Project は注文を請求書の行に変換する。I/Oはしない。
func Project(o model.Order) DocumentSpec {
	lines := make([]Line, 0, len(o.Products)+4)
	lines = append(lines,
		Line{Kind: LineTitle, Text: Title},
		Line{Kind: LineRule, Text: Rule},
	)

	for _, p := range o.Products {
		lines = append(lines, Line{
			Kind: LineItem,
			Text: fmt.Sprintf("%s - %d x $%s", p.Title, p.Quantity, p.Price.String()),
		})
	}

	lines = append(lines,
		Line{Kind: LineRule, Text: ShortRule},
		Line{Kind: LineTotal, Text: "Total Price: $" + o.TotalPrice.String()},
	)

	return DocumentSpec{
		FileName: fmt.Sprintf("invoice-%d.pdf", o.ID),
		Lines:    lines,
	}
}
