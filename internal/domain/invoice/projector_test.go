package invoice

import (
	"testing"

	"shop/internal/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_Lines(t *testing.T) {
	o := model.Order{
		ID:         12,
		TotalPrice: decimal.NewFromInt(25),
		Products: []model.OrderedProduct{
			{Title: "A", Price: decimal.NewFromInt(10), Quantity: 2},
			{Title: "B", Price: decimal.NewFromInt(5), Quantity: 1},
		},
	}

	doc := Project(o)

	assert.Equal(t, "invoice-12.pdf", doc.FileName)
	assert.Equal(t, []string{
		"Invoice",
		Rule,
		"A - 2 x $10",
		"B - 1 x $5",
		"---",
		"Total Price: $25",
	}, doc.Texts())
	require.Len(t, doc.Lines, 6)
	assert.Equal(t, LineTitle, doc.Lines[0].Kind)
	assert.Equal(t, LineTotal, doc.Lines[5].Kind)
}

func TestProject_FractionalPrice(t *testing.T) {
	o := model.Order{
		ID:         1,
		TotalPrice: decimal.RequireFromString("21.00"),
		Products: []model.OrderedProduct{
			{Title: "Tea", Price: decimal.RequireFromString("10.50"), Quantity: 2},
		},
	}

	texts := Project(o).Texts()

	assert.Contains(t, texts, "Tea - 2 x $10.5")
	assert.Contains(t, texts, "Total Price: $21")
}
