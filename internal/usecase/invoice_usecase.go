package usecase

import (
	"context"
	"fmt"

	"shop/internal/domain/invoice"
)

// 請求書の文書をバイト列にする（PDFなど）
type InvoiceEncoder interface {
	Encode(doc invoice.DocumentSpec) ([]byte, error)
}

type InvoiceUsecase struct {
	orders  *OrderUsecase
	encoder InvoiceEncoder
}

func NewInvoiceUsecase(orders *OrderUsecase, encoder InvoiceEncoder) *InvoiceUsecase {
	return &InvoiceUsecase{orders: orders, encoder: encoder}
}

// Render は自分の注文の請求書を作る。ファイル名と中身を返す。
func (u *InvoiceUsecase) Render(ctx context.Context, userID, orderID int64) (string, []byte, error) {
	const op = "invoice.Render"

	o, err := u.orders.GetMyOrder(ctx, userID, orderID)
	if err != nil {
		return "", nil, err
	}

	doc := invoice.Project(o)
	b, err := u.encoder.Encode(doc)
	if err != nil {
		return "", nil, newError(KindPersistence, op, fmt.Sprintf("render invoice of order %d", orderID), err)
	}
	return doc.FileName, b, nil
}
