package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 受け付ける画像の種類
var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpg":  true,
	"image/jpeg": true,
}

// 商品画像の保存先
type ImageStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

type ProductUsecase struct {
	products repo.ProductRepository
	audit    repo.AuditLogRepository
	images   ImageStore
	perPage  int
	log      *zap.Logger
	now      func() time.Time
}

// DI
func NewProductUsecase(
	products repo.ProductRepository,
	audit repo.AuditLogRepository,
	images ImageStore,
	perPage int,
	log *zap.Logger,
) *ProductUsecase {
	if perPage < 1 {
		perPage = 2
	}
	return &ProductUsecase{
		products: products,
		audit:    audit,
		images:   images,
		perPage:  perPage,
		log:      log,
		now:      time.Now,
	}
}

type ProductPage struct {
	Items           []model.Product `json:"items"`
	Total           int64           `json:"total"`
	CurrentPage     int             `json:"current_page"`
	HasNextPage     bool            `json:"has_next_page"`
	HasPreviousPage bool            `json:"has_previous_page"`
	NextPage        int             `json:"next_page"`
	PreviousPage    int             `json:"previous_page"`
	LastPage        int             `json:"last_page"`
}

type ImageUpload struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// 管理画面の作成・更新の入力（priceは文字列のまま受けて検証する）
type ProductInput struct {
	Title       string
	Price       string
	Description string
	Image       *ImageUpload
}

// ListProducts は公開一覧。pageが不正なら1ページ目。
func (u *ProductUsecase) ListProducts(ctx context.Context, page int) (ProductPage, error) {
	return u.list(ctx, "product.List", page, nil)
}

// ListAdminProducts は自分が作った商品だけ
func (u *ProductUsecase) ListAdminProducts(ctx context.Context, adminID int64, page int) (ProductPage, error) {
	return u.list(ctx, "product.AdminList", page, &adminID)
}

func (u *ProductUsecase) list(ctx context.Context, op string, page int, owner *int64) (ProductPage, error) {
	if page < 1 {
		page = 1
	}

	items, total, err := u.products.List(ctx, repo.ProductListQuery{
		Page:   page,
		Limit:  u.perPage,
		UserID: owner,
	})
	if err != nil {
		return ProductPage{}, fromRepo(op, "list products", err)
	}
	if items == nil {
		items = []model.Product{}
	}

	last := int((total + int64(u.perPage) - 1) / int64(u.perPage))
	return ProductPage{
		Items:           items,
		Total:           total,
		CurrentPage:     page,
		HasNextPage:     int64(u.perPage*page) < total,
		HasPreviousPage: page > 1,
		NextPage:        page + 1,
		PreviousPage:    page - 1,
		LastPage:        last,
	}, nil
}

// GetProduct は商品詳細
func (u *ProductUsecase) GetProduct(ctx context.Context, productID int64) (model.Product, error) {
	const op = "product.Get"
	if productID <= 0 {
		return model.Product{}, newError(KindValidation, op, "invalid product id", nil)
	}

	p, err := u.products.FindByID(ctx, productID)
	if err != nil {
		return model.Product{}, fromRepo(op, fmt.Sprintf("product %d", productID), err)
	}
	return p, nil
}

// CreateProduct は商品作成（画像は必須）
func (u *ProductUsecase) CreateProduct(ctx context.Context, adminID int64, in ProductInput) (model.Product, error) {
	const op = "product.Create"

	price, err := validateProductInput(op, in)
	if err != nil {
		return model.Product{}, err
	}
	if in.Image == nil {
		return model.Product{}, newError(KindValidation, op, "the attached file is not an image", nil)
	}

	url, err := u.saveImage(ctx, op, in.Image)
	if err != nil {
		return model.Product{}, err
	}

	created, err := u.products.Create(ctx, model.Product{
		Title:       strings.TrimSpace(in.Title),
		Price:       price,
		Description: strings.TrimSpace(in.Description),
		ImageURL:    url,
		UserID:      adminID,
	})
	if err != nil {
		u.removeImage(ctx, url)
		return model.Product{}, fromRepo(op, "create product", err)
	}

	u.writeAudit(ctx, adminID, model.AuditActionCreateProduct, created.ID, nil, &created)
	return created, nil
}

// UpdateProduct は作成者だけが更新できる。画像を差し替えたら古い画像は消す。
func (u *ProductUsecase) UpdateProduct(ctx context.Context, adminID, productID int64, in ProductInput) (model.Product, error) {
	const op = "product.Update"

	price, err := validateProductInput(op, in)
	if err != nil {
		return model.Product{}, err
	}

	before, err := u.ownedProduct(ctx, op, adminID, productID)
	if err != nil {
		return model.Product{}, err
	}

	after := before
	after.Title = strings.TrimSpace(in.Title)
	after.Price = price
	after.Description = strings.TrimSpace(in.Description)

	if in.Image != nil {
		url, err := u.saveImage(ctx, op, in.Image)
		if err != nil {
			return model.Product{}, err
		}
		after.ImageURL = url
	}

	if err := u.products.Update(ctx, after); err != nil {
		if after.ImageURL != before.ImageURL {
			u.removeImage(ctx, after.ImageURL)
		}
		return model.Product{}, fromRepo(op, fmt.Sprintf("update product %d", productID), err)
	}
	if after.ImageURL != before.ImageURL {
		u.removeImage(ctx, before.ImageURL)
	}

	u.writeAudit(ctx, adminID, model.AuditActionUpdateProduct, productID, &before, &after)
	return after, nil
}

// DeleteProduct は論理削除。カートや過去の注文からは参照が残る。
func (u *ProductUsecase) DeleteProduct(ctx context.Context, adminID, productID int64) error {
	const op = "product.Delete"

	before, err := u.ownedProduct(ctx, op, adminID, productID)
	if err != nil {
		return err
	}

	if err := u.products.SoftDelete(ctx, productID); err != nil {
		return fromRepo(op, fmt.Sprintf("delete product %d", productID), err)
	}
	u.removeImage(ctx, before.ImageURL)

	u.writeAudit(ctx, adminID, model.AuditActionDeleteProduct, productID, &before, nil)
	return nil
}

// 監査ログの絞り込み（空なら条件なし）
type AuditLogQuery struct {
	Action    string
	ProductID int64
	Limit     int
	Offset    int
}

// ListAuditLogs は自分の操作履歴
func (u *ProductUsecase) ListAuditLogs(ctx context.Context, adminID int64, q AuditLogQuery) ([]model.AuditLog, error) {
	const op = "product.AuditLogs"

	filter := repo.AuditLogFilter{
		ActorUserID: &adminID,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
	if q.Action != "" {
		action := model.AuditAction(strings.ToUpper(q.Action))
		if !action.Valid() {
			return nil, newError(KindValidation, op, fmt.Sprintf("unknown action %q", q.Action), nil)
		}
		filter.Action = &action
	}
	if q.ProductID > 0 {
		filter.ResourceID = &q.ProductID
	}

	logs, err := u.audit.List(ctx, filter)
	if err != nil {
		return nil, fromRepo(op, "list audit logs", err)
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}

func (u *ProductUsecase) ownedProduct(ctx context.Context, op string, adminID, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, newError(KindValidation, op, "invalid product id", nil)
	}

	p, err := u.products.FindByID(ctx, productID)
	if err != nil {
		return model.Product{}, fromRepo(op, fmt.Sprintf("product %d", productID), err)
	}
	if p.UserID != adminID {
		return model.Product{}, newError(KindForbidden, op, fmt.Sprintf("product %d belongs to another admin", productID), nil)
	}
	return p, nil
}

func (u *ProductUsecase) saveImage(ctx context.Context, op string, img *ImageUpload) (string, error) {
	if !allowedImageTypes[strings.ToLower(img.ContentType)] {
		return "", newError(KindValidation, op, "the attached file is not an image", nil)
	}

	url, err := u.images.Save(ctx, img.FileName, img.Body)
	if err != nil {
		return "", newError(KindPersistence, op, "save image", err)
	}
	return url, nil
}

// 画像が消せなくても商品の操作は成功扱い
func (u *ProductUsecase) removeImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := u.images.Delete(ctx, url); err != nil {
		u.log.Warn("image delete failed", zap.String("image_url", url), zap.Error(err))
	}
}

// 監査ログの失敗は操作を失敗にしない
func (u *ProductUsecase) writeAudit(ctx context.Context, adminID int64, action model.AuditAction, productID int64, before, after *model.Product) {
	entry := model.AuditLog{
		ActorUserID:  adminID,
		Action:       action,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   productID,
		BeforeJSON:   toJSON(before),
		AfterJSON:    toJSON(after),
		CreatedAt:    u.now(),
	}
	if err := u.audit.Create(ctx, entry); err != nil {
		u.log.Error("audit log write failed",
			zap.String("action", string(action)),
			zap.Int64("product_id", productID),
			zap.Error(err),
		)
	}
}

func toJSON(p *model.Product) string {
	if p == nil {
		return ""
	}
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(b)
}

// タイトル3文字以上、価格は0以上の数値、説明は5〜400文字
func validateProductInput(op string, in ProductInput) (decimal.Decimal, error) {
	title := strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(title) < 3 {
		return decimal.Zero, newError(KindValidation, op, "title must be at least 3 characters", nil)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(in.Price))
	if err != nil {
		return decimal.Zero, newError(KindValidation, op, "price must be a number", err)
	}
	if price.IsNegative() {
		return decimal.Zero, newError(KindValidation, op, "price must be >= 0", nil)
	}
	if !price.Equal(price.Round(2)) {
		return decimal.Zero, newError(KindValidation, op, "price must have at most 2 decimal places", nil)
	}

	n := utf8.RuneCountInString(strings.TrimSpace(in.Description))
	if n < 5 || n > 400 {
		return decimal.Zero, newError(KindValidation, op, "description must be 5 to 400 characters", nil)
	}
	return price, nil
}

