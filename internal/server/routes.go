package server

import (
	"shop/internal/config"
	"shop/internal/handler"
	"shop/internal/infra/storage"
	"shop/internal/repository"

	"github.com/labstack/echo/v4"
)

// Handlers はルーティングに必要なハンドラー一式
type Handlers struct {
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	Cart         *handler.CartHandler
	Order        *handler.OrderHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers) {
	//アップロード画像の配信
	e.Static(storage.PublicPrefix, cfg.UploadDir)

	h.Auth.RegisterRoutes(e)
	h.Product.RegisterRoutes(e)
	h.AdminProduct.RegisterRoutes(e, cfg, userRepo)
	h.Cart.RegisterRoutes(e, cfg, userRepo)
	h.Order.RegisterRoutes(e, cfg, userRepo)
}
