package handler

import (
	"errors"
	"net/http"
	"strconv"

	"shop/internal/config"
	"shop/internal/middleware"
	"shop/internal/repository"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// /admin/products
type AdminProductHandler struct {
	uc  *usecase.ProductUsecase
	log *zap.Logger
}

// DI
func NewAdminProductHandler(uc *usecase.ProductUsecase, log *zap.Logger) *AdminProductHandler {
	return &AdminProductHandler{uc: uc, log: log}
}

// adminを登録
func (h *AdminProductHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")

	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("/products", h.listProducts)
	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)
	admin.GET("/audit-logs", h.listAuditLogs)
}

func (h *AdminProductHandler) listProducts(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))

	out, err := h.uc.ListAdminProducts(c.Request().Context(), adminID, page)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// multipart/form-data（title, price, description, image）
func (h *AdminProductHandler) createProduct(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	in, closeFn, err := readProductForm(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid form"})
	}
	defer closeFn()

	p, err := h.uc.CreateProduct(c.Request().Context(), adminID, in)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, p)
}

func (h *AdminProductHandler) updateProduct(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	in, closeFn, err := readProductForm(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid form"})
	}
	defer closeFn()

	p, err := h.uc.UpdateProduct(c.Request().Context(), adminID, id, in)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, p)
}

func (h *AdminProductHandler) deleteProduct(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	if err := h.uc.DeleteProduct(c.Request().Context(), adminID, id); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "Success!"})
}

func (h *AdminProductHandler) listAuditLogs(c echo.Context) error {
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	productID, _ := strconv.ParseInt(c.QueryParam("product_id"), 10, 64)

	logs, err := h.uc.ListAuditLogs(c.Request().Context(), adminID, usecase.AuditLogQuery{
		Action:    c.QueryParam("action"),
		ProductID: productID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, logs)
}

// 画像は任意（作成時の必須チェックはusecase側）
func readProductForm(c echo.Context) (usecase.ProductInput, func(), error) {
	in := usecase.ProductInput{
		Title:       c.FormValue("title"),
		Price:       c.FormValue("price"),
		Description: c.FormValue("description"),
	}
	noop := func() {}

	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return in, noop, nil
	}
	if err != nil {
		return usecase.ProductInput{}, noop, err
	}

	f, err := fh.Open()
	if err != nil {
		return usecase.ProductInput{}, noop, err
	}
	in.Image = &usecase.ImageUpload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}
	return in, func() { _ = f.Close() }, nil
}
