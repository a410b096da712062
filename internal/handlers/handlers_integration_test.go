package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"chillistore/internal/database"
	"chillistore/internal/handlers"
	"chillistore/internal/invalidation"
	"chillistore/internal/middleware"
	"chillistore/internal/models"
	"chillistore/internal/repositories"
	"chillistore/internal/services"
	"chillistore/internal/storemode"
	"chillistore/pkg/blobstore"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret = "test_jwt_secret"
	testStoreID   = "store-1"
	assetBase     = "http://localhost:8080/assets"
)

type testEnv struct {
	app      *fiber.App
	auth     *services.AuthService
	products repositories.ProductRepository
	brandID  string
	category models.Category
}

// setupApp wires a Fiber app over an in-memory SQLite database, the way main does.
func setupApp(t *testing.T, multi bool) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	productRepo := repositories.NewGORMProductRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	brandRepo := repositories.NewGORMBrandRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	brand := &models.Brand{Name: "Fire Co", Slug: "fire-co"}
	require.NoError(t, brandRepo.Create(ctx, brand))
	category := models.Category{Name: "Hot", Slug: "hot"}
	require.NoError(t, categoryRepo.Create(ctx, &category))

	var mode storemode.Mode = storemode.Single{DefaultBrandID: brand.ID}
	if multi {
		mode = storemode.Multi{}
	}

	store := blobstore.NewMemoryStore(assetBase)
	authService := services.NewAuthService(userRepo, testJWTSecret, testStoreID, nil)
	assetService := services.NewAssetService(store, nil)
	catalogService := services.NewCatalogService(services.CatalogServiceDeps{
		Products:   productRepo,
		Categories: categoryRepo,
		Brands:     brandRepo,
	})
	dispatcher := invalidation.NewDispatcher(nil, 16, catalogService)
	t.Cleanup(dispatcher.Close)

	productService := services.NewProductService(services.ProductServiceDeps{
		Repository:    productRepo,
		Authorizer:    authService,
		Validator:     services.NewProductValidator(mode, assetService),
		Brands:        brandRepo,
		Invalidator:   dispatcher,
		DefaultLocale: "en",
	})

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService, nil).RegisterRoutes(apiV1)
	handlers.NewProductHandler(catalogService, nil).RegisterRoutes(apiV1)
	handlers.NewAdminProductHandler(handlers.AdminProductHandlerDeps{
		Products: productService,
		Catalog:  catalogService,
		Assets:   assetService,
		Mode:     mode,
	}).RegisterRoutes(apiV1.Group("/admin", middleware.AuthRequired(authService, nil)))
	handlers.NewAssetHandler(store).RegisterRoutes(app, "/assets")

	seedProductsForTest(t, productRepo, brand.ID, category.ID)

	return &testEnv{
		app:      app,
		auth:     authService,
		products: productRepo,
		brandID:  brand.ID,
		category: category,
	}
}

// seedProductsForTest populates the product repository for tests.
func seedProductsForTest(t *testing.T, repo repositories.ProductRepository, brandID, categoryID string) {
	t.Helper()
	products := []models.Product{
		{Name: "Mild Mango", Slug: "mild-mango", PriceCents: 599, Currency: "GBP", Description: "Sweet and fruity", BrandID: &brandID},
		{Name: "Ghost Pepper Inferno", Slug: "ghost-pepper-inferno", PriceCents: 899, Currency: "GBP", Description: "**Extremely** hot", BrandID: &brandID, CategoryID: &categoryID},
	}
	for i := range products {
		products[i].CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(context.Background(), &products[i]))
	}
}

func (e *testEnv) ownerToken(t *testing.T) string {
	t.Helper()
	_, err := e.auth.EnsureShopOwner(context.Background(), "owner", "owner@example.com", "ownerpass")
	require.NoError(t, err)
	token, err := e.auth.LoginUser(context.Background(), "owner", "ownerpass")
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &decoded)
	return resp, decoded
}

func TestAuthRegisterAndLogin(t *testing.T) {
	env := setupApp(t, false)

	userToRegister := map[string]string{
		"username": "testuser",
		"email":    "test@example.com",
		"password": "password123",
	}
	resp, body := env.do(t, http.MethodPost, "/api/v1/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "User registered successfully", body["message"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, models.RoleCustomer, user["role"])
	assert.NotContains(t, user, "password")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/register", "", userToRegister)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "testuser",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	claims, err := env.auth.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "testuser", claims["username"])

	// A customer token does not open the admin console.
	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/stats", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStorefrontEndpoints(t *testing.T) {
	env := setupApp(t, false)

	resp, body := env.do(t, http.MethodGet, "/api/v1/products?search=ghost", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])
	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "Ghost Pepper Inferno", items[0].(map[string]interface{})["name"])
	assert.Equal(t, false, body["has_more"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/products?category=hot", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])

	resp, body = env.do(t, http.MethodGet, "/api/v1/products?search=fire+co&sort=popular", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total"], "brand name is searchable")

	resp, body = env.do(t, http.MethodGet, "/api/v1/products/ghost-pepper-inferno", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["description_html"], "<strong>Extremely</strong>")

	resp, _ = env.do(t, http.MethodGet, "/api/v1/products/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/brands", nil)
	brandsResp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	var brands []models.Brand
	require.NoError(t, json.NewDecoder(brandsResp.Body).Decode(&brands))
	brandsResp.Body.Close()
	assert.Len(t, brands, 1)
}

func TestAdminProductLifecycle(t *testing.T) {
	env := setupApp(t, true)
	token := env.ownerToken(t)

	// Multi mode requires a brand.
	form := map[string]interface{}{
		"name":        "Carolina Reaper Rage",
		"slug":        "carolina-reaper-rage",
		"price_cents": 1099,
	}
	resp, body := env.do(t, http.MethodPost, "/api/v1/admin/products", token, form)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "brand is required in multi-store mode", body["message"])
	assert.Equal(t, "carolina-reaper-rage", body["form"].(map[string]interface{})["slug"], "form is echoed back")

	form["brand_id"] = "no-such-brand"
	resp, body = env.do(t, http.MethodPost, "/api/v1/admin/products", token, form)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "unknown brand", body["message"])

	form["brand_id"] = env.brandID
	form["category_id"] = env.category.ID
	resp, body = env.do(t, http.MethodPost, "/api/v1/admin/products", token, form)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := body["product"].(map[string]interface{})
	id := created["id"].(string)
	assert.Equal(t, "GBP", created["currency"])

	// Duplicate slug is a store rejection.
	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/products", token, form)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// The storefront sees the new product once the invalidation is dispatched.
	assert.Eventually(t, func() bool {
		_, body := env.do(t, http.MethodGet, "/api/v1/products?search=reaper", "", nil)
		return body["total"] == float64(1)
	}, 2*time.Second, 20*time.Millisecond)

	resp, body = env.do(t, http.MethodGet, "/api/v1/admin/products/"+id, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	meta := body["form"].(map[string]interface{})
	assert.Equal(t, true, meta["brand_field_visible"])
	assert.Len(t, meta["brands"], 1)

	// Update keeps the saved brand when the form omits it.
	resp, body = env.do(t, http.MethodPut, "/api/v1/admin/products/"+id, token, map[string]interface{}{
		"name":        "Carolina Reaper Rage XL",
		"slug":        "carolina-reaper-rage",
		"price_cents": "1299",
		"currency":    "EUR",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := body["product"].(map[string]interface{})
	assert.Equal(t, env.brandID, updated["brand_id"])
	assert.Equal(t, float64(1299), updated["price_cents"])

	resp, _ = env.do(t, http.MethodPut, "/api/v1/admin/products/"+uuid.NewString(), token, form)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/admin/products/"+id, token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "deletion needs confirmation")

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/admin/products/"+id+"?confirm=true", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err := env.products.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, repositories.ErrProductNotFound)

	resp, body = env.do(t, http.MethodGet, "/api/v1/admin/stats", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["products"])
	assert.Equal(t, float64(1), body["brands"])
}

func TestAdminSingleModeForcesBrand(t *testing.T) {
	env := setupApp(t, false)
	token := env.ownerToken(t)

	resp, body := env.do(t, http.MethodPost, "/api/v1/admin/products", token, map[string]interface{}{
		"name":        "Scotch Bonnet Sunrise",
		"slug":        "scotch-bonnet-sunrise",
		"price_cents": 750,
		"brand_id":    "ignored",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, env.brandID, body["product"].(map[string]interface{})["brand_id"])

	resp, body = env.do(t, http.MethodPost, "/api/v1/admin/products", token, map[string]interface{}{
		"name":        "Broken",
		"slug":        "broken",
		"price_cents": -5,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["message"], "non-negative")
}

func TestAdminImageUploadAndRemoval(t *testing.T) {
	env := setupApp(t, false)
	token := env.ownerToken(t)

	upload := func(contentType string, data []byte) (*http.Response, map[string]interface{}) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("current_image_url", assetBase+"/products/previous.png"))
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="sauce.png"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, _ = part.Write(data)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/assets", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := env.app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp, body
	}

	resp, body := upload("text/plain", []byte("not an image"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, assetBase+"/products/previous.png", body["image_url"], "failed upload keeps the previous image")

	resp, body = upload("image/svg+xml", []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "svg is never stored")

	resp, body = upload("image/png", []byte("\x89PNG\r\n\x1a\n0000"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	imageURL := body["image_url"].(string)
	assert.Regexp(t, `^http://localhost:8080/assets/products/[0-9A-Z]{26}\.png$`, imageURL)

	assetResp, err := env.app.Test(httptest.NewRequest(http.MethodGet, imageURL[len("http://localhost:8080"):], nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, assetResp.StatusCode)
	assert.Equal(t, "image/png", assetResp.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", assetResp.Header.Get("X-Content-Type-Options"))
	assetResp.Body.Close()

	// Hand-typed URLs are refused; uploaded ones are accepted.
	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/products", token, map[string]interface{}{
		"name": "Pic", "slug": "pic", "price_cents": 100, "image_url": "https://elsewhere.test/x.png",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/v1/admin/products", token, map[string]interface{}{
		"name": "Pic", "slug": "pic", "price_cents": 100, "image_url": imageURL,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["product"].(map[string]interface{})["id"].(string)

	resp, body = env.do(t, http.MethodDelete, "/api/v1/admin/products/"+id+"/image", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", body["product"].(map[string]interface{})["image_url"])

	saved, err := env.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, saved.ImageURL)
}

func TestAdminEndpointsWithoutAuth(t *testing.T) {
	env := setupApp(t, false)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/admin/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/products", "", map[string]interface{}{
		"name": "Unauthorized", "slug": "unauthorized", "price_cents": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/admin/products/x?confirm=true", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	n, err := env.products.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
