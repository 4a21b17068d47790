package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sortirkopi/bean-order-api/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// one connection, so every query sees the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

type testEnv struct {
	db     *gorm.DB
	svc    *Services
	images *MockImageService
}

func newTestEnv(t *testing.T) *testEnv {
	db := setupTestDB(t)
	images := NewMockImageService()
	svc := Init(db, NewMemoryOrderCache(time.Minute), images)
	return &testEnv{db: db, svc: svc, images: images}
}

func (e *testEnv) createUser(t *testing.T, sub, role string) *models.User {
	user := &models.User{
		Auth0ID: sub,
		Name:    "User " + sub,
		Email:   sub + "@example.com",
		Phone:   "+62811000000",
		Address: "Jl. Kopi No. 1, Bandung",
		Role:    role,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) placeOrder(t *testing.T, customer *models.User, weight string) *models.Order {
	order, err := e.svc.Orders.CreateOrder(context.Background(), CreateOrderInput{
		Customer:   customer,
		WeightKg:   decimal.RequireFromString(weight),
		CoffeeType: models.CoffeeArabika,
	})
	require.NoError(t, err)
	return order
}

func (e *testEnv) submission(order *models.Order) SubmitPaymentInput {
	return SubmitPaymentInput{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Method:        models.MethodBCA,
		AccountName:   "Budi Santoso",
		ProofImageRef: "proofs/manual.png",
		Amount:        order.TotalPrice,
	}
}

func (e *testEnv) reload(t *testing.T, id uint) *models.Order {
	var order models.Order
	require.NoError(t, e.db.Preload("Payment").First(&order, id).Error)
	return &order
}

// fakeImage returns body behind the magic bytes for filename's extension, so
// content sniffing accepts it as that image type
func fakeImage(filename, body string) []byte {
	headers := map[string]string{
		".png":  "\x89PNG\r\n\x1a\n",
		".jpg":  "\xff\xd8\xff\xe0",
		".jpeg": "\xff\xd8\xff\xe0",
		".webp": "RIFF\x24\x00\x00\x00WEBPVP8 ",
	}
	return []byte(headers[strings.ToLower(filepath.Ext(filename))] + body)
}

// proofFile builds a multipart file header the way gin hands it to handlers
func proofFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="proof"; filename="`+filename+`"`)
	h.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	require.Len(t, form.File["proof"], 1)
	return form.File["proof"][0]
}
