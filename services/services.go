package services

import (
	"gorm.io/gorm"

	"github.com/sortirkopi/bean-order-api/repository"
)

// Services groups the application services handlers depend on
type Services struct {
	Orders   *OrderService
	Payments *PaymentService
	Reports  *ReportService
	Images   ImageService
}

var servicesInstance *Services

// Init builds the services over db. Order and payment services share one
// lock table and one cache.
func Init(db *gorm.DB, cache OrderCache, images ImageService) *Services {
	if cache == nil {
		cache = NewMemoryOrderCache(0)
	}
	orderRepo := repository.NewOrderRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	locks := NewOrderLocks()

	servicesInstance = &Services{
		Orders:   NewOrderService(orderRepo, cache, locks, images),
		Payments: NewPaymentService(orderRepo, cache, locks, images),
		Reports:  NewReportService(orderRepo, batchRepo),
		Images:   images,
	}
	return servicesInstance
}

// Get returns the initialized services
func Get() *Services {
	return servicesInstance
}

// Set replaces the services instance (primarily for testing)
func Set(s *Services) {
	servicesInstance = s
}
