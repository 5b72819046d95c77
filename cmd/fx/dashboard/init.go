package dashboard

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"barangay/internal/repositories"
	"barangay/internal/services"
)

var Module = fx.Provide(
	provideDashboardRepo, provideDashboardService, provideReportService,
)

func provideDashboardRepo(db *gorm.DB) repositories.DashboardRepository {
	return repositories.NewDashboardRepository(db)
}

func provideDashboardService(dashboardRepo repositories.DashboardRepository) services.DashboardService {
	return services.NewDashboardService(dashboardRepo)
}

func provideReportService(payments repositories.PaymentRepository) services.ReportService {
	return services.NewReportService(payments)
}
