package controllers_fx

import (
	"go.uber.org/fx"

	"barangay/internal/api"
	"barangay/internal/api/controllers"
)

var Module = fx.Options(
	fx.Provide(controllers.NewAccountController),
	fx.Provide(controllers.NewResidentController),
	fx.Provide(controllers.NewCertificateRequestController),
	fx.Provide(controllers.NewPaymentController),
	fx.Provide(controllers.NewDashboardController),
	fx.Provide(controllers.NewChatController),
	fx.Provide(api.NewRouter),
)
