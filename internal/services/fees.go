package services

import (
	"github.com/shopspring/decimal"

	"barangay/internal/config"
	dbm "barangay/internal/models/db_models"
)

// ComputeFees returns processing + service + (shipping when delivered),
// rounded to centavos.
func ComputeFees(fees config.FeeConfig, method dbm.DeliveryMethod) dbm.FeeBreakdown {
	shipping := decimal.Zero
	if method == dbm.DeliveryShipping {
		shipping = fees.ShippingFee
	}
	out := dbm.FeeBreakdown{
		ProcessingFee: fees.ProcessingFee.Round(2),
		ServiceCharge: fees.ServiceCharge.Round(2),
		ShippingFee:   shipping.Round(2),
	}
	out.Total = out.ProcessingFee.Add(out.ServiceCharge).Add(out.ShippingFee).Round(2)
	return out
}
