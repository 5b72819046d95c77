package services

import (
	dbm "barangay/internal/models/db_models"
	resp "barangay/internal/models/response_models"
	"barangay/internal/storage"
	"barangay/pkg/utils"
)

func toAddressResponse(a *dbm.Address) *resp.AddressResponse {
	if a == nil {
		return nil
	}
	return &resp.AddressResponse{
		HouseNumber: a.HouseNumber,
		Street:      a.Street,
		Purok:       a.Purok,
		Barangay:    a.Barangay,
		City:        a.City,
		Province:    a.Province,
		ZipCode:     a.ZipCode,
	}
}

func toResidentResponse(r *dbm.Resident) *resp.ResidentResponse {
	if r == nil {
		return nil
	}
	out := &resp.ResidentResponse{
		ID:          r.ID,
		AccountID:   r.AccountID,
		FirstName:   r.FirstName,
		MiddleName:  r.MiddleName,
		LastName:    r.LastName,
		FullName:    r.FullName(),
		Email:       r.Email,
		PhoneNumber: r.PhoneNumber,
		Address:     toAddressResponse(r.Address),
	}
	if r.BirthDate != nil {
		out.BirthDate = utils.FromUnixSecondsPH(*r.BirthDate).Format("2006-01-02")
	}
	return out
}

func toPaymentResponse(p *dbm.Payment, store storage.Storage) *resp.PaymentResponse {
	if p == nil {
		return nil
	}
	out := &resp.PaymentResponse{
		ID:                   p.ID,
		CertificateRequestID: p.CertificateRequestID,
		TransactionReference: p.TransactionReference,
		Amount:               p.Amount.StringFixed(2),
		Currency:             p.Currency,
		PaymentMethod:        string(p.PaymentMethod),
		PaymentStatus:        string(p.PaymentStatus),
		IsActive:             p.IsActive,
		Notes:                p.Notes,
		ReceiptNumber:        p.ReceiptNumber,
		CreatedAt:            utils.FormatRFC3339PH(utils.FromUnixSecondsPH(p.CreatedAt)),
	}
	if p.PaymentDate != nil {
		out.PaymentDate = utils.FormatRFC3339PH(utils.FromUnixSecondsPH(*p.PaymentDate))
	}
	if g := p.Metadata.Data().Gateway; g != nil {
		if p.PaymentStatus == dbm.PaymentPending && p.IsActive {
			out.CheckoutURL = g.RedirectURL
		}
		out.Fees = &resp.FeeBreakdownResponse{
			ProcessingFee: g.Fees.ProcessingFee.StringFixed(2),
			ServiceCharge: g.Fees.ServiceCharge.StringFixed(2),
			ShippingFee:   g.Fees.ShippingFee.StringFixed(2),
			Total:         g.Fees.Total.StringFixed(2),
		}
	}
	if p.ProofOfPaymentPath != "" && store != nil {
		out.ProofOfPaymentURL = store.URL(p.ProofOfPaymentPath)
	}
	return out
}

func toRequestResponse(r *dbm.CertificateRequest, active *dbm.Payment, store storage.Storage) *resp.CertificateRequestResponse {
	out := &resp.CertificateRequestResponse{
		ID:              r.ID,
		ReferenceNumber: r.ReferenceNumber,
		ResidentID:      r.ResidentID,
		CertificateType: string(r.CertificateType),
		CertificateName: r.CertificateType.DisplayName(),
		Purpose:         r.Purpose,
		AdditionalInfo:  r.AdditionalInfo,
		Status:          string(r.Status),
		RequestDate:     utils.FormatRFC3339PH(utils.FromUnixSecondsPH(r.RequestDate)),
		Remarks:         r.Remarks,
		Documents:       make([]string, 0, len(r.DocumentKeys)),
		ActivePayment:   toPaymentResponse(active, store),
	}
	if r.Resident != nil {
		out.ResidentName = r.Resident.FullName()
	}
	if r.DeliveryMethod != nil {
		out.DeliveryMethod = string(*r.DeliveryMethod)
	}
	for _, key := range r.DocumentKeys {
		if store != nil {
			out.Documents = append(out.Documents, store.URL(key))
		}
	}
	return out
}
