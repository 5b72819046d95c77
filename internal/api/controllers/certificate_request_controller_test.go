package controllers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	resp "barangay/internal/models/response_models"
	"barangay/internal/services"
	"barangay/pkg/middleware"
	"barangay/pkg/utils"
)

type fakeRequests struct {
	services.CertificateRequestService

	got       services.CreateRequestInput
	gotDocs   map[string]string
	createErr error

	rejected      uint
	rejectRemarks string
}

func (f *fakeRequests) CreateRequest(_ context.Context, _ utils.Session, in services.CreateRequestInput) (*resp.CertificateRequestResponse, error) {
	f.got = in
	f.gotDocs = map[string]string{}
	// read while the handler still holds the files open
	for _, d := range in.Documents {
		b, _ := io.ReadAll(d.Reader)
		f.gotDocs[d.Name] = string(b)
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &resp.CertificateRequestResponse{ID: 1, ReferenceNumber: "REQ-20261017-AB12C"}, nil
}

func (f *fakeRequests) Reject(_ context.Context, _ utils.Session, id uint, remarks string) (*resp.CertificateRequestResponse, error) {
	f.rejected, f.rejectRemarks = id, remarks
	return &resp.CertificateRequestResponse{ID: id}, nil
}

func withSession(s utils.Session) gin.HandlerFunc {
	return func(c *gin.Context) { middleware.SetSession(c, s) }
}

func TestCreateRequestMultipart(t *testing.T) {
	fake := &fakeRequests{}
	r := gin.New()
	r.POST("/requests", withSession(utils.Session{UserID: 5, Role: utils.RoleUser}), NewCertificateRequestController(fake).Create)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("certificate_type", "barangay_clearance")
	_ = mw.WriteField("purpose", "Employment")
	_ = mw.WriteField("additional_info", `{"civil_status":"single","years_of_residency":4}`)
	fw, _ := mw.CreateFormFile("documents", "id.png")
	_, _ = fw.Write([]byte("png-bytes"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/requests", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d, want 201 (%s)", w.Code, w.Body.String())
	}
	if fake.got.CertificateType != "barangay_clearance" || fake.got.Purpose != "Employment" {
		t.Errorf("input = %+v", fake.got)
	}
	if fake.got.AdditionalInfo["civil_status"] != "single" {
		t.Errorf("additional_info = %+v", fake.got.AdditionalInfo)
	}
	if fake.gotDocs["id.png"] != "png-bytes" {
		t.Errorf("documents = %+v", fake.gotDocs)
	}
}

func TestCreateRequestJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{"ok", `{"certificate_type":"INDIGENCY","purpose":"Scholarship","additional_info":{"reason":"tuition"}}`, nil, http.StatusCreated},
		{"missing purpose", `{"certificate_type":"INDIGENCY"}`, nil, http.StatusBadRequest},
		{"not json", `certificate_type=INDIGENCY`, nil, http.StatusBadRequest},
		{"service validation", `{"certificate_type":"PASSPORT","purpose":"x"}`, utils.NewValidationError(map[string]string{"certificate_type": "unsupported"}), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRequests{createErr: tt.err}
			r := gin.New()
			r.POST("/requests", withSession(utils.Session{UserID: 5, Role: utils.RoleUser}), NewCertificateRequestController(fake).Create)

			req := httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestRejectPassesRemarks(t *testing.T) {
	fake := &fakeRequests{}
	r := gin.New()
	r.POST("/admin/requests/:id/reject", withSession(utils.Session{UserID: 1, Role: utils.RoleAdmin}), NewCertificateRequestController(fake).Reject())

	req := httptest.NewRequest(http.MethodPost, "/admin/requests/9/reject", strings.NewReader(`{"remarks":"blurry ID"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d (%s)", w.Code, w.Body.String())
	}
	if fake.rejected != 9 || fake.rejectRemarks != "blurry ID" {
		t.Errorf("reject got id=%d remarks=%q", fake.rejected, fake.rejectRemarks)
	}
}
