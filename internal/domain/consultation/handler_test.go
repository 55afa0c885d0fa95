package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/aficare/medilink/internal/platform/auth"
)

func setupHandler() (*Handler, *mockRepo) {
	svc, repo := setupService()
	return NewHandler(svc), repo
}

func TestHandlerCreate(t *testing.T) {
	h, _ := setupHandler()
	e := echo.New()

	body := `{
		"medilink_id": "ML-TESTPAT1",
		"chief_complaint": "fever and chills",
		"symptoms": ["fever", "chills", "headache"],
		"vitals": {"temperature_c": 39.9, "heart_rate": 110}
	}`
	req := httptest.NewRequest(http.MethodPost, "/consultations", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var got Consultation
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if got.TriageLevel != TriageUrgent {
		t.Errorf("expected URGENT triage, got %s", got.TriageLevel)
	}
	if len(got.Diagnoses) == 0 {
		t.Error("expected suggested diagnoses")
	}
}

func TestHandlerCreate_UnknownPatient(t *testing.T) {
	h, _ := setupHandler()
	e := echo.New()

	body := `{"medilink_id":"ML-MISSING1","chief_complaint":"headache"}`
	req := httptest.NewRequest(http.MethodPost, "/consultations", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandlerCreate_BlankComplaint(t *testing.T) {
	h, _ := setupHandler()
	e := echo.New()

	body := `{"medilink_id":"ML-TESTPAT1","chief_complaint":"  "}`
	req := httptest.NewRequest(http.MethodPost, "/consultations", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandlerCreate_EnqueueFailure(t *testing.T) {
	h, _ := setupHandler()
	h.svc.WithPublisher(&mockPublisher{err: errors.New("outbox unavailable")})
	e := echo.New()

	body := `{"medilink_id":"ML-TESTPAT1","chief_complaint":"cough"}`
	req := httptest.NewRequest(http.MethodPost, "/consultations", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %v", err)
	}
}

func asPatient(req *http.Request, mid string) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserRolesKey, []string{"patient"})
	ctx = context.WithValue(ctx, auth.MediLinkIDKey, mid)
	return req.WithContext(ctx)
}

func TestHandlerGet_PatientScope(t *testing.T) {
	h, _ := setupHandler()
	e := echo.New()

	cons := &Consultation{MediLinkID: "ML-TESTPAT1", ChiefComplaint: "cough"}
	h.svc.Create(context.Background(), cons)

	req := asPatient(httptest.NewRequest(http.MethodGet, "/", nil), "ML-TESTPAT1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(cons.ID.String())

	if err := h.Get(c); err != nil {
		t.Fatalf("expected patient to read own consultation: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = asPatient(httptest.NewRequest(http.MethodGet, "/", nil), "ML-OTHERPAT")
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(cons.ID.String())

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another patient's record, got %v", err)
	}
}

func TestHandlerListByPatient_Scope(t *testing.T) {
	h, _ := setupHandler()
	e := echo.New()

	req := asPatient(httptest.NewRequest(http.MethodGet, "/", nil), "ML-TESTPAT1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("medilink_id")
	c.SetParamValues("ML-OTHERPAT")

	err := h.ListByPatient(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another patient's history, got %v", err)
	}
}

func TestHandlerGet_BadID(t *testing.T) {
	h, _ := setupHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandlerSearch_FiltersByTriageLevel(t *testing.T) {
	h, _ := setupHandler()
	e := echo.New()

	h.svc.Create(context.Background(), &Consultation{
		MediLinkID: "ML-TESTPAT1", ChiefComplaint: "chest pain", Symptoms: []string{"chest pain"},
	})
	h.svc.Create(context.Background(), &Consultation{
		MediLinkID: "ML-TESTPAT1", ChiefComplaint: "checkup",
	})

	req := httptest.NewRequest(http.MethodGet, "/consultations?triage_level=EMERGENCY", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Search(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected 1 emergency consultation, got %d", resp.Total)
	}
}

func TestHandlerSearch_BadSince(t *testing.T) {
	h, _ := setupHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/consultations?since=yesterday", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Search(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandlerUpdateNote(t *testing.T) {
	h, _ := setupHandler()
	e := echo.New()

	cons := &Consultation{MediLinkID: "ML-TESTPAT1", ChiefComplaint: "cough"}
	h.svc.Create(context.Background(), cons)

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"note":"resolved"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(cons.ID.String())

	if err := h.UpdateNote(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got Consultation
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ClinicianNote == nil || *got.ClinicianNote != "resolved" {
		t.Error("expected note in response")
	}
}

func TestHandlerDelete_NotFound(t *testing.T) {
	h, _ := setupHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.Delete(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
