package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gstpos/backend/internal/domain"
	"gstpos/backend/internal/logging"
	"gstpos/backend/internal/service"
	"gstpos/backend/internal/store/memory"
)

type testServer struct {
	api  *API
	repo *memory.Store
}

// newTestServer builds a full API with an in-memory store, real AuthManager
// and real Service so handler tests exercise the complete request path.
func newTestServer(t *testing.T) testServer {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{Logger: logging.Discard()})
	auth := NewAuthManager(context.Background(), "test-secret-key-with-enough-length", time.Hour, repo)

	return testServer{api: New(svc, auth, "*", logging.Discard()), repo: repo}
}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	return newTestServer(t).api
}

func login(t *testing.T, api *API, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("%s login failed, status %d", username, res.Code)
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if payload.AccessToken == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

func loginAsAdmin(t *testing.T, api *API) string {
	return login(t, api, "admin", "admin123")
}

func loginAsEmployee(t *testing.T, api *API) string {
	return login(t, api, "employee", "employee123")
}

func doJSON(t *testing.T, api *API, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v (status %d)", err, rec.Code)
	}
	return out
}

func seededProduct(t *testing.T, s testServer, barcode string) domain.Product {
	t.Helper()
	p, err := s.repo.FindProductByBarcode(context.Background(), barcode)
	if err != nil {
		t.Fatalf("find seeded product %s: %v", barcode, err)
	}
	return *p
}

func TestHandleHealth(t *testing.T) {
	rec := doJSON(t, newTestAPI(t), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "admin", "password": "admin123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["accessToken"] == nil || body["role"] != domain.RoleAdmin {
		t.Fatalf("expected accessToken and admin role, got %v", body)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := decodeBody[map[string]string](t, rec)["message"]; msg == "" {
		t.Fatalf("expected message in error body")
	}
}

func TestProductsRequireAuth(t *testing.T) {
	rec := doJSON(t, newTestAPI(t), http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProductListingAndBarcodeLookup(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsEmployee(t, api)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/products?search=rice", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if products := decodeBody[[]domain.Product](t, rec); len(products) != 1 {
		t.Fatalf("expected one rice product, got %d", len(products))
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/products/barcode/100003", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if p := decodeBody[domain.Product](t, rec); p.Name != "Amul Butter 100g" {
		t.Fatalf("unexpected product %+v", p)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/products/barcode/999999", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEmployeeCannotManageProducts(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsEmployee(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{Name: "Ghee", Category: "dairy", Price: 600, GST: 12})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAdminCreatesProductWithGeneratedBarcode(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{Name: "Ghee", Category: "dairy", Price: 600, GST: 12, Stock: 4})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if p := decodeBody[domain.Product](t, rec); len(p.Barcode) != 6 {
		t.Fatalf("expected six digit barcode, got %q", p.Barcode)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{Name: "Dup", Barcode: "100001", Category: "x", Price: 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate barcode, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{Name: "Odd", Category: "x", Price: 1, GST: 10})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown gst slab, got %d", rec.Code)
	}
}

func TestCheckoutCreatesBill(t *testing.T) {
	s := newTestServer(t)
	token := loginAsEmployee(t, s.api)
	rice := seededProduct(t, s, "100001")

	rec := doJSON(t, s.api, http.MethodPost, "/api/v1/bills", token, domain.CheckoutRequest{
		Items:        []domain.CheckoutItem{{ProductID: rice.ID, Name: rice.Name, Qty: 2, Price: rice.Price, GST: rice.GST}},
		PaymentMode:  domain.PaymentUPI,
		Customer:     &domain.CheckoutCustomer{Name: "Asha", Phone: "9999999999"},
		EmployeeName: "Counter 2",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	bill := decodeBody[domain.Bill](t, rec)
	if bill.TotalAmount != 240 || bill.TaxAmount != 11.43 || bill.SubTotal != 228.57 {
		t.Fatalf("unexpected totals %v/%v/%v", bill.TotalAmount, bill.TaxAmount, bill.SubTotal)
	}
	if bill.BilledBy.Name != "Counter 2" || bill.BilledBy.Role != domain.RoleEmployee {
		t.Fatalf("unexpected billedBy %+v", bill.BilledBy)
	}
	if bill.Customer == nil || bill.Customer.Phone != "9999999999" {
		t.Fatalf("expected customer snapshot, got %+v", bill.Customer)
	}

	rec = doJSON(t, s.api, http.MethodGet, "/api/v1/bills/"+bill.ID+"/payments", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if payments := decodeBody[[]domain.Payment](t, rec); len(payments) != 1 || payments[0].Method != domain.PaymentUPI {
		t.Fatalf("unexpected payments %+v", payments)
	}
}

func TestCheckoutInsufficientStockReturnsConflict(t *testing.T) {
	s := newTestServer(t)
	token := loginAsEmployee(t, s.api)
	soap := seededProduct(t, s, "100006")

	rec := doJSON(t, s.api, http.MethodPost, "/api/v1/bills", token, domain.CheckoutRequest{
		Items:       []domain.CheckoutItem{{ProductID: soap.ID, Qty: soap.Stock + 1, Price: soap.Price, GST: soap.GST}},
		PaymentMode: domain.PaymentCash,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["product_name"] != soap.Name || body["available"] != float64(soap.Stock) {
		t.Fatalf("unexpected error body %v", body)
	}
}

func TestCheckoutRejectsMalformedPayload(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsEmployee(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/bills", token, map[string]any{"items": []any{}, "paymentMode": "Cheque"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = doJSON(t, api, http.MethodPost, "/api/v1/bills", token, map[string]any{"unknownField": true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestBillListingIsRoleFiltered(t *testing.T) {
	s := newTestServer(t)
	employee := loginAsEmployee(t, s.api)
	admin := loginAsAdmin(t, s.api)
	dal := seededProduct(t, s, "100002")

	cart := domain.CheckoutRequest{
		Items:       []domain.CheckoutItem{{ProductID: dal.ID, Qty: 1, Price: dal.Price, GST: dal.GST}},
		PaymentMode: domain.PaymentCash,
	}
	if rec := doJSON(t, s.api, http.MethodPost, "/api/v1/bills", admin, cart); rec.Code != http.StatusCreated {
		t.Fatalf("admin checkout failed: %d", rec.Code)
	}
	if rec := doJSON(t, s.api, http.MethodPost, "/api/v1/bills", employee, cart); rec.Code != http.StatusCreated {
		t.Fatalf("employee checkout failed: %d", rec.Code)
	}

	own := decodeBody[[]domain.Bill](t, doJSON(t, s.api, http.MethodGet, "/api/v1/bills", employee, nil))
	if len(own) != 1 {
		t.Fatalf("expected employee to see 1 bill, got %d", len(own))
	}
	all := decodeBody[[]domain.Bill](t, doJSON(t, s.api, http.MethodGet, "/api/v1/bills", admin, nil))
	if len(all) != 2 {
		t.Fatalf("expected admin to see 2 bills, got %d", len(all))
	}

	var adminBill domain.Bill
	for _, b := range all {
		if b.BilledBy.Role == domain.RoleAdmin {
			adminBill = b
		}
	}
	rec := doJSON(t, s.api, http.MethodGet, "/api/v1/bills/"+adminBill.ID, employee, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 reading admin bill as employee, got %d", rec.Code)
	}

	rec = doJSON(t, s.api, http.MethodGet, "/api/v1/bills?from=yesterday", admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad from, got %d", rec.Code)
	}
}

func TestPurchasesAreAdminOnly(t *testing.T) {
	s := newTestServer(t)
	employee := loginAsEmployee(t, s.api)
	admin := loginAsAdmin(t, s.api)
	chai := seededProduct(t, s, "100004")

	if rec := doJSON(t, s.api, http.MethodGet, "/api/v1/purchases", employee, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee, got %d", rec.Code)
	}

	rec := doJSON(t, s.api, http.MethodPost, "/api/v1/purchases", admin, domain.PurchaseCreateRequest{ProductID: chai.ID, Quantity: 10, UnitCost: 100})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	purchase := decodeBody[domain.Purchase](t, rec)

	rec = doJSON(t, s.api, http.MethodPut, "/api/v1/purchases/"+purchase.ID, admin, domain.PurchaseUpdateRequest{Quantity: 15, UnitCost: 100})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := seededProduct(t, s, "100004").Stock; got != chai.Stock+15 {
		t.Fatalf("expected stock %d, got %d", chai.Stock+15, got)
	}

	rec = doJSON(t, s.api, http.MethodDelete, "/api/v1/purchases/"+purchase.ID, admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := seededProduct(t, s, "100004").Stock; got != chai.Stock {
		t.Fatalf("expected stock back to %d, got %d", chai.Stock, got)
	}
}

func TestCustomerEndpoints(t *testing.T) {
	api := newTestAPI(t)
	employee := loginAsEmployee(t, api)
	admin := loginAsAdmin(t, api)

	req := domain.CustomerCreateRequest{Name: "Meera", Phone: "9000000002"}
	if rec := doJSON(t, api, http.MethodPost, "/api/v1/customers", employee, req); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if rec := doJSON(t, api, http.MethodPost, "/api/v1/customers", employee, req); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate phone, got %d", rec.Code)
	}

	rec := doJSON(t, api, http.MethodGet, "/api/v1/customers/phone/9000000002", employee, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if c := decodeBody[domain.Customer](t, rec); c.Name != "Meera" {
		t.Fatalf("unexpected customer %+v", c)
	}

	if rec := doJSON(t, api, http.MethodGet, "/api/v1/customers", employee, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 listing customers as employee, got %d", rec.Code)
	}
	list := decodeBody[[]domain.CustomerSummary](t, doJSON(t, api, http.MethodGet, "/api/v1/customers", admin, nil))
	if len(list) != 1 {
		t.Fatalf("expected 1 customer, got %d", len(list))
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/customers/phone/9000000002/orders", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if orders := decodeBody[[]domain.Bill](t, rec); len(orders) != 0 {
		t.Fatalf("expected no orders, got %d", len(orders))
	}
}

func TestDashboardStatsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsEmployee(t, api)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/dashboard/stats", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	stats := decodeBody[domain.DashboardStats](t, rec)
	if stats.LowStockItems != 1 || stats.TotalBillsToday != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestEmployeeAccountsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAsAdmin(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/users/employees", admin, domain.EmployeeCreateRequest{Username: "ravi01", Name: "Ravi", Password: "pass1234"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	login(t, api, "ravi01", "pass1234")

	employees := decodeBody[[]domain.EmployeeUser](t, doJSON(t, api, http.MethodGet, "/api/v1/users/employees", admin, nil))
	if len(employees) != 2 {
		t.Fatalf("expected 2 employees, got %d", len(employees))
	}

	employee := loginAsEmployee(t, api)
	if rec := doJSON(t, api, http.MethodGet, "/api/v1/users/employees", employee, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee, got %d", rec.Code)
	}
}
