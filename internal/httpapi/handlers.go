package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gstpos/backend/internal/domain"
)

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context(), r.URL.Query().Get("search"))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, products)
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, product)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/api/v1/products/")
	switch {
	case len(parts) == 2 && parts[0] == "barcode":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		product, err := a.service.LookupBarcode(r.Context(), parts[1])
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case len(parts) == 1:
		a.handleProduct(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown product path"))
	}
}

func (a *API) handleProduct(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), id)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodPut, http.MethodPatch:
		var req domain.ProductUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := a.service.UpdateProduct(r.Context(), id, req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteProduct(r.Context(), id); err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "product deleted"})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleBills(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter, err := billFilterFrom(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		bills, err := a.service.ListBills(r.Context(), filter)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, bills)
	case http.MethodPost:
		var req domain.CheckoutRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		bill, err := a.service.Checkout(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, bill)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleBillActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	parts := pathTail(r, "/api/v1/bills/")
	switch {
	case len(parts) == 1:
		bill, err := a.service.GetBill(r.Context(), parts[0])
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, bill)
	case len(parts) == 2 && parts[1] == "payments":
		payments, err := a.service.ListBillPayments(r.Context(), parts[0])
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payments)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown bill path"))
	}
}

// billFilterFrom reads optional from/to bounds, given as a date or RFC3339
// timestamp.
func billFilterFrom(r *http.Request) (domain.BillFilter, error) {
	var filter domain.BillFilter
	for _, bound := range []struct {
		key  string
		dest **time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		raw := strings.TrimSpace(r.URL.Query().Get(bound.key))
		if raw == "" {
			continue
		}
		parsed, err := parseTimeParam(raw)
		if err != nil {
			return domain.BillFilter{}, fmt.Errorf("%s must be a date (2006-01-02) or RFC3339 timestamp", bound.key)
		}
		*bound.dest = &parsed
	}
	return filter, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, raw, time.Local)
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		customers, err := a.service.ListCustomers(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, customers)
	case http.MethodPost:
		var req domain.CustomerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.RegisterCustomer(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, customer)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/api/v1/customers/")
	switch {
	case len(parts) == 2 && parts[0] == "phone":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		customer, err := a.service.FindCustomerByPhone(r.Context(), parts[1])
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, customer)
	case len(parts) == 3 && parts[0] == "phone" && parts[2] == "orders":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		bills, err := a.service.CustomerOrders(r.Context(), parts[1])
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, bills)
	case len(parts) == 1:
		a.handleCustomer(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown customer path"))
	}
}

func (a *API) handleCustomer(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		customer, err := a.service.GetCustomer(r.Context(), id)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, customer)
	case http.MethodPut, http.MethodPatch:
		var req domain.CustomerUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := a.service.UpdateCustomer(r.Context(), id, req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePurchases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		purchases, err := a.service.ListPurchases(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, purchases)
	case http.MethodPost:
		var req domain.PurchaseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		purchase, err := a.service.CreatePurchase(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, purchase)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePurchaseActions(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/api/v1/purchases/")
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, errors.New("unknown purchase path"))
		return
	}
	id := parts[0]

	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		var req domain.PurchaseUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		updated, err := a.service.UpdatePurchase(r.Context(), id, req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeletePurchase(r.Context(), id); err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "purchase deleted"})
	default:
		writeMethodNotAllowed(w)
	}
}
