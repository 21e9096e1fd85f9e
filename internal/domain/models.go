package domain

import "time"

type Product struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Barcode     string    `json:"barcode" bson:"barcode"`
	Category    string    `json:"category" bson:"category"`
	SubCategory string    `json:"subCategory,omitempty" bson:"sub_category,omitempty"`
	MRP         *float64  `json:"mrp,omitempty" bson:"mrp,omitempty"`
	Price       float64   `json:"price" bson:"price"`
	CostPrice   float64   `json:"costPrice" bson:"cost_price"`
	GST         float64   `json:"gst" bson:"gst"`
	Stock       int       `json:"stock" bson:"stock"`
	Deleted     bool      `json:"deleted,omitempty" bson:"deleted"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updated_at"`
}

type ProductCreateRequest struct {
	Name        string   `json:"name" validate:"required"`
	Barcode     string   `json:"barcode"`
	Category    string   `json:"category" validate:"required"`
	SubCategory string   `json:"subCategory"`
	MRP         *float64 `json:"mrp" validate:"omitempty,gte=0"`
	Price       float64  `json:"price" validate:"gt=0"`
	CostPrice   float64  `json:"costPrice" validate:"gte=0"`
	GST         float64  `json:"gst"`
	Stock       int      `json:"stock" validate:"gte=0"`
}

type ProductUpdateRequest struct {
	Name        *string  `json:"name,omitempty"`
	Barcode     *string  `json:"barcode,omitempty"`
	Category    *string  `json:"category,omitempty"`
	SubCategory *string  `json:"subCategory,omitempty"`
	MRP         *float64 `json:"mrp,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	CostPrice   *float64 `json:"costPrice,omitempty"`
	GST         *float64 `json:"gst,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
}

// StockAdjustment is a signed quantity change for one product.
type StockAdjustment struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

const (
	PaymentCash = "Cash"
	PaymentUPI  = "UPI"
	PaymentCard = "Card"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

type BillItem struct {
	ProductID string   `json:"productId" bson:"product_id"`
	Name      string   `json:"name" bson:"name"`
	Qty       int      `json:"qty" bson:"qty"`
	MRP       *float64 `json:"mrp,omitempty" bson:"mrp,omitempty"`
	Price     float64  `json:"price" bson:"price"`
	GST       float64  `json:"gst" bson:"gst"`
	Amount    float64  `json:"amount" bson:"amount"`
}

type CustomerSnapshot struct {
	ID    string `json:"id,omitempty" bson:"id,omitempty"`
	Name  string `json:"name" bson:"name"`
	Phone string `json:"phone" bson:"phone"`
}

type BilledBy struct {
	UserID string `json:"userId" bson:"user_id"`
	Name   string `json:"name" bson:"name"`
	Role   string `json:"role" bson:"role"`
}

type Bill struct {
	ID          string            `json:"id" bson:"_id"`
	BillNo      string            `json:"billNo" bson:"bill_no"`
	Items       []BillItem        `json:"items" bson:"items"`
	SubTotal    float64           `json:"subTotal" bson:"sub_total"`
	TaxAmount   float64           `json:"taxAmount" bson:"tax_amount"`
	TotalAmount float64           `json:"totalAmount" bson:"total_amount"`
	PaymentMode string            `json:"paymentMode" bson:"payment_mode"`
	Customer    *CustomerSnapshot `json:"customer,omitempty" bson:"customer,omitempty"`
	BilledBy    BilledBy          `json:"billedBy" bson:"billed_by"`
	CreatedAt   time.Time         `json:"createdAt" bson:"created_at"`
}

type Payment struct {
	ID          string    `json:"id" bson:"_id"`
	BillID      string    `json:"billId" bson:"bill_id"`
	Amount      float64   `json:"amount" bson:"amount"`
	Method      string    `json:"method" bson:"method"`
	ReferenceID string    `json:"referenceId,omitempty" bson:"reference_id,omitempty"`
	Date        time.Time `json:"date" bson:"date"`
}

// BillFilter narrows bill listings. An empty EmployeeID lists every bill.
type BillFilter struct {
	EmployeeID string
	From       *time.Time
	To         *time.Time
}

type CheckoutItem struct {
	ProductID string   `json:"productId" validate:"required"`
	Name      string   `json:"name"`
	Qty       int      `json:"qty" validate:"gt=0,lte=1000000"`
	MRP       *float64 `json:"mrp,omitempty"`
	Price     float64  `json:"price" validate:"gte=0"`
	GST       float64  `json:"gst" validate:"gte=0"`
}

type CheckoutCustomer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type CheckoutRequest struct {
	Items        []CheckoutItem    `json:"items" validate:"required,min=1,dive"`
	SubTotal     *float64          `json:"subTotal,omitempty"`
	TaxAmount    *float64          `json:"taxAmount,omitempty"`
	TotalAmount  *float64          `json:"totalAmount,omitempty"`
	PaymentMode  string            `json:"paymentMode" validate:"required,oneof=Cash UPI Card"`
	ReferenceID  string            `json:"referenceId,omitempty"`
	Customer     *CheckoutCustomer `json:"customer,omitempty"`
	EmployeeName string            `json:"employeeName,omitempty"`
}

type Customer struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Phone     string    `json:"phone" bson:"phone"`
	Email     string    `json:"email,omitempty" bson:"email,omitempty"`
	Address   string    `json:"address,omitempty" bson:"address,omitempty"`
	Points    int       `json:"points" bson:"points"`
	Orders    []string  `json:"orders" bson:"orders"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

type CustomerUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
	Points  *int    `json:"points,omitempty"`
}

type CustomerSummary struct {
	Customer
	TotalOrders int `json:"totalOrders"`
}

type Purchase struct {
	ID          string    `json:"id" bson:"_id"`
	ProductID   string    `json:"productId" bson:"product_id"`
	ProductName string    `json:"productName" bson:"product_name"`
	Quantity    int       `json:"quantity" bson:"quantity"`
	UnitCost    float64   `json:"unitCost" bson:"unit_cost"`
	TotalAmount float64   `json:"totalAmount" bson:"total_amount"`
	Supplier    string    `json:"supplier" bson:"supplier"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

type PurchaseCreateRequest struct {
	ProductID   string  `json:"productId" validate:"required"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity" validate:"gte=1"`
	UnitCost    float64 `json:"unitCost" validate:"gte=0"`
	Supplier    string  `json:"supplier"`
}

type PurchaseUpdateRequest struct {
	Quantity int     `json:"quantity" validate:"gte=1"`
	UnitCost float64 `json:"unitCost" validate:"gte=0"`
}

type DashboardStats struct {
	TodaySales      float64 `json:"todaySales"`
	MonthlySales    float64 `json:"monthlySales"`
	TotalBillsToday int     `json:"totalBillsToday"`
	LowStockItems   int     `json:"lowStockItems"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
	Name        string `json:"name"`
	ExpiresAt   string `json:"expiresAt"`
}

// Actor is the authenticated session identity supplied by the auth layer.
type Actor struct {
	ID       string
	Username string
	Name     string
	Role     string
}

type EmployeeCreateRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type EmployeeUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Name      string    `bson:"name"`
	Password  string    `bson:"password"`
	Role      string    `bson:"role"`
	Active    bool      `bson:"active"`
	CreatedAt time.Time `bson:"created_at"`
}
