package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/furniture-store/internal/model"
	"github.com/mmeshcher/furniture-store/internal/service"
)

type orderItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type addressDTO struct {
	StreetAddress string `json:"streetAddress"`
	Unit          string `json:"unit,omitempty"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zipCode"`
	Country       string `json:"country"`
	Formatted     string `json:"formatted,omitempty"`
}

type createOrderRequest struct {
	Email           string             `json:"email"`
	FirstName       string             `json:"firstName"`
	LastName        string             `json:"lastName"`
	Phone           string             `json:"phone"`
	Items           []orderItemRequest `json:"items"`
	ShippingAddress *addressDTO        `json:"shippingAddress"`
	BillingAddress  *addressDTO        `json:"billingAddress"`
	TaxAmount       *decimal.Decimal   `json:"taxAmount"`
	ShippingCost    *decimal.Decimal   `json:"shippingCost"`
	CouponCode      string             `json:"couponCode"`
}

func (r createOrderRequest) toService() service.CreateOrderRequest {
	req := service.CreateOrderRequest{
		Email:           r.Email,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Phone:           r.Phone,
		ShippingAddress: r.ShippingAddress.toModel(),
		BillingAddress:  r.BillingAddress.toModel(),
		TaxAmount:       decimal.Zero,
		ShippingCost:    decimal.Zero,
		CouponCode:      r.CouponCode,
	}
	if r.TaxAmount != nil {
		req.TaxAmount = *r.TaxAmount
	}
	if r.ShippingCost != nil {
		req.ShippingCost = *r.ShippingCost
	}
	for _, item := range r.Items {
		req.Items = append(req.Items, service.OrderItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return req
}

func (a *addressDTO) toModel() *model.Address {
	if a == nil {
		return nil
	}
	return &model.Address{
		Street:     a.StreetAddress,
		Unit:       a.Unit,
		City:       a.City,
		State:      a.State,
		PostalCode: a.ZipCode,
		Country:    a.Country,
	}
}

func newAddressDTO(a *model.Address) *addressDTO {
	if a == nil {
		return nil
	}
	return &addressDTO{
		StreetAddress: a.Street,
		Unit:          a.Unit,
		City:          a.City,
		State:         a.State,
		ZipCode:       a.PostalCode,
		Country:       a.Country,
		Formatted:     a.Formatted(),
	}
}

type orderItemResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

type orderResponse struct {
	ID                    int64               `json:"id"`
	OrderNumber           string              `json:"orderNumber"`
	Email                 string              `json:"email"`
	FirstName             string              `json:"firstName"`
	LastName              string              `json:"lastName"`
	Phone                 string              `json:"phone,omitempty"`
	Items                 []orderItemResponse `json:"items"`
	Status                string              `json:"status"`
	Subtotal              decimal.Decimal     `json:"subtotal"`
	TaxAmount             decimal.Decimal     `json:"taxAmount"`
	ShippingCost          decimal.Decimal     `json:"shippingCost"`
	DiscountAmount        decimal.Decimal     `json:"discountAmount"`
	TotalAmount           decimal.Decimal     `json:"totalAmount"`
	CouponCode            string              `json:"couponCode,omitempty"`
	ShippingAddress       *addressDTO         `json:"shippingAddress,omitempty"`
	BillingAddress        *addressDTO         `json:"billingAddress,omitempty"`
	OrderDate             string              `json:"orderDate"`
	EstimatedDeliveryDate string              `json:"estimatedDeliveryDate,omitempty"`
	UpdatedAt             string              `json:"updatedAt"`
}

func newOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Email:           o.Email,
		FirstName:       o.FirstName,
		LastName:        o.LastName,
		Phone:           o.Phone,
		Items:           make([]orderItemResponse, 0, len(o.Items)),
		Status:          string(o.Status),
		Subtotal:        o.Subtotal,
		TaxAmount:       o.TaxAmount,
		ShippingCost:    o.ShippingCost,
		DiscountAmount:  o.DiscountAmount,
		TotalAmount:     o.TotalAmount,
		CouponCode:      o.CouponCode,
		ShippingAddress: newAddressDTO(o.ShippingAddress),
		BillingAddress:  newAddressDTO(o.BillingAddress),
		OrderDate:       o.OrderDate.Format(time.RFC3339),
		UpdatedAt:       o.UpdatedAt.Format(time.RFC3339),
	}
	if !o.EstimatedDeliveryDate.IsZero() {
		resp.EstimatedDeliveryDate = o.EstimatedDeliveryDate.Format(time.DateOnly)
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			TotalPrice:  item.TotalPrice,
		})
	}
	return resp
}

func newOrderListResponse(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, newOrderResponse(&orders[i]))
	}
	return resp
}

type statusHistoryResponse struct {
	ID             int64   `json:"id"`
	PreviousStatus *string `json:"previousStatus"`
	NewStatus      string  `json:"newStatus"`
	Notes          string  `json:"notes,omitempty"`
	ChangedAt      string  `json:"changedAt"`
	ChangedBy      string  `json:"changedBy"`
}

func newHistoryResponse(history []model.StatusHistory) []statusHistoryResponse {
	resp := make([]statusHistoryResponse, 0, len(history))
	for _, h := range history {
		item := statusHistoryResponse{
			ID:        h.ID,
			NewStatus: string(h.NewStatus),
			Notes:     h.Notes,
			ChangedAt: h.ChangedAt.Format(time.RFC3339),
			ChangedBy: h.ChangedBy,
		}
		if h.PreviousStatus != nil {
			prev := string(*h.PreviousStatus)
			item.PreviousStatus = &prev
		}
		resp = append(resp, item)
	}
	return resp
}

type couponValidationResponse struct {
	Code           string          `json:"code"`
	Valid          bool            `json:"valid"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Reason         string          `json:"reason,omitempty"`
}

type createCouponRequest struct {
	Code                  string           `json:"code"`
	Description           string           `json:"description"`
	DiscountType          string           `json:"discountType"`
	DiscountValue         decimal.Decimal  `json:"discountValue"`
	MinimumOrderAmount    *decimal.Decimal `json:"minimumOrderAmount"`
	MaximumDiscountAmount *decimal.Decimal `json:"maximumDiscountAmount"`
	UsageLimit            *int             `json:"usageLimit"`
	ValidFrom             time.Time        `json:"validFrom"`
	ValidUntil            time.Time        `json:"validUntil"`
	Active                *bool            `json:"active"`
}

func (r createCouponRequest) toService() service.CreateCouponRequest {
	req := service.CreateCouponRequest{
		Code:                  r.Code,
		Description:           r.Description,
		DiscountType:          model.DiscountType(r.DiscountType),
		DiscountValue:         r.DiscountValue,
		MinimumOrderAmount:    decimal.Zero,
		MaximumDiscountAmount: r.MaximumDiscountAmount,
		UsageLimit:            r.UsageLimit,
		ValidFrom:             r.ValidFrom,
		ValidUntil:            r.ValidUntil,
		Active:                true,
	}
	if r.MinimumOrderAmount != nil {
		req.MinimumOrderAmount = *r.MinimumOrderAmount
	}
	if r.Active != nil {
		req.Active = *r.Active
	}
	return req
}

type couponResponse struct {
	ID                    int64            `json:"id"`
	Code                  string           `json:"code"`
	Description           string           `json:"description,omitempty"`
	DiscountType          string           `json:"discountType"`
	DiscountValue         decimal.Decimal  `json:"discountValue"`
	MinimumOrderAmount    decimal.Decimal  `json:"minimumOrderAmount"`
	MaximumDiscountAmount *decimal.Decimal `json:"maximumDiscountAmount,omitempty"`
	UsageLimit            *int             `json:"usageLimit,omitempty"`
	UsedCount             int              `json:"usedCount"`
	ValidFrom             string           `json:"validFrom"`
	ValidUntil            string           `json:"validUntil"`
	Active                bool             `json:"active"`
}

func newCouponResponse(c *model.Coupon) couponResponse {
	return couponResponse{
		ID:                    c.ID,
		Code:                  c.Code,
		Description:           c.Description,
		DiscountType:          string(c.DiscountType),
		DiscountValue:         c.DiscountValue,
		MinimumOrderAmount:    c.MinimumOrderAmount,
		MaximumDiscountAmount: c.MaximumDiscountAmount,
		UsageLimit:            c.UsageLimit,
		UsedCount:             c.UsedCount,
		ValidFrom:             c.ValidFrom.Format(time.RFC3339),
		ValidUntil:            c.ValidUntil.Format(time.RFC3339),
		Active:                c.Active,
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	ProductID *int64 `json:"productId,omitempty"`
	ItemIndex *int   `json:"itemIndex,omitempty"`
}
