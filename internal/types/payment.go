package types

import (
	"fmt"

	"github.com/samber/lo"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	// PaymentStatusRefunded is terminal and always paired with a refund
	// record on the gateway side
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) Validate() error {
	allowed := []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusCompleted,
		PaymentStatusFailed,
		PaymentStatusRefunded,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid payment status: %s", s)
	}
	return nil
}

// PaymentMethodType represents how a payment was collected
type PaymentMethodType string

const (
	PaymentMethodTypeCard   PaymentMethodType = "card"
	PaymentMethodTypePayPal PaymentMethodType = "paypal"
	// PaymentMethodTypeBankTransfer is a manually recorded payment backed
	// by an uploaded proof document
	PaymentMethodTypeBankTransfer PaymentMethodType = "bank_transfer"
)

func (s PaymentMethodType) String() string {
	return string(s)
}

func (s PaymentMethodType) Validate() error {
	allowed := []PaymentMethodType{
		PaymentMethodTypeCard,
		PaymentMethodTypePayPal,
		PaymentMethodTypeBankTransfer,
	}
	if !lo.Contains(allowed, s) {
		return fmt.Errorf("invalid payment method type: %s", s)
	}
	return nil
}

// PaymentGatewayType represents the external payment processor
type PaymentGatewayType string

const (
	PaymentGatewayTypeStripe PaymentGatewayType = "stripe"
	PaymentGatewayTypePayPal PaymentGatewayType = "paypal"
)

func (p PaymentGatewayType) String() string {
	return string(p)
}

func (p PaymentGatewayType) Validate() error {
	allowed := []PaymentGatewayType{
		PaymentGatewayTypeStripe,
		PaymentGatewayTypePayPal,
	}
	if !lo.Contains(allowed, p) {
		return fmt.Errorf("invalid payment gateway type: %s", p)
	}
	return nil
}

// PaymentFilter represents the filter for listing payments
type PaymentFilter struct {
	InvoiceID    string          `form:"invoice_id"`
	SubscriberID string          `form:"subscriber_id"`
	Statuses     []PaymentStatus `form:"statuses"`
}
