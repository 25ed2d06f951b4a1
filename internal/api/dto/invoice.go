package dto

import (
	"github.com/developer-chetaru/tribe365-billing/internal/domain/invoice"
)

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	*invoice.Invoice
}

// ListInvoicesResponse is a list of invoices
type ListInvoicesResponse struct {
	Items []*InvoiceResponse `json:"items"`
	Total int                `json:"total"`
}

func NewListInvoicesResponse(invoices []*invoice.Invoice) *ListInvoicesResponse {
	items := make([]*InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		items = append(items, &InvoiceResponse{Invoice: inv})
	}
	return &ListInvoicesResponse{Items: items, Total: len(items)}
}
