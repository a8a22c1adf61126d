package normalizer

import (
	"context"

	"github.com/winbalf/retail-data-pipeline/internal/normalizer/domain"
)

// Retailer1 sells through an order-centric API: order_id, sku, price,
// total, order_date.
type Retailer1 struct{}

func NewRetailer1() *Retailer1 {
	return &Retailer1{}
}

func (n *Retailer1) SourceCode() string {
	return "retailer_1"
}

func (n *Retailer1) Normalize(_ context.Context, raw domain.RawRecord) (domain.CanonicalRecord, error) {
	transactionID, err := requireString(raw, "order_id")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	productRef, err := requireString(raw, "sku")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	productName, err := requireString(raw, "product_name")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	quantity, err := requireInt(raw, "quantity")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	unitPrice, err := requireFloat(raw, "price")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	totalAmount, err := requireFloat(raw, "total")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	occurredAt, err := requireTime(raw, "order_date")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}

	record := domain.CanonicalRecord{
		SourceCode:    n.SourceCode(),
		TransactionID: transactionID,
		OccurredAt:    occurredAt,
		CustomerRef:   optionalString(raw, "customer_id"),
		StoreRef:      optionalString(raw, "store_id"),
		ProductRef:    productRef,
		ProductName:   productName,
		Category:      optionalString(raw, "category"),
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		TotalAmount:   totalAmount,
		Raw:           raw,
	}
	return validateRecord(record)
}
