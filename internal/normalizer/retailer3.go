package normalizer

import (
	"context"

	"github.com/winbalf/retail-data-pipeline/internal/normalizer/domain"
)

// Retailer3 exposes an analytics export: sale_id, product_code, count,
// price_per_unit, revenue, timestamp.
type Retailer3 struct{}

func NewRetailer3() *Retailer3 {
	return &Retailer3{}
}

func (n *Retailer3) SourceCode() string {
	return "retailer_3"
}

func (n *Retailer3) Normalize(_ context.Context, raw domain.RawRecord) (domain.CanonicalRecord, error) {
	transactionID, err := requireString(raw, "sale_id")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	productRef, err := requireString(raw, "product_code")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	productName, err := requireString(raw, "name")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	quantity, err := requireInt(raw, "count")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	unitPrice, err := requireFloat(raw, "price_per_unit")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	totalAmount, err := requireFloat(raw, "revenue")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	occurredAt, err := requireTime(raw, "timestamp")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}

	record := domain.CanonicalRecord{
		SourceCode:    n.SourceCode(),
		TransactionID: transactionID,
		OccurredAt:    occurredAt,
		CustomerRef:   optionalString(raw, "buyer_id"),
		StoreRef:      optionalString(raw, "outlet_id"),
		ProductRef:    productRef,
		ProductName:   productName,
		Category:      optionalString(raw, "type"),
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		TotalAmount:   totalAmount,
		Raw:           raw,
	}
	return validateRecord(record)
}
