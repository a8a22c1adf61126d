package normalizer

import (
	"context"

	"github.com/winbalf/retail-data-pipeline/internal/normalizer/domain"
)

// Retailer2 reports POS transactions: transaction_number, item_code,
// qty, unit_cost, amount, date.
type Retailer2 struct{}

func NewRetailer2() *Retailer2 {
	return &Retailer2{}
}

func (n *Retailer2) SourceCode() string {
	return "retailer_2"
}

func (n *Retailer2) Normalize(_ context.Context, raw domain.RawRecord) (domain.CanonicalRecord, error) {
	transactionID, err := requireString(raw, "transaction_number")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	productRef, err := requireString(raw, "item_code")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	productName, err := requireString(raw, "item_name")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	quantity, err := requireInt(raw, "qty")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	unitPrice, err := requireFloat(raw, "unit_cost")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	totalAmount, err := requireFloat(raw, "amount")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	occurredAt, err := requireTime(raw, "date")
	if err != nil {
		return domain.CanonicalRecord{}, err
	}

	record := domain.CanonicalRecord{
		SourceCode:    n.SourceCode(),
		TransactionID: transactionID,
		OccurredAt:    occurredAt,
		CustomerRef:   optionalString(raw, "member_id"),
		StoreRef:      optionalString(raw, "location_id"),
		ProductRef:    productRef,
		ProductName:   productName,
		Category:      optionalString(raw, "department"),
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		TotalAmount:   totalAmount,
		Raw:           raw,
	}
	return validateRecord(record)
}
