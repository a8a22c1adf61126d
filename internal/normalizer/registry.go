package normalizer

import (
	"fmt"

	"github.com/winbalf/retail-data-pipeline/internal/normalizer/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("normalizer",
	fx.Provide(NewRegistry),
)

// Registry dispatches raw records to the normalizer registered for
// their source code. Dispatch happens here, at the batch boundary,
// never by inspecting the record itself.
type Registry struct {
	bySource map[string]domain.Normalizer
}

func NewRegistry() *Registry {
	registry := &Registry{bySource: make(map[string]domain.Normalizer)}
	registry.Register(NewRetailer1())
	registry.Register(NewRetailer2())
	registry.Register(NewRetailer3())
	return registry
}

func (r *Registry) Register(n domain.Normalizer) {
	r.bySource[n.SourceCode()] = n
}

// ForSource returns the normalizer for a source code.
func (r *Registry) ForSource(sourceCode string) (domain.Normalizer, error) {
	n, ok := r.bySource[sourceCode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSource, sourceCode)
	}
	return n, nil
}

// SourceCodes lists the registered source codes.
func (r *Registry) SourceCodes() []string {
	codes := make([]string, 0, len(r.bySource))
	for code := range r.bySource {
		codes = append(codes, code)
	}
	return codes
}

// validateRecord enforces the measure constraints shared by every
// source variant.
func validateRecord(record domain.CanonicalRecord) (domain.CanonicalRecord, error) {
	if record.Quantity <= 0 {
		return domain.CanonicalRecord{}, badField("quantity", record.Quantity)
	}
	if record.UnitPrice < 0 {
		return domain.CanonicalRecord{}, badField("unit_price", record.UnitPrice)
	}
	if record.TotalAmount < 0 {
		return domain.CanonicalRecord{}, badField("total_amount", record.TotalAmount)
	}
	return record, nil
}
