package events

import (
	"context"
	"errors"

	"caseflow/internal/ports"
)

// Multi publishes to every target and joins their errors.
type Multi []ports.Publisher

var _ ports.Publisher = Multi(nil)

func (m Multi) Publish(ctx context.Context, change ports.CaseChanged) error {
	var errList []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, change); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
