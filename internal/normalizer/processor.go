// Package normalizer turns EDGAR search hits into display records.
package normalizer

import (
	"fmt"

	"formdwatch/internal/models"
)

// Processor validates then transforms a hit list.
type Processor struct {
	validator   *Validator
	transformer *Transformer
}

// NewProcessor creates a new processor instance.
func NewProcessor() *Processor {
	return NewProcessorWithTransformer(NewTransformer())
}

// NewProcessorWithTransformer creates a processor around a configured transformer.
func NewProcessorWithTransformer(t *Transformer) *Processor {
	return &Processor{
		validator:   NewValidator(),
		transformer: t,
	}
}

// Process fails the whole batch on the first contract violation; otherwise it
// returns one Filing per hit in the same order.
func (p *Processor) Process(hits []models.FilingHit) ([]models.Filing, error) {
	if err := p.validator.Validate(hits); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return p.transformer.Transform(hits), nil
}
