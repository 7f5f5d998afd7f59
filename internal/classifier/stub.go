package classifier

import (
	"context"
	"fmt"

	"pokeball/internal/domain"
)

// Stub is a scripted classifier for tests, keyed by image content.
type Stub struct {
	// Results maps string(image) to the verdict to return.
	Results map[string]domain.Classification
	// Err, when set, is returned for every call.
	Err error
}

// NewStub creates an empty stub classifier.
func NewStub() *Stub {
	return &Stub{Results: make(map[string]domain.Classification)}
}

// Classify returns the scripted verdict for the image bytes.
func (s *Stub) Classify(_ context.Context, image []byte) (domain.Classification, error) {
	if s.Err != nil {
		return domain.Classification{}, s.Err
	}
	result, ok := s.Results[string(image)]
	if !ok {
		return domain.Classification{}, fmt.Errorf("no scripted classification for image")
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ Classifier = (*Stub)(nil)
