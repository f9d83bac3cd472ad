package journal

import "github.com/google/uuid"

// IDProvider issues client-side entry identifiers.
type IDProvider interface {
	NewID() (EntryID, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (EntryID, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return EntryID(value.String()), nil
}
