package utils

import "github.com/google/uuid"

// UUIDGenerator mints device identities for the sync bookkeeping. It
// satisfies the store's IDGenerator seam so tests can pin ids.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Generate returns a fresh UUID string. Version 7 is preferred because the
// time-ordered prefix keeps archive names from one fleet of devices grouped
// when sorted; if v7 generation fails a random v4 is still a perfectly good
// identity.
func (g *UUIDGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
