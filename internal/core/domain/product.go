package domain

import "time"

// ProductFields are the caller-supplied parts of a registration.
type ProductFields struct {
	Name           string
	ProductionDate string
	ExpiryDate     string
	MedicalInfo    string
}

// Validate reports the first empty field. Formats are not checked.
func (f ProductFields) Validate() error {
	switch {
	case f.Name == "":
		return &ValidationError{Field: "name"}
	case f.ProductionDate == "":
		return &ValidationError{Field: "productionDate"}
	case f.ExpiryDate == "":
		return &ValidationError{Field: "expiryDate"}
	case f.MedicalInfo == "":
		return &ValidationError{Field: "medicalInfo"}
	}
	return nil
}

type ProductRecord struct {
	Identifier uint64
	ProductFields
	Owner   string
	AddedAt time.Time
}

// IdentifierScheme selects which part of a confirmation becomes the public identifier.
type IdentifierScheme string

const (
	// IdentifierFromEvent uses the contract's sequential productId from ProductAdded.
	IdentifierFromEvent IdentifierScheme = "event"
	// IdentifierFromBlock uses the confirming block number. Registrations
	// confirmed in the same block collide.
	IdentifierFromBlock IdentifierScheme = "block"
)

type Confirmation struct {
	Identifier  uint64
	BlockNumber uint64
	ContractID  uint64
	TxHash      string
	Owner       string
}

// RegistrationEvent is a ProductAdded log observed on the ledger.
type RegistrationEvent struct {
	ContractID  uint64
	Name        string
	Owner       string
	BlockNumber uint64
	TxHash      string
}

// Identifier returns the identifier the event maps to under scheme.
func (e RegistrationEvent) Identifier(scheme IdentifierScheme) uint64 {
	if scheme == IdentifierFromBlock {
		return e.BlockNumber
	}
	return e.ContractID
}

// VerifiedRecord is what a verifier sees after a successful lookup.
type VerifiedRecord struct {
	Record    ProductRecord
	VerifyURL string
	Token     []byte
}

// Submission is a registration call accepted by the ledger but not yet confirmed.
type Submission struct {
	TxHash      string
	Account     string
	SubmittedAt time.Time
}
