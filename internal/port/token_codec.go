package port

type TokenCodec interface {
	// Payload builds the verification URL carried by a token
	Payload(baseURL string, identifier uint64) (string, error)

	// Encode renders the payload as a scannable image
	Encode(baseURL string, identifier uint64) ([]byte, error)

	// ParseIdentifier extracts the identifier from a scanned verification URL
	ParseIdentifier(rawURL string) (uint64, error)
}
