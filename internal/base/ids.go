package base

// ChainID identifies a microchain.
type ChainID CryptoHash

// ApplicationID identifies an application without any interface information.
type ApplicationID CryptoHash

// DataBlobHash identifies a data blob by the hash of its content.
type DataBlobHash CryptoHash

// BlobHashOf returns the DataBlobHash of content.
func BlobHashOf(content []byte) DataBlobHash {
	return DataBlobHash(HashWithDomain("DataBlob", content))
}

// ParseChainID parses the hex form of a chain id.
func ParseChainID(s string) (ChainID, error) {
	h, err := ParseCryptoHash(s)
	return ChainID(h), err
}

// ParseApplicationID parses the hex form of an application id.
func ParseApplicationID(s string) (ApplicationID, error) {
	h, err := ParseCryptoHash(s)
	return ApplicationID(h), err
}

// ParseDataBlobHash parses the hex form of a data blob hash.
func ParseDataBlobHash(s string) (DataBlobHash, error) {
	h, err := ParseCryptoHash(s)
	return DataBlobHash(h), err
}

// String returns the hex form.
func (id ChainID) String() string {
	return CryptoHash(id).String()
}

// MarshalText implements encoding.TextMarshaler.
func (id ChainID) MarshalText() ([]byte, error) {
	return CryptoHash(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ChainID) UnmarshalText(text []byte) error {
	return (*CryptoHash)(id).UnmarshalText(text)
}

// String returns the hex form.
func (id ApplicationID) String() string {
	return CryptoHash(id).String()
}

// MarshalText implements encoding.TextMarshaler.
func (id ApplicationID) MarshalText() ([]byte, error) {
	return CryptoHash(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ApplicationID) UnmarshalText(text []byte) error {
	return (*CryptoHash)(id).UnmarshalText(text)
}

// String returns the hex form.
func (h DataBlobHash) String() string {
	return CryptoHash(h).String()
}

// MarshalText implements encoding.TextMarshaler.
func (h DataBlobHash) MarshalText() ([]byte, error) {
	return CryptoHash(h).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *DataBlobHash) UnmarshalText(text []byte) error {
	return (*CryptoHash)(h).UnmarshalText(text)
}
