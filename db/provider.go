package db

// Provider abstracts the low-level key-value operations so the stores can
// work with different backends without knowing the implementation details.
type Provider interface {
	// Get retrieves a value by key, returning nil when the key is absent
	Get(key []byte) ([]byte, error)

	// Put stores a key-value pair
	Put(key, value []byte) error

	// Delete removes a key-value pair
	Delete(key []byte) error

	// Has checks if a key exists
	Has(key []byte) (bool, error)

	// Close closes the database
	Close() error

	// Batch returns a new batch for atomic operations
	Batch() Batch
}

// Batch accumulates writes that commit atomically
type Batch interface {
	// Put adds a key-value pair to the batch
	Put(key, value []byte)

	// Delete adds a deletion to the batch
	Delete(key []byte)

	// Write commits all operations in the batch
	Write() error

	// Reset clears the batch
	Reset()

	// Close releases batch resources
	Close() error
}
