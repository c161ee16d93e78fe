// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for sample-to-byte encoders
package encode

// Encoder turns int32 samples in the 24-bit range into device or wire bytes
type Encoder interface {
	Encode(samples []int32) ([]byte, error)
	Close() error
}
