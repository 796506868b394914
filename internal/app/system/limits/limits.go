// internal/app/system/limits/limits.go
package limits

// Request body size caps. Oversized requests are rejected before
// decoding to keep a single client from exhausting memory.
const (
	// MaxJSONBody caps JSON request bodies. Admin payloads are small;
	// the largest legitimate bodies are bulk operations, which carry
	// id lists, not documents.
	MaxJSONBody = 1 << 20 // 1 MB
)
