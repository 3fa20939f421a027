// Package batch splits an ordered list into fixed-size chunks.
package batch

import "fmt"

// DefaultSize is the number of transfers per contract call.
const DefaultSize = 100

// Partition returns ceil(len(items)/size) non-empty chunks in input order.
// Each chunk is capped so that appending to it never overwrites its successor.
func Partition[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}
	if len(items) == 0 {
		return nil, nil
	}
	chunks := make([][]T, 0, Count(len(items), size))
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}
	return chunks, nil
}

// Count returns the number of chunks Partition would produce.
func Count(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
