package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	mib := int64(1024 * 1024)
	tests := []struct {
		name      string
		offset    int64
		total     int64
		wantN     int
		chunkSize int64
	}{
		{"small file single chunk", 0, 512 * 1024, 1, mib},
		{"exact chunk boundary", 0, 2 * mib, 2, mib},
		{"boundary plus one", 0, 2*mib + 1, 3, mib},
		{"large file uses big chunks", 0, 150 * mib, 30, 5 * mib},
		{"resume offset shrinks plan", 100 * 1024, 3 * mib, 3, mib},
		{"nothing left", 5 * mib, 5 * mib, 0, mib},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chunks := partition(tc.offset, tc.total)
			require.Len(t, chunks, tc.wantN)
			if tc.wantN == 0 {
				return
			}
			assert.Equal(t, tc.offset, chunks[0].start)
			assert.Equal(t, tc.total-1, chunks[len(chunks)-1].end)
			var covered int64
			prevEnd := tc.offset - 1
			for _, c := range chunks {
				assert.Equal(t, prevEnd+1, c.start)
				assert.LessOrEqual(t, c.end-c.start+1, tc.chunkSize)
				covered += c.end - c.start + 1
				prevEnd = c.end
			}
			assert.Equal(t, tc.total-tc.offset, covered)
		})
	}
}

func TestChunkSizeFor(t *testing.T) {
	mib := int64(1024 * 1024)
	assert.Equal(t, mib, chunkSizeFor(50*mib))
	assert.Equal(t, mib, chunkSizeFor(100*mib))
	assert.Equal(t, 5*mib, chunkSizeFor(100*mib+1))
}
