// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindByOffsetOracle(t *testing.T) {
	// entries of sizes [3,4,2]
	h := New(10)
	h.Append(NewEntry([]byte("aaa")))  // size 3
	h.Append(NewEntry([]byte("bbbb"))) // size 4
	h.Append(NewEntry([]byte("cc")))   // size 2

	cases := []struct {
		offset       int64
		wantEntryIdx int // 0,1,2 within [aaa,bbbb,cc]
		wantByte     int
		wantOK       bool
	}{
		{0, 0, 0, true},
		{2, 0, 2, true},
		{3, 1, 0, true},
		{6, 1, 3, true},
		{7, 2, 0, true},
		{9, 0, 0, false},
	}

	entries := [][]byte{[]byte("aaa"), []byte("bbbb"), []byte("cc")}
	for _, c := range cases {
		e, b, ok := h.FindByOffset(c.offset)
		require.Equal(t, c.wantOK, ok, "offset %d", c.offset)
		if ok {
			assert.Equal(t, string(entries[c.wantEntryIdx]), string(e.Bytes()), "offset %d", c.offset)
			assert.Equal(t, c.wantByte, b, "offset %d", c.offset)
		}
	}
}

func TestAppendEvictsOldestWhenFull(t *testing.T) {
	h := New(10)
	for i := 0; i < 10; i++ {
		_, ok := h.Append(NewEntry([]byte{byte('0' + i)}))
		require.False(t, ok)
	}
	require.Equal(t, 10, h.Count())

	evicted, ok := h.Append(NewEntry([]byte("X")))
	require.True(t, ok)
	require.Equal(t, "0", string(evicted.Bytes()))
	require.Equal(t, 10, h.Count())

	// FIFO order retained: entries 1..9 then X
	e, _, ok := h.FindByOffset(0)
	require.True(t, ok)
	require.Equal(t, "1", string(e.Bytes()))
}

func TestFindByOffsetEmpty(t *testing.T) {
	h := New(4)
	_, _, ok := h.FindByOffset(0)
	require.False(t, ok)
}

func TestTotalSizeAndCount(t *testing.T) {
	h := New(3)
	require.Equal(t, int64(0), h.TotalSize())
	h.Append(NewEntry([]byte("ab")))
	h.Append(NewEntry([]byte("cde")))
	require.Equal(t, int64(5), h.TotalSize())
	require.Equal(t, 2, h.Count())
}

func TestFreeAllResetsToEmpty(t *testing.T) {
	h := New(2)
	h.Append(NewEntry([]byte("a")))
	h.Append(NewEntry([]byte("b")))
	h.FreeAll()
	require.Equal(t, 0, h.Count())
	require.Equal(t, int64(0), h.TotalSize())
	_, ok := h.Append(NewEntry([]byte("c")))
	require.False(t, ok)
	require.Equal(t, 1, h.Count())
}

func TestAppendPanicsOnEmptyEntry(t *testing.T) {
	h := New(2)
	assert.Panics(t, func() {
		h.Append(NewEntry(nil))
	})
}
