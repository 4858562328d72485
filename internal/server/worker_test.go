// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package server

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove/historyd/internal/history"
	"github.com/ashgrove/historyd/internal/logging"
	"github.com/ashgrove/historyd/internal/store"
)

// TestWorkerNoCommitWithoutNewline confirms that a connection closing
// before sending any '\n' terminates the worker without committing
// anything to the store.
func TestWorkerNoCommitWithoutNewline(t *testing.T) {
	st := store.NewHistoryStore(history.New(10), nil)
	defer st.Close()

	client, serverConn := net.Pipe()
	var lock sync.Mutex
	w := NewClientWorker("test-worker", serverConn, st, &lock, logging.New("error", "json"), nil)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	client.Write([]byte("no newline here"))
	client.Close()
	<-done

	require.Equal(t, int64(0), st.TotalSize())
	require.Equal(t, stateTerminated, w.State())
}
