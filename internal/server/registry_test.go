// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashgrove/historyd/internal/history"
	"github.com/ashgrove/historyd/internal/logging"
	"github.com/ashgrove/historyd/internal/store"
)

func TestRegistryTracksAndReapsWorkers(t *testing.T) {
	st := store.NewHistoryStore(history.New(10), nil)
	defer st.Close()

	reg := NewRegistry()
	var lock sync.Mutex

	client, serverConn := net.Pipe()
	w := NewClientWorker("w1", serverConn, st, &lock, logging.New("error", "json"), nil)

	reg.Spawn(context.Background(), w)
	require.Equal(t, 1, reg.Count())

	client.Write([]byte("hi\n"))
	buf := make([]byte, 64)
	client.Read(buf)
	client.Close()

	require.Eventually(t, func() bool { return reg.Count() == 0 }, time.Second, 5*time.Millisecond)
}
