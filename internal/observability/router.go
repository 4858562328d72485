// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package observability

import (
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashgrove/historyd/internal/store"
)

// NewRouter builds the observability HTTP surface: /healthz, /metrics, and
// /snapshot, all gated by acl.
func NewRouter(acl *ACL, metrics *Metrics, st store.BackingStore, log *slog.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", handleSnapshot(st, log)).Methods(http.MethodGet)

	return acl.Middleware(r)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// handleSnapshot streams the entire backing store, gzip-compressed, as a
// point-in-time export. It makes no durability claim: it is a read of
// whatever the store holds at request time.
func handleSnapshot(st store.BackingStore, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)

		gz := gzip.NewWriter(w)
		defer gz.Close()

		total := st.TotalSize()
		n, err := st.Stream(0, total, gz)
		if err != nil {
			log.Error("snapshot export failed", "error", err)
			return
		}
		log.Debug("snapshot exported", "bytes", n, "human", humanize.Bytes(uint64(n)))
	}
}
