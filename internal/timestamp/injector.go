// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package timestamp implements an optional periodic writer that appends a
// timestamp line to a backing store on a cron schedule. It is disabled by
// default: the core service has no notion of a clock.
package timestamp

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ashgrove/historyd/internal/store"
)

// layout matches the original writer's "%a %b %d %T %Y" strftime format.
const layout = "Mon Jan 02 15:04:05 2006"

// Injector periodically appends a timestamp packet to a store.
type Injector struct {
	store store.BackingStore
	log   *slog.Logger
	lock  *sync.Mutex

	cron *cron.Cron
}

// New builds an Injector. lock must be the same lock the server's workers
// use to guard commits to st, so an injected timestamp never interleaves
// with a client's commit-then-streamback.
func New(st store.BackingStore, lock *sync.Mutex, log *slog.Logger) *Injector {
	return &Injector{
		store: st,
		log:   log,
		lock:  lock,
		cron:  cron.New(),
	}
}

// Start schedules the injector on spec (standard 5-field cron syntax, plus
// "@every <duration>") and begins running it in the background.
func (inj *Injector) Start(spec string) error {
	_, err := inj.cron.AddFunc(spec, inj.writeOnce)
	if err != nil {
		return fmt.Errorf("scheduling timestamp injector: %w", err)
	}
	inj.cron.Start()
	return nil
}

// Stop halts the schedule and waits for any in-flight run to finish.
func (inj *Injector) Stop() {
	<-inj.cron.Stop().Done()
}

func (inj *Injector) writeOnce() {
	line := fmt.Sprintf("timestamp:%s\n", time.Now().Format(layout))

	inj.lock.Lock()
	_, err := inj.store.Append([]byte(line))
	inj.lock.Unlock()

	if err != nil {
		inj.log.Error("writing timestamp", "error", err)
	}
}
