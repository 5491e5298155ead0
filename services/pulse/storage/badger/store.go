// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianPulse/services/pulse/sla"
	"github.com/AleutianAI/AleutianPulse/services/pulse/slo"
)

// keyPrefix namespaces SLA definitions within the keyspace.
const keyPrefix = "sla/"

// Store is a BadgerDB-backed SLA definition store. Definitions are stored
// JSON-encoded under "sla/<name>".
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	gcStop chan struct{}
	gcDone chan struct{}
}

var _ sla.DefinitionStore = (*Store)(nil)

// Open opens (creating if needed) a definition store.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "sla_store"))

	db, err := open(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.gcLoop(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
		s.gcStop = nil
	}
	return s.db.Close()
}

// Upsert writes a definition, replacing any existing one with the same
// name.
func (s *Store) Upsert(ctx context.Context, def slo.SLA) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode sla %q: %w", def.Name, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+def.Name), raw)
	})
	if err != nil {
		return fmt.Errorf("store sla %q: %w", def.Name, err)
	}
	return nil
}

// Get loads a definition by name.
func (s *Store) Get(ctx context.Context, name string) (slo.SLA, error) {
	if err := ctx.Err(); err != nil {
		return slo.SLA{}, err
	}
	var def slo.SLA
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			return json.Unmarshal(raw, &def)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return slo.SLA{}, fmt.Errorf("%w: %s", sla.ErrSLANotFound, name)
	}
	if err != nil {
		return slo.SLA{}, fmt.Errorf("load sla %q: %w", name, err)
	}
	return def, nil
}

// List returns every stored definition, ordered by name.
func (s *Store) List(ctx context.Context) ([]slo.SLA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var defs []slo.SLA
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var def slo.SLA
			err := it.Item().Value(func(raw []byte) error {
				return json.Unmarshal(raw, &def)
			})
			if err != nil {
				return fmt.Errorf("decode key %q: %w", it.Item().Key(), err)
			}
			defs = append(defs, def)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list slas: %w", err)
	}
	return defs, nil
}

// Delete removes a definition. Deleting an absent name is a no-op.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + name))
	})
	if err != nil {
		return fmt.Errorf("delete sla %q: %w", name, err)
	}
	return nil
}

// gcLoop periodically rewrites the value log.
func (s *Store) gcLoop(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			switch {
			case err == nil:
				s.logger.Debug("badger value log GC completed")
			case errors.Is(err, badger.ErrNoRewrite):
				// Nothing to collect.
			default:
				s.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}
