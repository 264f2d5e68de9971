// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chainstore keeps a library of named filter chains in BadgerDB.
//
// Each chain is stored as a JSON Record under "chain:<name>". Records carry
// the chain's descriptors, its expression form and its BLAKE3 hash, so a
// stored chain can be compared against a session's active chain without
// rebuilding it.
package chainstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/instgraph/services/instgraph/filter"
	storage "github.com/AleutianAI/instgraph/services/instgraph/storage/badger"
)

const keyPrefix = "chain:"

var (
	// ErrChainNotFound is returned when no chain has the requested name.
	ErrChainNotFound = errors.New("filter chain not found")

	// ErrInvalidName is returned for names outside [A-Za-z0-9._-]{1,128}.
	ErrInvalidName = errors.New("invalid chain name")

	// ErrCorruptRecord is returned when a stored record cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt chain record")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Record is a stored filter chain.
type Record struct {
	Name       string              `json:"name"`
	Hash       string              `json:"hash"`
	Expression string              `json:"expression"`
	SavedAt    time.Time           `json:"saved_at"`
	Filters    []filter.Descriptor `json:"filters"`
}

// Chain rebuilds the filter chain.
func (r Record) Chain() (filter.Chain, error) {
	return filter.FromDescriptors(r.Filters)
}

// Store is a named chain library.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db  *storage.DB
	now func() time.Time
}

// New wraps an open database. The caller keeps ownership of db.
func New(db *storage.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func key(name string) []byte {
	return []byte(keyPrefix + name)
}

func checkName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Save stores chain under name, replacing any previous chain of that name.
func (s *Store) Save(ctx context.Context, name string, chain filter.Chain) (Record, error) {
	if err := checkName(name); err != nil {
		return Record{}, err
	}
	rec := Record{
		Name:       name,
		Hash:       chain.Hash(),
		Expression: filter.Format(chain),
		SavedAt:    s.now().UTC(),
		Filters:    chain.Descriptors(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("encode chain %s: %w", name, err)
	}

	err = s.db.Update(ctx, func(txn *badger.Txn) error {
		return txn.Set(key(name), data)
	})
	if err != nil {
		return Record{}, fmt.Errorf("save chain %s: %w", name, err)
	}

	slog.Debug("Saved filter chain",
		slog.String("name", name),
		slog.String("hash", rec.Hash),
		slog.Int("filters", len(rec.Filters)),
	)
	return rec, nil
}

// Load returns the record stored under name.
func (s *Store) Load(ctx context.Context, name string) (Record, error) {
	if err := checkName(name); err != nil {
		return Record{}, err
	}
	var rec Record
	err := s.db.View(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrChainNotFound, name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return decode(val, &rec)
		})
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns every stored record sorted by name.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := s.db.View(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return decode(val, &rec)
			}); err != nil {
				return fmt.Errorf("%s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// Delete removes the chain stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return s.db.Update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(key(name)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrChainNotFound, name)
		} else if err != nil {
			return err
		}
		return txn.Delete(key(name))
	})
}

func decode(val []byte, rec *Record) error {
	if err := json.Unmarshal(val, rec); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return nil
}
