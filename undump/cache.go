// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package undump

import (
	"github.com/cespare/xxhash/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"golang.org/x/sync/singleflight"

	"github.com/lumalang/luma/lang/vm"
)

// Cache is an optional persistent store of compiled chunks keyed by a hash
// of their source text, letting cmd/luma (when lumaconfig's
// BytecodeCacheDir is set) skip recompilation across runs the way a build
// tool's on-disk object cache does.
type Cache struct {
	db    *leveldb.DB
	group singleflight.Group
}

// OpenCache opens (creating if absent) a LevelDB-backed cache rooted at
// dir.
func OpenCache(dir string) (*Cache, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

func cacheKey(source []byte) []byte {
	h := xxhash.Sum64(source)
	key := make([]byte, 8)
	for i := 0; i < 8; i++ {
		key[i] = byte(h >> (8 * i))
	}
	return key
}

// Get returns the cached Proto for source if present, decoding it with
// Load (which interns its string constants in g).
func (c *Cache) Get(g *vm.Global, source []byte) (*vm.Proto, bool) {
	data, err := c.db.Get(cacheKey(source), nil)
	if err != nil {
		return nil, false
	}
	p, err := Load(g, data)
	if err != nil {
		return nil, false
	}
	return p, true
}

// Put stores a compiled Proto's dump under source's key.
func (c *Cache) Put(source []byte, p *vm.Proto) error {
	return c.db.Put(cacheKey(source), Dump(p), nil)
}

// GetOrCompile returns the cached Proto for source if present, otherwise
// calls compile exactly once even under concurrent callers racing on the
// same source (singleflight-guarded, per SPEC_FULL §4's wiring of
// golang.org/x/sync into undump's cache loader) and stores the result.
func (c *Cache) GetOrCompile(g *vm.Global, source []byte, compile func() (*vm.Proto, error)) (*vm.Proto, error) {
	if p, ok := c.Get(g, source); ok {
		return p, nil
	}
	key := string(cacheKey(source))
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		p, err := compile()
		if err != nil {
			return nil, err
		}
		if putErr := c.Put(source, p); putErr != nil {
			return nil, putErr
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*vm.Proto), nil
}
