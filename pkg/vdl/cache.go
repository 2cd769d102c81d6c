// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vdl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/united-manufacturing-hub/faces-core/pkg/metrics"
)

// DefaultRefreshPeriod is how long a compiled facelet is trusted before its
// file is checked for changes.
const DefaultRefreshPeriod = 2 * time.Second

type cacheEntry struct {
	facelet *Facelet
	modTime time.Time
	// checked is the unix nano time of the last stat.
	checked atomic.Int64
}

// FaceletCache compiles facelets from fsys and keeps them. A negative
// refresh never checks the file again; zero checks on every lookup.
type FaceletCache struct {
	fsys    fs.FS
	refresh time.Duration
	entries *gocache.Cache
	group   singleflight.Group
	log     *zap.SugaredLogger
}

func NewFaceletCache(fsys fs.FS, refresh time.Duration, log *zap.SugaredLogger) *FaceletCache {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &FaceletCache{
		fsys:    fsys,
		refresh: refresh,
		entries: gocache.New(gocache.NoExpiration, 0),
		log:     log,
	}
}

func fsName(viewID string) string {
	return strings.TrimPrefix(viewID, "/")
}

// Exists reports whether viewID names a file.
func (c *FaceletCache) Exists(viewID string) bool {
	if _, ok := c.entries.Get(viewID); ok {
		return true
	}

	info, err := fs.Stat(c.fsys, fsName(viewID))

	return err == nil && !info.IsDir()
}

// Facelet returns the compiled facelet at path. Concurrent lookups of the
// same path share one compilation.
func (c *FaceletCache) Facelet(ctx context.Context, path string) (*Facelet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if v, ok := c.entries.Get(path); ok {
		e := v.(*cacheEntry)
		if !c.stale(e) {
			return e.facelet, nil
		}
	}

	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		return c.load(path)
	})
	if err != nil {
		return nil, err
	}

	return v.(*Facelet), nil
}

func (c *FaceletCache) stale(e *cacheEntry) bool {
	if c.refresh < 0 {
		return false
	}

	now := time.Now()
	if now.Sub(time.Unix(0, e.checked.Load())) < c.refresh {
		return false
	}

	info, err := fs.Stat(c.fsys, fsName(e.facelet.Path))
	if err != nil {
		return true
	}

	if !info.ModTime().Equal(e.modTime) {
		return true
	}

	e.checked.Store(now.UnixNano())

	return false
}

func (c *FaceletCache) load(path string) (*Facelet, error) {
	name := fsName(path)

	info, err := fs.Stat(c.fsys, name)
	if err != nil {
		c.entries.Delete(path)

		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrViewNotFound, path)
		}

		return nil, err
	}

	file, err := c.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	f, err := Compile(file, path)
	metrics.IncFaceletCompile(err)

	if err != nil {
		c.log.Warnf("Compiling %s failed: %s", path, err)

		return nil, err
	}

	e := &cacheEntry{facelet: f, modTime: info.ModTime()}
	e.checked.Store(time.Now().UnixNano())
	c.entries.Set(path, e, gocache.NoExpiration)
	c.log.Debugf("Compiled %s", path)

	return f, nil
}

// Invalidate drops the compiled facelet at path.
func (c *FaceletCache) Invalidate(path string) {
	c.entries.Delete(path)
}

// Len returns the number of compiled facelets.
func (c *FaceletCache) Len() int {
	return c.entries.ItemCount()
}
