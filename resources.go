/*
	fgblock - a blocklist aggregation tool by ScraperWall
	Copyright (C) 2021 ScraperWall, Tobias von Dewitz <tobias@scraperwall.com>

	This program is free software: you can redistribute it and/or modify it
	under the terms of the GNU Affero General Public License as published by
	the Free Software Foundation, either version 3 of the License, or (at your
	option) any later version.

	This program is distributed in the hope that it will be useful, but WITHOUT
	ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
	FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License
	for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program. If not, see <https://www.gnu.org/licenses/>.
*/

package fgblock

import (
	"context"

	"github.com/scraperwall/fgblock/config"
	"github.com/scraperwall/fgblock/registry"
	"github.com/scraperwall/fgblock/store"
	log "github.com/sirupsen/logrus"
)

// Resources holds the optional collaborators of the pipeline. Every field may be nil
// unless it is required by the configuration.
type Resources struct {
	Store     store.KVStore
	Lookuper  registry.Lookuper
	Allowlist *Allowlist
	Notifier  Notifier

	closers []func() error
}

// NewResources opens everything the configuration asks for
func NewResources(ctx context.Context, config *config.Config) (*Resources, error) {
	var err error
	r := &Resources{}

	// Badger
	//
	if config.BadgerPath != "" {
		bdb, err := NewBadgerDB(ctx, config.BadgerPath)
		if err != nil {
			return nil, err
		}
		r.Store = bdb
		r.closers = append(r.closers, bdb.Close)
		log.Infof("caching registry data in %s", config.BadgerPath)
	}

	// Registry
	//
	lookuper, closeLookuper, err := registry.New(config.Registry, r.Store)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.Lookuper = lookuper
	r.closers = append(r.closers, closeLookuper)

	// Allowlist
	//
	r.Allowlist, err = NewAllowlist(config.AllowlistTOML)
	if err != nil {
		r.Close()
		return nil, err
	}
	if err := r.Allowlist.Watch(ctx); err != nil {
		log.Warnf("allowlist changes won't be picked up: %s", err)
	}

	// NATS
	//
	if config.NatsURL != "" {
		nn, err := NewNatsNotifier(config.NatsURL, config.NatsSubject)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Notifier = nn
		r.closers = append(r.closers, nn.Close)
	}

	return r, nil
}

// Close releases all resources in reverse order
func (r *Resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Warnf("failed to close a resource: %s", err)
		}
	}
	r.closers = nil
}
