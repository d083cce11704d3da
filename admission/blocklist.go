/*
Copyright 2023, 2024 Dima Krasner

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package admission decides whether a remote host or client address may
// reach the federation engine: a CSV blocklist of domains, reloaded live
// as the file changes, plus matching against the caller's address and
// any X-Forwarded-For chain.
package admission

import (
	"encoding/csv"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// BlockList is a set of blocked domains and IP addresses, backed by a CSV
// file and kept in sync with it for as long as the process runs.
type BlockList struct {
	lock    sync.Mutex
	wg      sync.WaitGroup
	w       *fsnotify.Watcher
	domains map[string]struct{}
}

const blockListReloadDelay = time.Second * 5

// entries are either bare domains or IP addresses, one per CSV row,
// sharing a single set: lookups never need to know which kind an entry is.
// An entry is matched as a literal string, so a CIDR range matches no address.
func loadBlocklist(path string) (map[string]struct{}, error) {
	blocked := make(map[string]struct{})

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := csv.NewReader(f)
	first := true
	for {
		r, err := c.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if first {
			first = false
			continue
		}

		blocked[r[0]] = struct{}{}
	}

	return blocked, nil
}

// NewBlockList loads path and watches its directory for changes. onBlock,
// if non-nil, is invoked once per domain the very first time it appears
// in the list (initial load and every reload), so callers can cascade
// an admin block into removing what that host already federated in.
func NewBlockList(log *slog.Logger, path string, onBlock func(domain string)) (*BlockList, error) {
	domains, err := loadBlocklist(path)
	if err != nil {
		return nil, err
	}

	if onBlock != nil {
		for domain := range domains {
			onBlock(domain)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	absPath := filepath.Join(dir, filepath.Base(path))

	b := &BlockList{w: w, domains: domains}

	timer := time.NewTimer(math.MaxInt64)
	timer.Stop()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					timer.Stop()
					return
				}

				if (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) && event.Name == absPath {
					timer.Reset(blockListReloadDelay)
				}

			case <-timer.C:
				newDomains, err := loadBlocklist(path)
				if err != nil {
					log.Warn("Failed to reload blocklist", "path", path, "error", err)
					continue
				}

				// continue if the old list wasn't empty and the new one is empty; maybe the file was opened with O_TRUNC
				if len(b.domains) > 0 && len(newDomains) == 0 {
					log.Warn("New blocklist is empty")
					continue
				}

				b.lock.Lock()
				old := b.domains
				b.domains = newDomains
				b.lock.Unlock()
				log.Info("Reloaded blocklist", "path", path, "length", len(newDomains))

				if onBlock != nil {
					for domain := range newDomains {
						if _, already := old[domain]; !already {
							onBlock(domain)
						}
					}
				}
			}
		}
	}()

	return b, nil
}

// Contains determines if a domain or IP address is blocked. A blocked
// domain also blocks every subdomain of it, so blocking "example.com"
// is enough to keep out "social.example.com" too.
func (b *BlockList) Contains(entry string) bool {
	entry = strings.TrimSuffix(entry, ".")

	b.lock.Lock()
	defer b.lock.Unlock()

	for {
		if _, blocked := b.domains[entry]; blocked {
			return true
		}

		dot := strings.IndexByte(entry, '.')
		if dot == -1 {
			return false
		}
		entry = entry[dot+1:]
	}
}

// ContainsAny reports whether any of the given domains or addresses is
// blocked.
func (b *BlockList) ContainsAny(entries ...string) bool {
	for _, entry := range entries {
		if b.Contains(entry) {
			return true
		}
	}
	return false
}

// AllowRequest reports whether req's originating address is allowed
// in: the direct remote address plus every hop recorded in
// X-Forwarded-For, since a blocked relay shouldn't be able to reach the
// inbox merely by forwarding through an unblocked proxy.
func (b *BlockList) AllowRequest(req *http.Request) bool {
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		if b.Contains(host) {
			return false
		}
	} else if b.Contains(req.RemoteAddr) {
		return false
	}

	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		for _, hop := range strings.Split(fwd, ",") {
			if ip := strings.TrimSpace(hop); ip != "" && b.Contains(ip) {
				return false
			}
		}
	}

	return true
}

// Close frees resources.
func (b *BlockList) Close() {
	b.w.Close()
	b.wg.Wait()
}
