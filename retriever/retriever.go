/*
Copyright 2023 - 2025 Dima Krasner

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

// Package retriever implements on-demand, signed retrieval of remote
// actors and objects: WebFinger discovery, profile fetch, staleness
// policy and local caching, so the rest of the engine can ask for an ID
// and get back either a fresh fetch or a good-enough cache hit.
package retriever

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/fedcore/engine/admission"
	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/cfg"
	"github.com/fedcore/engine/data"
	"github.com/fedcore/engine/httpsig"
	"github.com/fedcore/engine/lock"
	"github.com/fedcore/engine/store"
	"github.com/fedcore/engine/transport"
)

type webFingerResponse struct {
	Subject string `json:"subject"`
	Links   []struct {
		Rel  string `json:"rel"`
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"links"`
}

// Retriever resolves actor objects given their ID. Actors are cached,
// refreshed periodically, and deleted if the remote server reports them
// gone.
type Retriever struct {
	Domain         string
	Config         *cfg.Config
	Sender         *transport.Sender
	BlockedDomains *admission.BlockList
	DB             *sql.DB
	locks          []lock.Lock
}

var (
	ErrActorGone      = errors.New("actor is gone")
	ErrNoLocalActor   = errors.New("no such local user")
	ErrActorNotCached = errors.New("actor is not cached")
	ErrBlockedDomain  = errors.New("domain is blocked")
	ErrInvalidID      = errors.New("invalid actor ID")
	ErrYoungActor     = errors.New("actor is too young")
)

// New returns a new [Retriever].
func New(blockedDomains *admission.BlockList, domain string, config *cfg.Config, sender *transport.Sender, db *sql.DB) *Retriever {
	r := Retriever{
		Domain:         domain,
		Config:         config,
		Sender:         sender,
		BlockedDomains: blockedDomains,
		DB:             db,
		locks:          make([]lock.Lock, config.MaxResolverRequests),
	}
	for i := range r.locks {
		r.locks[i] = lock.New()
	}

	return &r
}

// ResolveID retrieves an actor object by its ID.
func (r *Retriever) ResolveID(ctx context.Context, key httpsig.Key, id string, flags ap.ResolverFlag) (*ap.Actor, error) {
	u, err := url.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve %s: %w", id, err)
	}

	if u.Scheme != "https" {
		return nil, transport.ErrInvalidScheme
	}

	var name string
	if flags&ap.InstanceActor == 0 {
		name = path.Base(u.Path)
		if name != "" && name[0] == '@' {
			name = name[1:]
		}
	} else {
		// in Mastodon-style deployments, domain@domain resolves to the instance actor
		name = u.Host
	}

	return r.Resolve(ctx, key, u.Host, name, flags)
}

// Resolve retrieves an actor object by host and preferred username.
func (r *Retriever) Resolve(ctx context.Context, key httpsig.Key, host, name string, flags ap.ResolverFlag) (*ap.Actor, error) {
	actor, cachedActor, err := r.tryResolve(ctx, key, host, name, flags)
	if err != nil && cachedActor != nil && !cachedActor.Published.IsZero() && time.Since(cachedActor.Published.Time) < r.Config.MinActorAge {
		slog.Warn("Failed to update cached actor", "host", host, "name", name, "error", err)
		return nil, ErrYoungActor
	} else if err != nil && cachedActor != nil {
		slog.Warn("Using old cache entry for actor", "host", host, "name", name, "error", err)
		return cachedActor, nil
	} else if actor == nil {
		return cachedActor, err
	} else if !actor.Published.IsZero() && time.Since(actor.Published.Time) < r.Config.MinActorAge {
		return nil, ErrYoungActor
	}

	return actor, err
}

// Get fetches an arbitrary ActivityPub document, signed as the given
// local actor, without any actor caching semantics.
func (r *Retriever) Get(ctx context.Context, key httpsig.Key, url string) (*http.Response, error) {
	return r.Sender.Get(ctx, key, url)
}

func (r *Retriever) tryResolve(ctx context.Context, key httpsig.Key, host, name string, flags ap.ResolverFlag) (*ap.Actor, *ap.Actor, error) {
	slog.Debug("Resolving actor", "host", host, "name", name)

	if r.BlockedDomains != nil && r.BlockedDomains.Contains(host) {
		return nil, nil, ErrBlockedDomain
	}

	if name == "" {
		return nil, nil, fmt.Errorf("cannot resolve %s%s: empty name", name, host)
	}

	isLocal := host == r.Domain

	if !isLocal && flags&ap.Offline == 0 {
		l := r.locks[crc32.ChecksumIEEE([]byte(host+name))%uint32(len(r.locks))]
		if err := l.Lock(ctx); err != nil {
			return nil, nil, err
		}
		defer l.Unlock()
	}

	cachedActor, updated, err := r.lookupCache(ctx, host, name)
	if err != nil {
		return nil, nil, err
	}

	var sinceLastUpdate time.Duration
	if cachedActor != nil {
		sinceLastUpdate = time.Since(time.Unix(updated, 0))
		if isLocal || flags&ap.Offline != 0 || sinceLastUpdate < r.Config.ResolverCacheTTL {
			slog.Debug("Resolved actor using cache", "id", cachedActor.ID)
			return nil, cachedActor, nil
		}
	}

	if isLocal {
		return nil, nil, fmt.Errorf("cannot resolve %s@%s: %w", name, host, ErrNoLocalActor)
	}

	if flags&ap.Offline != 0 {
		return nil, nil, fmt.Errorf("cannot resolve %s@%s: %w", name, host, ErrActorNotCached)
	}

	finger := fmt.Sprintf("https://%s/.well-known/webfinger?resource=acct:%s@%s", host, name, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finger, nil)
	if err != nil {
		return nil, cachedActor, fmt.Errorf("failed to fetch %s: %w", finger, err)
	}

	resp, err := r.Sender.Send(key, req)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound) {
			if cachedActor != nil {
				slog.Warn("Actor is gone, revoking cache entry", "id", cachedActor.ID)
				if revokeErr := store.RevokeActor(ctx, r.DB, cachedActor.ID); revokeErr != nil {
					slog.Warn("Failed to revoke actor", "id", cachedActor.ID, "error", revokeErr)
				}
			}
			return nil, nil, fmt.Errorf("failed to fetch %s: %w", finger, ErrActorGone)
		}

		var (
			urlError *url.Error
			opError  *net.OpError
			dnsError *net.DNSError
		)
		if sinceLastUpdate > r.Config.MaxInstanceRecoveryTime && errors.As(err, &urlError) && errors.As(urlError.Err, &opError) && errors.As(opError.Err, &dnsError) && dnsError.IsNotFound {
			if cachedActor != nil {
				slog.Warn("Server is probably gone, revoking cache entry", "id", cachedActor.ID)
				if revokeErr := store.RevokeActor(ctx, r.DB, cachedActor.ID); revokeErr != nil {
					slog.Warn("Failed to revoke actor", "id", cachedActor.ID, "error", revokeErr)
				}
			}
			return nil, nil, fmt.Errorf("failed to fetch %s: %w", finger, err)
		}

		return nil, cachedActor, fmt.Errorf("failed to fetch %s: %w", finger, err)
	}
	defer resp.Body.Close()

	profile, err := parseWebFingerResponse(resp, r.Config.MaxResponseBodySize, finger)
	if err != nil {
		return nil, cachedActor, err
	}

	if cachedActor != nil && profile != cachedActor.ID {
		return nil, cachedActor, fmt.Errorf("%s does not match %s", profile, cachedActor.ID)
	}

	return r.fetchAndCacheActor(ctx, key, host, profile, cachedActor)
}

func (r *Retriever) lookupCache(ctx context.Context, host, name string) (*ap.Actor, int64, error) {
	actor, err := store.GetActorByHostAndName(ctx, r.DB, host, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, 0, nil
	} else if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch %s%s cache: %w", name, host, err)
	}

	updated, err := store.LastUpdated(ctx, r.DB, actor.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch %s%s cache: %w", name, host, err)
	}

	if actor.Published.IsZero() {
		actor.Published = ap.Time{Time: time.Unix(updated, 0)}
	}

	return actor, updated, nil
}

func parseWebFingerResponse(resp *http.Response, maxBody int64, finger string) (string, error) {
	if resp.ContentLength > maxBody {
		return "", fmt.Errorf("failed to decode %s response: response is too big", finger)
	}

	var wf webFingerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&wf); err != nil {
		return "", fmt.Errorf("failed to decode %s response: %w", finger, err)
	}

	for _, link := range wf.Links {
		if link.Rel != "self" {
			continue
		}
		if link.Type != "application/activity+json" && link.Type != `application/ld+json; profile="https://www.w3.org/ns/activitystreams"` {
			continue
		}
		if link.Href != "" {
			return link.Href, nil
		}
	}

	return "", fmt.Errorf("no profile link in %s response", finger)
}

func (r *Retriever) fetchAndCacheActor(ctx context.Context, key httpsig.Key, host, profile string, cachedActor *ap.Actor) (*ap.Actor, *ap.Actor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profile, nil)
	if err != nil {
		return nil, cachedActor, fmt.Errorf("failed to send request to %s: %w", profile, err)
	}

	if req.URL.Host != host && !strings.HasSuffix(req.URL.Host, "."+host) {
		return nil, nil, fmt.Errorf("actor link host is %s: %w", req.URL.Host, transport.ErrInvalidHost)
	}

	if !data.IsIDValid(profile) {
		return nil, nil, fmt.Errorf("cannot resolve %s: %w", profile, ErrInvalidID)
	}

	req.Header.Add("Accept", "application/activity+json")

	resp, err := r.Sender.Send(key, req)
	if err != nil {
		return nil, cachedActor, fmt.Errorf("failed to fetch %s: %w", profile, err)
	}
	defer resp.Body.Close()

	if resp.ContentLength > r.Config.MaxResponseBodySize {
		return nil, cachedActor, fmt.Errorf("failed to fetch %s: response is too big", profile)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.Config.MaxResponseBodySize))
	if err != nil {
		return nil, cachedActor, fmt.Errorf("failed to fetch %s: %w", profile, err)
	}

	var actor ap.Actor
	if err := json.Unmarshal(body, &actor); err != nil {
		return nil, cachedActor, fmt.Errorf("failed to unmarshal %s: %w", profile, err)
	}

	if actor.ID != profile {
		return nil, cachedActor, fmt.Errorf("%s does not match %s", actor.ID, profile)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, cachedActor, fmt.Errorf("failed to cache %s: %w", actor.ID, err)
	}
	defer tx.Rollback()

	if err := store.UpsertActor(ctx, tx, host, actorName(&actor), &actor, false); err != nil {
		return nil, cachedActor, fmt.Errorf("failed to cache %s: %w", actor.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, cachedActor, fmt.Errorf("failed to cache %s: %w", actor.ID, err)
	}

	if actor.Published.IsZero() && cachedActor != nil && !cachedActor.Published.IsZero() {
		actor.Published = cachedActor.Published
	} else if actor.Published.IsZero() {
		actor.Published = ap.Time{Time: time.Now()}
	}

	return &actor, cachedActor, nil
}

func actorName(actor *ap.Actor) string {
	if actor.PreferredUsername != "" {
		return actor.PreferredUsername
	}
	return path.Base(actor.ID)
}
