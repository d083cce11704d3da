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

// Package transport sends signed, size-bounded HTTP requests to remote
// instances: the single chokepoint every outbound fetch and delivery
// goes through, the way the teacher's unexported sender type backs both
// its resolver and its delivery queue.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fedcore/engine/cfg"
	"github.com/fedcore/engine/httpsig"
)

// Client is satisfied by [*http.Client]; a narrow interface keeps tests
// free to substitute a fake transport.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

var UserAgent = "fedcored/1.0"

// Sender signs and sends requests to other instances, enforcing the
// size and scheme guards a federation engine needs against a hostile or
// misconfigured peer.
type Sender struct {
	Domain string
	Config *cfg.Config
	Client Client
}

var (
	ErrInvalidScheme = errors.New("invalid scheme")
	ErrInvalidHost   = errors.New("invalid host")
)

// Send signs req with key and delivers it, rejecting loopback targets
// and non-https schemes before it ever reaches the network.
func (s *Sender) Send(key httpsig.Key, req *http.Request) (*http.Response, error) {
	urlString := req.URL.String()

	if req.URL.Scheme != "https" {
		return nil, fmt.Errorf("invalid scheme in %s: %w", urlString, ErrInvalidScheme)
	}

	switch req.URL.Hostname() {
	case "localhost", "localhost.localdomain", "127.0.0.1", "::1":
		return nil, fmt.Errorf("invalid host in %s: %w", urlString, ErrInvalidHost)
	}

	req.Header.Set("User-Agent", UserAgent)
	if req.Method == http.MethodPost && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`)
	}

	slog.Debug("Sending request", "url", urlString, "method", req.Method)

	if err := httpsig.Sign(req, key, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to sign request for %s: %w", urlString, err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", urlString, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusCreated {
		defer resp.Body.Close()

		if resp.ContentLength > s.Config.MaxResponseBodySize {
			return resp, fmt.Errorf("failed to send request to %s: %d", urlString, resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, s.Config.MaxResponseBodySize))
		if err != nil {
			return resp, fmt.Errorf("failed to send request to %s: %d, %w", urlString, resp.StatusCode, err)
		}
		return resp, fmt.Errorf("failed to send request to %s: %d, %s", urlString, resp.StatusCode, string(body))
	}

	return resp, nil
}

// Get fetches an ActivityPub document from url, signing the request as
// the given local actor key.
func (s *Sender) Get(ctx context.Context, key httpsig.Key, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", url, err)
	}

	req.Header.Set("Accept", `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`)

	return s.Send(key, req)
}

// Post delivers an ActivityPub payload to an inbox URL.
func (s *Sender) Post(ctx context.Context, key httpsig.Key, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	return s.Send(key, req)
}
