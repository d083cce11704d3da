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

// Package identity creates and loads local actors: RSA keypair
// generation, the well-known actor document shape, and turning a stored
// PEM private key back into a signing [httpsig.Key].
package identity

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/httpsig"
	"github.com/fedcore/engine/store"
)

func generateRSAKey() (*rsa.PrivateKey, string, string, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to generate key: %w", err)
	}

	var privPem bytes.Buffer
	if err := pem.Encode(&privPem, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}); err != nil {
		return nil, "", "", fmt.Errorf("failed to encode private key: %w", err)
	}

	var pubPem bytes.Buffer
	if err := pem.Encode(&pubPem, &pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&priv.PublicKey)}); err != nil {
		return nil, "", "", fmt.Errorf("failed to encode public key: %w", err)
	}

	return priv, privPem.String(), pubPem.String(), nil
}

// Create generates a new local actor of the given kind and persists it
// together with its private key.
func Create(ctx context.Context, domain string, db *sql.DB, name string, kind ap.ActorType) (*ap.Actor, httpsig.Key, error) {
	priv, privPem, pubPem, err := generateRSAKey()
	if err != nil {
		return nil, httpsig.Key{}, err
	}

	id := fmt.Sprintf("https://%s/user/%s", domain, name)
	actor := ap.Actor{
		Context:           []string{"https://www.w3.org/ns/activitystreams", "https://w3id.org/security/v1"},
		ID:                id,
		Type:              kind,
		PreferredUsername: name,
		Inbox:             fmt.Sprintf("https://%s/user/%s/inbox", domain, name),
		Outbox:            fmt.Sprintf("https://%s/user/%s/outbox", domain, name),
		Followers:         fmt.Sprintf("https://%s/user/%s/followers", domain, name),
		Following:         fmt.Sprintf("https://%s/user/%s/following", domain, name),
		Endpoints: map[string]string{
			"sharedInbox": fmt.Sprintf("https://%s/inbox", domain),
		},
		PublicKey: ap.PublicKey{
			ID:           id + "#main-key",
			Owner:        id,
			PublicKeyPem: pubPem,
		},
		Published: ap.Time{Time: time.Now()},
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, httpsig.Key{}, err
	}
	defer tx.Rollback()

	if err := store.UpsertActor(ctx, tx, domain, name, &actor, true); err != nil {
		return nil, httpsig.Key{}, fmt.Errorf("failed to create %s: %w", id, err)
	}

	if err := store.SetPrivateKey(ctx, tx, id, privPem); err != nil {
		return nil, httpsig.Key{}, fmt.Errorf("failed to create %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, httpsig.Key{}, fmt.Errorf("failed to create %s: %w", id, err)
	}

	return &actor, httpsig.Key{ID: actor.PublicKey.ID, PrivateKey: priv}, nil
}

// Load returns the signing key of an existing local actor.
func Load(ctx context.Context, db *sql.DB, actorID string) (httpsig.Key, error) {
	pemStr, err := store.GetPrivateKey(ctx, db, actorID)
	if err != nil {
		return httpsig.Key{}, fmt.Errorf("failed to load key for %s: %w", actorID, err)
	}

	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return httpsig.Key{}, fmt.Errorf("invalid private key PEM for %s", actorID)
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return httpsig.Key{}, fmt.Errorf("failed to parse private key for %s: %w", actorID, err)
	}

	return httpsig.Key{ID: actorID + "#main-key", PrivateKey: priv}, nil
}
