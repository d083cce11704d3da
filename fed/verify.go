/*
Copyright 2023 - 2026 Dima Krasner

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

package fed

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/httpsig"
)

var keyIDAttrRegex = regexp.MustCompile(`\bkeyId="([^"]+)"`)

// peekSignatureHost extracts the host of the Signature header's keyId
// without doing any crypto or lookup, so a blocked domain can be
// rejected before the request does any real work. Returns an error if
// the header is absent or malformed; the full [httpsig.Extract] call
// later reports the precise reason.
func (l *Listener) peekSignatureHost(r *http.Request, body []byte) (string, error) {
	header := r.Header.Get("Signature")
	if header == "" {
		return "", errors.New("missing Signature header")
	}

	m := keyIDAttrRegex.FindStringSubmatch(header)
	if m == nil {
		return "", errors.New("missing keyId")
	}

	u, err := url.Parse(m[1])
	if err != nil {
		return "", fmt.Errorf("invalid keyId: %w", err)
	}

	return u.Host, nil
}

// verifyRequest extracts and verifies a request's HTTP Signature,
// resolving the signing actor through the retriever (cache hit, fresh
// fetch, or one of the retriever's sentinel errors for gone/uncached
// actors, which the inbox handler maps onto its own status codes).
func (l *Listener) verifyRequest(r *http.Request, body []byte, flags ap.ResolverFlag) (*httpsig.Signature, *ap.Actor, error) {
	sig, err := httpsig.Extract(r, body, l.Domain, l.Config.MaxRequestAge)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract signature: %w", err)
	}

	actor, err := l.Retriever.ResolveID(r.Context(), l.InstanceKey, sig.KeyID, flags)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve %s: %w", sig.KeyID, err)
	}

	publicKey, err := parsePublicKeyPEM(actor.PublicKey.PublicKeyPem)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse key %s: %w", actor.PublicKey.ID, err)
	}

	if err := sig.Verify(publicKey); err != nil {
		return nil, nil, fmt.Errorf("failed to verify message using %s: %w", sig.KeyID, err)
	}

	return sig, actor, nil
}

// parsePublicKeyPEM accepts either PKIX (the common OpenSSL 3 output) or
// bare PKCS1 RSA public keys, since peers disagree on which their
// publicKeyPem holds.
func parsePublicKeyPEM(s string) (any, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, errors.New("invalid PEM")
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		return key, nil
	}

	return x509.ParsePKCS1PublicKey(block.Bytes)
}
