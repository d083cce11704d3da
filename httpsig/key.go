/*
Copyright 2024 Dima Krasner

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

package httpsig

// Key is a local actor's signing key: the keyId URL that identifies it
// in an HTTP Signature header, paired with the private key that signs
// with it. PrivateKey holds a *rsa.PrivateKey; it's typed any so callers
// that only verify (never sign) don't need to import crypto/rsa.
type Key struct {
	ID         string
	PrivateKey any
}
