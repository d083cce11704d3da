/*
Copyright 2025 Dima Krasner

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

package ap

import (
	"net/url"
)

// Canonical returns an ID in canonical form. This engine only deals in
// plain https:// ActivityPub IDs, so canonicalization is the identity
// function; it exists so call sites that compare IDs don't need to
// special-case that.
func Canonical(id string) string {
	return id
}

// Origin returns the origin (host) of an ActivityPub ID.
func Origin(id string) (string, error) {
	u, err := url.Parse(id)
	if err != nil {
		return "", err
	}

	return u.Host, nil
}
