// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultMaxBytes caps remote artifact size when the Fetcher does not
// set its own limit.
const DefaultMaxBytes = 256 << 20

// Fetched is the result of resolving a locator.
type Fetched struct {
	// Data is the artifact's bytes.
	Data []byte

	// Digest addresses Data in the cache.
	Digest Digest

	// FromCache is true when no source I/O happened: the locator was a
	// digest reference or a URL already cached.
	FromCache bool
}

// Fetcher resolves locators to artifact bytes. File and HTTPS fetches
// land in the cache on success, so later loads of the same content
// need no source access. All failures surface as *FetchError.
type Fetcher struct {
	Cache *Cache

	// Client performs HTTPS fetches. Nil means a default client with
	// a 60 second timeout.
	Client *http.Client

	// MaxBytes caps remote artifact size. Zero means DefaultMaxBytes.
	MaxBytes int64
}

// Fetch resolves a locator. Cancellation of ctx aborts a remote fetch
// in flight.
func (f *Fetcher) Fetch(ctx context.Context, locator Locator) (*Fetched, error) {
	switch locator.Scheme {
	case SchemeCache:
		data, err := f.Cache.Get(locator.Digest)
		if err != nil {
			return nil, &FetchError{Locator: locator.String(), Err: err}
		}
		return &Fetched{Data: data, Digest: locator.Digest, FromCache: true}, nil

	case SchemeFile:
		data, err := os.ReadFile(locator.Path)
		if err != nil {
			return nil, &FetchError{Locator: locator.String(), Err: err}
		}
		digest, err := f.Cache.Put(data)
		if err != nil {
			return nil, &FetchError{Locator: locator.String(), Err: err}
		}
		return &Fetched{Data: data, Digest: digest}, nil

	case SchemeHTTPS:
		data, err := f.fetchRemote(ctx, locator.URL)
		if err != nil {
			return nil, &FetchError{Locator: locator.String(), Err: err}
		}
		digest, err := f.Cache.Put(data)
		if err != nil {
			return nil, &FetchError{Locator: locator.String(), Err: err}
		}
		return &Fetched{Data: data, Digest: digest}, nil

	default:
		return nil, &FetchError{Locator: locator.String(), Err: fmt.Errorf("unsupported locator scheme %s", locator.Scheme)}
	}
}

func (f *Fetcher) fetchRemote(ctx context.Context, rawURL string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", response.Status)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("artifact exceeds %d byte limit", limit)
	}
	return data, nil
}
