package services

import (
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	// ProxyPath serves GET /image-proxy?url=&sourceId=
	ProxyPath = "/image-proxy"
	// CachePath prefixes stored copies, GET /image-cache/{key}
	CachePath = "/image-cache/"

	sharedPrefix = "shared"
)

var sourceIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Proxy builds image proxy URLs. It never touches the network.
type Proxy struct {
	baseURL string
	host    string
}

// NewProxy creates a proxy URL builder rooted at baseURL. An empty baseURL
// yields host-relative URLs.
func NewProxy(baseURL string) *Proxy {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	p := &Proxy{baseURL: baseURL}
	if u, err := url.Parse(baseURL); err == nil {
		p.host = u.Host
	}
	return p
}

// URL returns the proxy URL for externalURL. data: URLs and URLs already
// served by the proxy or the cache come back unchanged.
func (p *Proxy) URL(externalURL, sourceID string) string {
	raw := strings.TrimSpace(externalURL)
	if raw == "" || IsDataURL(raw) || p.IsProxied(raw) {
		return externalURL
	}

	q := url.Values{}
	q.Set("url", raw)
	if sourceID != "" {
		q.Set("sourceId", sourceID)
	}
	return p.baseURL + ProxyPath + "?" + q.Encode()
}

// CacheURL returns the location of a stored copy
func (p *Proxy) CacheURL(key string) string {
	return p.baseURL + CachePath + key
}

// IsProxied reports whether raw already points at the proxy or the cache
func (p *Proxy) IsProxied(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Host != "" && u.Host != p.host {
		return false
	}
	return u.Path == ProxyPath || strings.HasPrefix(u.Path, CachePath)
}

// IsDataURL reports an inline data: URL
func IsDataURL(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "data:")
}

// BlobKey derives the storage key for sourceURL: the blake2b-256 digest in
// hex, grouped under the source id. Unsafe or empty source ids share one
// prefix.
func BlobKey(sourceID, sourceURL string) string {
	prefix := sharedPrefix
	if sourceIDRe.MatchString(sourceID) {
		prefix = sourceID
	}
	sum := blake2b.Sum256([]byte(strings.TrimSpace(sourceURL)))
	return prefix + "/" + hex.EncodeToString(sum[:])
}
