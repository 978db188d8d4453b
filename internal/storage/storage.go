// Package storage abstracts the object store holding public share blobs
// and private entity payloads.
package storage

import (
	"context"
	"strings"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, visibility Visibility) error
	Remove(ctx context.Context, key string) error
	// PublicURL returns the externally reachable URL for a public key.
	PublicURL(key string) string
}

// ShareKey is the deterministic public location of a share's JSON blob.
func ShareKey(shareID string) string {
	return "share/" + shareID + ".json"
}

// ShareCoverKey is the parallel location of a share's cover image.
func ShareCoverKey(shareID string) string {
	return "share-cover/" + shareID + ".png"
}

// ShareMediaKey locates one re-hosted media object under a canvas share.
func ShareMediaKey(shareID, nodeID string) string {
	return "share-media/" + shareID + "/" + nodeID
}

// publicPrefixes are the key namespaces written with public visibility.
var publicPrefixes = []string{"share/", "share-cover/", "share-media/"}

// IsPublicKey reports whether a key lives in the public namespace. Every
// other key is private entity or media content.
func IsPublicKey(key string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
