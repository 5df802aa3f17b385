// Package topology reconstructs a mesh topology graph from observed packet
// paths: directed weighted edges between 2-hex-char node prefixes, plus the
// deduplicated path-observation log the edges are derived from.
package topology

import (
	"context"
	"time"
)

// PacketType classifies which kind of packet produced an observed path.
type PacketType string

const (
	PacketAdvert  PacketType = "advert"
	PacketMessage PacketType = "message"
	PacketTrace   PacketType = "trace"
)

// ObservedPath is one row of observed_paths.
type ObservedPath struct {
	ID               int64
	PublicKey        string
	PacketHash       string
	FromPrefix       string
	ToPrefix         string
	PathHex          string
	PathLength       int
	Type             PacketType
	FirstSeen        time.Time
	LastSeen         time.Time
	ObservationCount int
}

// Edge is one row of mesh_graph_edges: a directed connection between two
// node prefixes, aged out after the recency window.
type Edge struct {
	FromPrefix           string
	ToPrefix             string
	HopPosition          int
	GeographicDistanceKM *float64
	FromPublicKey        string
	ToPublicKey          string
	FirstSeen            time.Time
	LastSeen             time.Time
}

// PathRepository persists deduplicated path observations.
type PathRepository interface {
	// RecordAdvertPath dedups by (public_key, path_hex, type).
	RecordAdvertPath(ctx context.Context, publicKey, pathHex string, pathLen int, typ PacketType, now time.Time) error
	// RecordRoutePath dedups by (from_prefix, to_prefix, path_hex, type) when public_key is absent.
	RecordRoutePath(ctx context.Context, fromPrefix, toPrefix, pathHex string, pathLen int, typ PacketType, now time.Time) error
}

// GraphRepository persists the directed-edge mesh graph.
type GraphRepository interface {
	UpsertEdge(ctx context.Context, e Edge) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Edges(ctx context.Context) ([]Edge, error)
}

// CatalogLookup resolves a node prefix to the set of public keys recently
// seen for it, so the learner can enforce the strict uniqueness rule.
type CatalogLookup interface {
	PublicKeysForPrefix(ctx context.Context, prefix string, since time.Time) ([]string, error)
}

// Learner turns decoded packet paths into graph edges and observed-path log
// entries, honoring the strict public-key attribution rule (spec.md §4.7):
// a prefix's public key is only ever attached when it is unique among
// recently active nodes sharing that prefix.
type Learner struct {
	paths    PathRepository
	graph    GraphRepository
	catalog  CatalogLookup
	recency  time.Duration
	botPrefix string
	botKey    string
}

func NewLearner(paths PathRepository, graph GraphRepository, catalog CatalogLookup, recency time.Duration, botPrefix, botKey string) *Learner {
	if recency <= 0 {
		recency = 7 * 24 * time.Hour
	}
	return &Learner{paths: paths, graph: graph, catalog: catalog, recency: recency, botPrefix: botPrefix, botKey: botKey}
}

// LearnPath walks a path's adjacent prefix pairs and records/updates edges
// for each hop, then logs the path itself to the observed-paths table.
func (l *Learner) LearnPath(ctx context.Context, prefixes []string, pathHex string, publicKey string, typ PacketType, now time.Time) error {
	if len(prefixes) < 2 {
		if l.paths == nil {
			return nil
		}
		return l.recordPath(ctx, prefixes, pathHex, publicKey, typ, now)
	}

	for i := 0; i < len(prefixes)-1; i++ {
		from, to := prefixes[i], prefixes[i+1]
		edge := Edge{
			FromPrefix:  from,
			ToPrefix:    to,
			HopPosition: i + 1,
			FirstSeen:   now,
			LastSeen:    now,
		}

		if key, ok := l.uniquePublicKey(ctx, from, now); ok {
			edge.FromPublicKey = key
		}
		if key, ok := l.uniquePublicKey(ctx, to, now); ok {
			edge.ToPublicKey = key
		}

		if l.graph != nil {
			if err := l.graph.UpsertEdge(ctx, edge); err != nil {
				return err
			}
		}
	}

	return l.recordPath(ctx, prefixes, pathHex, publicKey, typ, now)
}

// LearnNeighborTrace stores the bidirectional bot↔neighbor edge produced by
// a self-originated TRACE that returned through exactly one intermediate.
// Both endpoints' public keys are certain here: the bot's by definition, the
// neighbor's because a single-hop trace cannot be ambiguous about which
// repeater answered.
func (l *Learner) LearnNeighborTrace(ctx context.Context, neighborPrefix, neighborKey string, now time.Time) error {
	if l.graph == nil {
		return nil
	}
	out := Edge{FromPrefix: l.botPrefix, ToPrefix: neighborPrefix, HopPosition: 1, FromPublicKey: l.botKey, ToPublicKey: neighborKey, FirstSeen: now, LastSeen: now}
	in := Edge{FromPrefix: neighborPrefix, ToPrefix: l.botPrefix, HopPosition: 1, FromPublicKey: neighborKey, ToPublicKey: l.botKey, FirstSeen: now, LastSeen: now}
	if err := l.graph.UpsertEdge(ctx, out); err != nil {
		return err
	}
	return l.graph.UpsertEdge(ctx, in)
}

// uniquePublicKey enforces the strict attribution rule: only return a key
// when exactly one distinct candidate exists for the prefix in the window.
func (l *Learner) uniquePublicKey(ctx context.Context, prefix string, now time.Time) (string, bool) {
	if l.catalog == nil {
		return "", false
	}
	keys, err := l.catalog.PublicKeysForPrefix(ctx, prefix, now.Add(-l.recency))
	if err != nil || len(keys) != 1 {
		return "", false
	}
	return keys[0], true
}

func (l *Learner) recordPath(ctx context.Context, prefixes []string, pathHex, publicKey string, typ PacketType, now time.Time) error {
	if l.paths == nil {
		return nil
	}
	if publicKey != "" {
		return l.paths.RecordAdvertPath(ctx, publicKey, pathHex, len(prefixes), typ, now)
	}
	var from, to string
	if len(prefixes) > 0 {
		from = prefixes[0]
		to = prefixes[len(prefixes)-1]
	}
	return l.paths.RecordRoutePath(ctx, from, to, pathHex, len(prefixes), typ, now)
}

// Prune ages out edges not refreshed within the recency window.
func (l *Learner) Prune(ctx context.Context, now time.Time) (int64, error) {
	if l.graph == nil {
		return 0, nil
	}
	return l.graph.PruneOlderThan(ctx, now.Add(-l.recency))
}
