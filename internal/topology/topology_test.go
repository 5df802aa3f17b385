package topology

import (
	"context"
	"testing"
	"time"
)

type fakePathRepo struct {
	advertCalls int
	routeCalls  int
}

func (f *fakePathRepo) RecordAdvertPath(context.Context, string, string, int, PacketType, time.Time) error {
	f.advertCalls++
	return nil
}
func (f *fakePathRepo) RecordRoutePath(context.Context, string, string, string, int, PacketType, time.Time) error {
	f.routeCalls++
	return nil
}

type fakeGraphRepo struct {
	edges []Edge
}

func (f *fakeGraphRepo) UpsertEdge(_ context.Context, e Edge) error {
	f.edges = append(f.edges, e)
	return nil
}
func (f *fakeGraphRepo) PruneOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }
func (f *fakeGraphRepo) Edges(context.Context) ([]Edge, error)                    { return f.edges, nil }

type fakeCatalogLookup struct {
	keysByPrefix map[string][]string
}

func (f fakeCatalogLookup) PublicKeysForPrefix(_ context.Context, prefix string, _ time.Time) ([]string, error) {
	return f.keysByPrefix[prefix], nil
}

func TestLearnPath_AttributesKeyOnlyWhenUnique(t *testing.T) {
	paths := &fakePathRepo{}
	graph := &fakeGraphRepo{}
	catalog := fakeCatalogLookup{keysByPrefix: map[string][]string{
		"aa": {"keyaaaa"},
		"bb": {"keybbbb1", "keybbbb2"},
	}}
	learner := NewLearner(paths, graph, catalog, time.Hour, "ff", "botkey")

	now := time.Now()
	if err := learner.LearnPath(context.Background(), []string{"aa", "bb"}, "aabb", "", PacketMessage, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(graph.edges) != 1 {
		t.Fatalf("expected one edge, got %d", len(graph.edges))
	}
	edge := graph.edges[0]
	if edge.FromPublicKey != "keyaaaa" {
		t.Fatalf("expected unique-prefix key attributed, got %q", edge.FromPublicKey)
	}
	if edge.ToPublicKey != "" {
		t.Fatalf("expected ambiguous prefix to be left unattributed, got %q", edge.ToPublicKey)
	}
	if paths.routeCalls != 1 || paths.advertCalls != 0 {
		t.Fatalf("expected route path recorded (no public key), got advert=%d route=%d", paths.advertCalls, paths.routeCalls)
	}
}

func TestLearnPath_AdvertPublicKeyRecordsAdvertPath(t *testing.T) {
	paths := &fakePathRepo{}
	graph := &fakeGraphRepo{}
	learner := NewLearner(paths, graph, nil, time.Hour, "ff", "botkey")

	now := time.Now()
	if err := learner.LearnPath(context.Background(), []string{"aa", "bb", "cc"}, "aabbcc", "advertiserkey", PacketAdvert, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paths.advertCalls != 1 {
		t.Fatalf("expected advert path recorded once, got %d", paths.advertCalls)
	}
	if len(graph.edges) != 2 {
		t.Fatalf("expected two hop edges for a 3-prefix path, got %d", len(graph.edges))
	}
}

func TestLearnNeighborTrace_RecordsBidirectionalEdge(t *testing.T) {
	graph := &fakeGraphRepo{}
	learner := NewLearner(nil, graph, nil, time.Hour, "ff", "botkey")

	if err := learner.LearnNeighborTrace(context.Background(), "aa", "neighborkey", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.edges) != 2 {
		t.Fatalf("expected two edges (out and back), got %d", len(graph.edges))
	}
	if graph.edges[0].FromPrefix != "ff" || graph.edges[0].ToPrefix != "aa" {
		t.Fatalf("unexpected outbound edge: %+v", graph.edges[0])
	}
	if graph.edges[1].FromPrefix != "aa" || graph.edges[1].ToPrefix != "ff" {
		t.Fatalf("unexpected inbound edge: %+v", graph.edges[1])
	}
}

func TestPrune_DelegatesToGraphWithRecencyCutoff(t *testing.T) {
	graph := &fakeGraphRepo{}
	learner := NewLearner(nil, graph, nil, 24*time.Hour, "ff", "botkey")
	if _, err := learner.Prune(context.Background(), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
