package kg

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klarline/academe/internal/model"
)

type fakeTripleSource struct {
	byUser map[string][]model.KGTriple
}

func (f *fakeTripleSource) TriplesFor(ctx context.Context, userID string, subjects []string) ([]model.KGTriple, error) {
	want := map[string]struct{}{}
	for _, s := range subjects {
		want[s] = struct{}{}
	}
	var out []model.KGTriple
	for _, t := range f.byUser[userID] {
		if _, ok := want[t.Subject]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func TestExpand_WalksTwoHops(t *testing.T) {
	src := &fakeTripleSource{byUser: map[string][]model.KGTriple{
		"u1": {
			{Subject: "mitosis", Predicate: "has_phase", Object: "prophase"},
			{Subject: "prophase", Predicate: "precedes", Object: "metaphase"},
			{Subject: "metaphase", Predicate: "precedes", Object: "anaphase"},
		},
	}}

	got, err := Expand(context.Background(), src, "u1", []string{"mitosis"}, 2, 32)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "mitosis", got[0].Subject)
	assert.Equal(t, "prophase", got[1].Subject)
}

func TestExpand_CapsAtMaxTriples(t *testing.T) {
	var triples []model.KGTriple
	for i := 0; i < 50; i++ {
		triples = append(triples, model.KGTriple{Subject: "root", Predicate: "rel", Object: "o" + strconv.Itoa(i)})
	}
	src := &fakeTripleSource{byUser: map[string][]model.KGTriple{"u1": triples}}

	got, err := Expand(context.Background(), src, "u1", []string{"root"}, 2, 32)
	require.NoError(t, err)
	assert.Len(t, got, 32)
}

func TestExpand_NoSeeds_ReturnsNil(t *testing.T) {
	src := &fakeTripleSource{}
	got, err := Expand(context.Background(), src, "u1", nil, 2, 32)
	require.NoError(t, err)
	assert.Nil(t, got)
}
