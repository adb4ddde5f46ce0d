package contextpack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-memory/engine/pkg/config"
	"github.com/llm-memory/engine/pkg/types"
)

func snippetItem(id, code string, rng *types.Range) *types.MemoryItem {
	now := time.Now().UTC()
	return &types.MemoryItem{
		ID:       id,
		Type:     types.ItemTypeSnippet,
		Title:    "snippet " + id,
		Code:     code,
		Language: "go",
		Context:  &types.Context{File: "main.go", Range: rng},
		Facets:   types.Facets{Tags: []string{"go", "http"}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAssembleOrdersSectionsAndCaps(t *testing.T) {
	items := []*types.MemoryItem{
		{ID: "1", Type: types.ItemTypeFact, Title: "fact one", Text: "the service uses postgres", CreatedAt: time.Now(), UpdatedAt: time.Now()},
		{ID: "2", Type: types.ItemTypeFact, Title: "fact two", Text: "retries are capped at 3", CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}
	pack := Assemble(Input{
		Items: items,
		Caps:  config.Caps{Facts: 1},
	})
	assert.Len(t, pack.Facts, 1)
	assert.Contains(t, pack.Facts[0], "fact one")
}

func TestAssembleCropsSnippetByRange(t *testing.T) {
	code := "line1\nline2\nline3\nline4\nline5\nline6\nline7\nline8\nline9\nline10"
	item := snippetItem("s1", code, &types.Range{Start: 5, End: 5})
	pack := Assemble(Input{
		Items:         []*types.MemoryItem{item},
		SnippetWindow: &Window{Before: 1, After: 1},
	})
	require.Len(t, pack.Snippets, 1)
	assert.Equal(t, "line4\nline5\nline6", pack.Snippets[0])
}

func TestAssembleSkipsSnippetOutsideLanguageFilter(t *testing.T) {
	item := snippetItem("s1", "package main", nil)
	pack := Assemble(Input{
		Items:            []*types.MemoryItem{item},
		SnippetLanguages: []string{"python"},
	})
	assert.Empty(t, pack.Snippets)
}

func TestAssembleSkipsSnippetOutsideFilePattern(t *testing.T) {
	item := snippetItem("s1", "package main", nil)
	pack := Assemble(Input{
		Items:               []*types.MemoryItem{item},
		SnippetFilePatterns: []string{"*.py"},
	})
	assert.Empty(t, pack.Snippets)
}

func TestAssembleTruncatesOnCharBudget(t *testing.T) {
	item := &types.MemoryItem{
		ID: "f1", Type: types.ItemTypeFact, Title: "long fact",
		Text: "this text is definitely longer than the tiny budget we are about to impose on it",
	}
	pack := Assemble(Input{Items: []*types.MemoryItem{item}, MaxChars: 50})
	require.Len(t, pack.Facts, 1)
	assert.LessOrEqual(t, len(pack.Facts[0]), 50)
	assert.Contains(t, pack.Facts[0], "...")
}

func TestAssembleDropsWhenBelowMinChunk(t *testing.T) {
	item := &types.MemoryItem{ID: "f1", Type: types.ItemTypeFact, Title: "x", Text: "some moderately long fact text that exceeds the tiny budget"}
	pack := Assemble(Input{Items: []*types.MemoryItem{item}, MaxChars: 10})
	assert.Empty(t, pack.Facts)
}

func TestAssembleBuildsTagAndTitleHints(t *testing.T) {
	items := []*types.MemoryItem{
		{ID: "1", Type: types.ItemTypeFact, Title: "first", Text: "a", Facets: types.Facets{Tags: []string{"go", "http"}}},
		{ID: "2", Type: types.ItemTypeFact, Title: "second", Text: "b", Facets: types.Facets{Tags: []string{"go"}}},
	}
	pack := Assemble(Input{Items: items})
	assert.Contains(t, pack.Hints, "tag:go")
	assert.Contains(t, pack.Hints, "title:first")
	assert.Contains(t, pack.Hints, "title:second")
}

func TestAssembleFlattensLinks(t *testing.T) {
	items := []*types.MemoryItem{
		{ID: "1", Type: types.ItemTypeFact, Title: "first", Text: "a", Links: []types.Link{{Rel: types.LinkRelRelates, To: "2"}}},
	}
	pack := Assemble(Input{Items: items})
	require.Len(t, pack.Links, 1)
	assert.Equal(t, "first", pack.Links[0].FromTitle)
	assert.Equal(t, "2", pack.Links[0].To)
}

func TestAssembleSourceTracksRetainedIDs(t *testing.T) {
	items := []*types.MemoryItem{
		{ID: "1", Type: types.ItemTypeFact, Title: "first", Text: "a"},
		{ID: "2", Type: types.ItemTypeFact, Title: "second", Text: "b"},
	}
	pack := Assemble(Input{Items: items, Scope: types.ListScopeProject})
	assert.ElementsMatch(t, []string{"1", "2"}, pack.Source.IDs)
	assert.Equal(t, types.ListScopeProject, pack.Source.Scope)
}
