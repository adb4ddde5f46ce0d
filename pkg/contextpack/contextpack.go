// Package contextpack assembles a bounded, IDE-ready context pack from a
// query result, per SPEC_FULL.md §4.6: budgeted snippet/fact/pattern/config
// sections, symbol- or range-aware code cropping, and tag/title hints.
package contextpack

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/llm-memory/engine/pkg/config"
	"github.com/llm-memory/engine/pkg/types"
)

const minChunkSnippet = 120
const minChunkOther = 40

// Window bounds how many lines of context surround a cropped snippet.
type Window struct {
	Before int
	After  int
}

// DefaultWindow matches SPEC_FULL.md's default of 6 lines each side.
var DefaultWindow = Window{Before: 6, After: 6}

// Input parameterizes Assemble.
type Input struct {
	Items               []*types.MemoryItem
	Scope               types.ListScope
	MaxChars            int
	TokenBudget         int
	SnippetWindow       *Window
	SnippetLanguages    []string
	SnippetFilePatterns []string
	Caps                config.Caps
	Order               []string
}

// LinkRef is a link flattened out of a retained item, carrying the
// originating item's title for display.
type LinkRef struct {
	FromTitle string        `json:"fromTitle"`
	Rel       types.LinkRel `json:"rel"`
	To        string        `json:"to"`
}

// Pack is the assembled output.
type Pack struct {
	Title    string    `json:"title"`
	Hints    []string  `json:"hints"`
	Snippets []string  `json:"snippets"`
	Facts    []string  `json:"facts"`
	Patterns []string  `json:"patterns"`
	Configs  []string  `json:"configs"`
	Links    []LinkRef `json:"links"`
	Source   struct {
		Scope types.ListScope `json:"scope"`
		IDs   []string        `json:"ids"`
	} `json:"source"`
}

// budget tracks the remaining character allowance, derived from maxChars
// and/or tokenBudget (token budget takes precedence when both are set,
// via the chars ≈ 4·tokens heuristic).
type budget struct {
	remaining int
	unlimited bool
}

func newBudget(maxChars, tokenBudget int) *budget {
	switch {
	case tokenBudget > 0:
		return &budget{remaining: tokenBudget * 4}
	case maxChars > 0:
		return &budget{remaining: maxChars}
	default:
		return &budget{unlimited: true}
	}
}

// take returns the (possibly truncated) text to append, and whether
// anything fit at all. minChunk is the minimum truncation worth keeping.
func (b *budget) take(text string, minChunk int) (string, bool) {
	if b.unlimited {
		return text, true
	}
	if b.remaining <= 0 {
		return "", false
	}
	if len(text) <= b.remaining {
		b.remaining -= len(text)
		return text, true
	}
	if b.remaining < minChunk {
		return "", false
	}
	cut := text[:b.remaining-3] + "..."
	b.remaining = 0
	return cut, true
}

// Assemble builds a Pack from in, applying section caps/order, budget
// enforcement, and snippet cropping.
func Assemble(in Input) Pack {
	order := in.Order
	if len(order) == 0 {
		order = []string{"snippets", "facts", "patterns", "configs"}
	}
	caps := in.Caps
	if caps.Snippets == 0 && caps.Facts == 0 && caps.Patterns == 0 && caps.Configs == 0 {
		caps = config.Caps{Snippets: 12, Facts: 8, Patterns: 6, Configs: 6}
	}
	window := DefaultWindow
	if in.SnippetWindow != nil {
		window = *in.SnippetWindow
	}

	byType := map[string][]*types.MemoryItem{
		"snippets": filterByType(in.Items, types.ItemTypeSnippet),
		"facts":    filterByType(in.Items, types.ItemTypeFact, types.ItemTypeInsight, types.ItemTypeNote),
		"patterns": filterByType(in.Items, types.ItemTypePattern, types.ItemTypeRunbook),
		"configs":  filterByType(in.Items, types.ItemTypeConfig),
	}
	capFor := map[string]int{
		"snippets": caps.Snippets,
		"facts":    caps.Facts,
		"patterns": caps.Patterns,
		"configs":  caps.Configs,
	}

	b := newBudget(in.MaxChars, in.TokenBudget)
	pack := Pack{Scope: in.Scope}
	var retained []*types.MemoryItem
	ids := map[string]bool{}

	for _, section := range order {
		items := byType[section]
		limit := capFor[section]
		minChunk := minChunkOther
		if section == "snippets" {
			minChunk = minChunkSnippet
		}
		count := 0
		for _, item := range items {
			if limit > 0 && count >= limit {
				break
			}
			var raw string
			if section == "snippets" {
				var ok bool
				raw, ok = cropSnippet(item, window, in.SnippetLanguages, in.SnippetFilePatterns)
				if !ok {
					continue
				}
			} else {
				raw = renderEntry(item)
			}
			if raw == "" {
				continue
			}
			text, fits := b.take(raw, minChunk)
			if !fits {
				continue
			}
			appendTo(&pack, section, text)
			count++
			if !ids[item.ID] {
				ids[item.ID] = true
				retained = append(retained, item)
			}
		}
	}

	pack.Hints = buildHints(retained)
	pack.Links = flattenLinks(retained)
	pack.Source.IDs = make([]string, 0, len(retained))
	for _, item := range retained {
		pack.Source.IDs = append(pack.Source.IDs, item.ID)
	}
	if len(retained) > 0 {
		pack.Title = retained[0].Title
	}
	return pack
}

func appendTo(pack *Pack, section, text string) {
	switch section {
	case "snippets":
		pack.Snippets = append(pack.Snippets, text)
	case "facts":
		pack.Facts = append(pack.Facts, text)
	case "patterns":
		pack.Patterns = append(pack.Patterns, text)
	case "configs":
		pack.Configs = append(pack.Configs, text)
	}
}

func filterByType(items []*types.MemoryItem, types_ ...types.ItemType) []*types.MemoryItem {
	want := map[types.ItemType]bool{}
	for _, t := range types_ {
		want[t] = true
	}
	var out []*types.MemoryItem
	for _, item := range items {
		if want[item.Type] {
			out = append(out, item)
		}
	}
	return out
}

func renderEntry(item *types.MemoryItem) string {
	if item.Text != "" {
		return fmt.Sprintf("%s: %s", item.Title, item.Text)
	}
	return item.Title
}

func cropSnippet(item *types.MemoryItem, window Window, langs, filePatterns []string) (string, bool) {
	if len(langs) > 0 && !containsStr(langs, item.Language) {
		return "", false
	}
	if len(filePatterns) > 0 {
		file := item.Facets.Files
		if item.Context != nil && item.Context.File != "" {
			file = append(file, item.Context.File)
		}
		if !anyGlobMatch(filePatterns, file) {
			return "", false
		}
	}

	content := item.Code
	if content == "" {
		content = item.Text
	}
	if content == "" {
		return "", false
	}

	lines := strings.Split(content, "\n")

	if item.Context != nil && item.Context.Range != nil {
		start := item.Context.Range.Start - window.Before
		end := item.Context.Range.End + window.After
		return cropLines(lines, start, end), true
	}

	symbol := ""
	if item.Context != nil && item.Context.Function != "" {
		symbol = item.Context.Function
	} else if len(item.Facets.Symbols) > 0 {
		symbol = item.Facets.Symbols[0]
	}
	if symbol != "" {
		for i, line := range lines {
			if strings.Contains(line, symbol) {
				start := i + 1 - window.Before
				end := i + 1 + window.After + 1
				return cropLines(lines, start, end), true
			}
		}
	}

	return content, true
}

// cropLines extracts the 1-based, inclusive range [start,end] from lines,
// clamped to bounds.
func cropLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

func anyGlobMatch(patterns []string, candidates []string) bool {
	for _, p := range patterns {
		for _, c := range candidates {
			if ok, _ := filepath.Match(p, c); ok {
				return true
			}
		}
	}
	return false
}

func containsStr(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

const hintTagCount = 8
const hintTitleCount = 5

func buildHints(items []*types.MemoryItem) []string {
	tagFreq := map[string]int{}
	var tagOrder []string
	for _, item := range items {
		for _, tag := range item.Facets.Tags {
			if tagFreq[tag] == 0 {
				tagOrder = append(tagOrder, tag)
			}
			tagFreq[tag]++
		}
	}
	// stable sort by frequency descending, ties by first-seen order
	topTags := append([]string(nil), tagOrder...)
	for i := 1; i < len(topTags); i++ {
		for j := i; j > 0 && tagFreq[topTags[j]] > tagFreq[topTags[j-1]]; j-- {
			topTags[j], topTags[j-1] = topTags[j-1], topTags[j]
		}
	}
	if len(topTags) > hintTagCount {
		topTags = topTags[:hintTagCount]
	}

	var hints []string
	for _, tag := range topTags {
		hints = append(hints, "tag:"+tag)
	}
	for i, item := range items {
		if i >= hintTitleCount {
			break
		}
		if item.Title != "" {
			hints = append(hints, "title:"+item.Title)
		}
	}
	return hints
}

func flattenLinks(items []*types.MemoryItem) []LinkRef {
	var links []LinkRef
	for _, item := range items {
		for _, l := range item.Links {
			links = append(links, LinkRef{FromTitle: item.Title, Rel: l.Rel, To: l.To})
		}
	}
	return links
}
