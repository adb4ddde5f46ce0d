package types

import "time"

// Scope identifies one of the three independent storage domains.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeLocal     Scope = "local"
	ScopeCommitted Scope = "committed"
)

// ListScope extends Scope with the two cross-scope merge views used by
// List and Query.
type ListScope string

const (
	ListScopeGlobal    ListScope = "global"
	ListScopeLocal     ListScope = "local"
	ListScopeCommitted ListScope = "committed"
	ListScopeProject   ListScope = "project"
	ListScopeAll       ListScope = "all"
)

// ItemType is the kind of content a MemoryItem carries.
type ItemType string

const (
	ItemTypeSnippet ItemType = "snippet"
	ItemTypePattern ItemType = "pattern"
	ItemTypeConfig  ItemType = "config"
	ItemTypeInsight ItemType = "insight"
	ItemTypeRunbook ItemType = "runbook"
	ItemTypeFact    ItemType = "fact"
	ItemTypeNote    ItemType = "note"
)

// Sensitivity ranks how freely an item may be shared. Rank order is
// Public < Team < Private.
type Sensitivity string

const (
	SensitivityPublic  Sensitivity = "public"
	SensitivityTeam    Sensitivity = "team"
	SensitivityPrivate Sensitivity = "private"
)

// Rank returns the sensitivity's position in the public<team<private order.
func (s Sensitivity) Rank() int {
	switch s {
	case SensitivityPublic:
		return 0
	case SensitivityTeam:
		return 1
	case SensitivityPrivate:
		return 2
	default:
		return 2 // unknown sensitivities default to the strictest rank
	}
}

// LinkRel is the relationship a Link expresses between two items.
type LinkRel string

const (
	LinkRelRefines    LinkRel = "refines"
	LinkRelDuplicates LinkRel = "duplicates"
	LinkRelDepends    LinkRel = "depends"
	LinkRelFixes      LinkRel = "fixes"
	LinkRelRelates    LinkRel = "relates"
)

// Link points from the owning item to another item by id.
type Link struct {
	Rel LinkRel `json:"rel"`
	To  string  `json:"to"`
}

// Range is a 1-based, inclusive line range within a file.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Facets are the structured, filterable tags on an item.
type Facets struct {
	Tags    []string `json:"tags,omitempty"`
	Files   []string `json:"files,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

// Context is optional structured provenance metadata for an item.
type Context struct {
	RepoID    string `json:"repoId,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Commit    string `json:"commit,omitempty"`
	File      string `json:"file,omitempty"`
	Range     *Range `json:"range,omitempty"`
	Function  string `json:"function,omitempty"`
	Package   string `json:"package,omitempty"`
	Framework string `json:"framework,omitempty"`
}

// Quality carries confidence, reuse tracking, pin state, and expiry.
type Quality struct {
	Confidence float64    `json:"confidence"`
	ReuseCount int        `json:"reuseCount"`
	Pinned     bool       `json:"pinned"`
	TTLDays    *float64   `json:"ttlDays,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// DefaultConfidence is applied when an upsert does not specify one.
const DefaultConfidence = 0.75

// Security carries the sensitivity ceiling input and accumulated redaction
// references for an item.
type Security struct {
	Sensitivity    Sensitivity `json:"sensitivity"`
	SecretHashRefs []string    `json:"secretHashRefs,omitempty"`
}

// MemoryItem is the durable unit stored per scope. See SPEC_FULL.md §3.
type MemoryItem struct {
	ID    string   `json:"id"`
	Type  ItemType `json:"type"`
	Scope Scope    `json:"scope"`

	Title    string `json:"title,omitempty"`
	Text     string `json:"text,omitempty"`
	Code     string `json:"code,omitempty"`
	Language string `json:"language,omitempty"`

	Facets  Facets   `json:"facets"`
	Context *Context `json:"context,omitempty"`
	Quality Quality  `json:"quality"`

	Security Security `json:"security"`

	Links []Link `json:"links,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`
}

// Expired reports whether the item's TTL has elapsed as of now.
func (m *MemoryItem) Expired(now time.Time) bool {
	return m.Quality.ExpiresAt != nil && now.After(*m.Quality.ExpiresAt)
}

// Clone returns a deep copy so callers cannot mutate manager-owned state
// through slices or the Context pointer.
func (m *MemoryItem) Clone() *MemoryItem {
	if m == nil {
		return nil
	}
	out := *m
	out.Facets = Facets{
		Tags:    append([]string(nil), m.Facets.Tags...),
		Files:   append([]string(nil), m.Facets.Files...),
		Symbols: append([]string(nil), m.Facets.Symbols...),
	}
	if m.Context != nil {
		ctx := *m.Context
		if m.Context.Range != nil {
			r := *m.Context.Range
			ctx.Range = &r
		}
		out.Context = &ctx
	}
	if m.Quality.TTLDays != nil {
		v := *m.Quality.TTLDays
		out.Quality.TTLDays = &v
	}
	if m.Quality.ExpiresAt != nil {
		v := *m.Quality.ExpiresAt
		out.Quality.ExpiresAt = &v
	}
	out.Security.SecretHashRefs = append([]string(nil), m.Security.SecretHashRefs...)
	out.Links = append([]Link(nil), m.Links...)
	return &out
}

// MemoryItemSummary is the small, search-oriented catalog entry.
type MemoryItemSummary struct {
	ID         string    `json:"id"`
	Type       ItemType  `json:"type"`
	Scope      Scope     `json:"scope"`
	Title      string    `json:"title,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Files      []string  `json:"files,omitempty"`
	Symbols    []string  `json:"symbols,omitempty"`
	Confidence float64    `json:"confidence"`
	Pinned     bool       `json:"pinned"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Expired reports whether the summary's TTL has elapsed as of now.
func (s MemoryItemSummary) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Summarize projects a MemoryItem down to its catalog entry.
func Summarize(item *MemoryItem) MemoryItemSummary {
	return MemoryItemSummary{
		ID:         item.ID,
		Type:       item.Type,
		Scope:      item.Scope,
		Title:      item.Title,
		Tags:       append([]string(nil), item.Facets.Tags...),
		Files:      append([]string(nil), item.Facets.Files...),
		Symbols:    append([]string(nil), item.Facets.Symbols...),
		Confidence: item.Quality.Confidence,
		Pinned:     item.Quality.Pinned,
		ExpiresAt:  item.Quality.ExpiresAt,
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
	}
}

// JournalOp is the kind of operation a JournalEntry records.
type JournalOp string

const (
	JournalOpUpsert JournalOp = "upsert"
	JournalOpDelete JournalOp = "delete"
)

// JournalEntry is one line of journal.ndjson.
type JournalEntry struct {
	Op    JournalOp   `json:"op"`
	Item  *MemoryItem `json:"item,omitempty"`
	ID    string      `json:"id,omitempty"`
	TS    time.Time   `json:"ts"`
	Actor string      `json:"actor"`
}

// EntryID returns the id a journal entry applies to, regardless of whether
// it carries a full item (upsert) or a bare id (delete).
func (e JournalEntry) EntryID() string {
	if e.Item != nil {
		return e.Item.ID
	}
	return e.ID
}

// SnapshotMeta records the last journal timestamp materialized into the
// catalog/index, with an optional integrity checksum.
type SnapshotMeta struct {
	LastTS   time.Time `json:"lastTs"`
	Checksum string    `json:"checksum,omitempty"`
}

// StateOk is written after a successful compaction.
type StateOk struct {
	TS       time.Time `json:"ts"`
	Checksum string    `json:"checksum,omitempty"`
}
