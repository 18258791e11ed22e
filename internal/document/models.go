package document

// recordSchemaVersion tags every persisted document record so the shape can
// evolve without guessing at read time. Records with an unknown schema are
// treated the same as missing records.
const recordSchemaVersion = 1

// Record is the persisted form of a document, stored as JSON under
// "doc:<id>". OwnerToken and RawKey are credentials and must never leave
// the store; View strips them.
type Record struct {
	Schema     int       `json:"schema"`
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  string    `json:"createdAt"`
	UpdatedAt  string    `json:"updatedAt"`
	Size       int       `json:"size"`
	Versions   []Version `json:"versions"`
	OwnerToken string    `json:"ownerToken,omitempty"`
	RawKey     string    `json:"rawKey,omitempty"`
}

// Version is per-version metadata. Content is stored separately under
// "version:<docID>:<versionID>" and is only populated on the create/update
// return value and on explicit version fetches.
type Version struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
	Size      int    `json:"size"`
	Hash      string `json:"hash"`
	Content   string `json:"content,omitempty"`
}

// View is the caller-facing projection of a Record. It never carries the
// owner token; RawKey is set only when the viewer is the owner.
type View struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
	Size      int       `json:"size"`
	Versions  []Version `json:"versions"`
	IsPrivate bool      `json:"isPrivate"`
	IsOwner   bool      `json:"isOwner"`
	RawKey    string    `json:"rawKey,omitempty"`
}

// Page is one slice of an index listing. NextCursor is empty when no more
// entries follow.
type Page struct {
	Documents  []View `json:"documents"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// view projects a record for the given viewer token (already normalized).
func (r *Record) view(viewerToken string) View {
	v := View{
		ID:        r.ID,
		Title:     r.Title,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Size:      r.Size,
		Versions:  r.Versions,
		IsPrivate: r.OwnerToken != "",
	}
	if r.OwnerToken != "" && viewerToken == r.OwnerToken {
		v.IsOwner = true
		v.RawKey = r.RawKey
	}
	return v
}
