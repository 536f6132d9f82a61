package index

// Document is one unit of the corpus: an id, the name it was loaded under and
// its ordered tokens.
type Document struct {
	ID     int
	Name   string
	Tokens []string
}

// Len is the document length in tokens.
func (d Document) Len() int {
	return len(d.Tokens)
}

// Posting is one occurrence of a term.
type Posting struct {
	DocID    int `json:"d"`
	Position int `json:"p"`
}

// PostingList is ordered by DocID, then Position.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

type DocStats struct {
	DocID  int    `json:"id"`
	Name   string `json:"name,omitempty"`
	DocLen int    `json:"length"`
}
