package chunk

// Document represents loaded source content prior to splitting.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Strategy selects a splitting algorithm.
type Strategy string

// Settings configures how documents are split.
type Settings struct {
	Strategy Strategy
	Size     int
	Overlap  int
}

// Chunk is a bounded span of document text ready for indexing.
type Chunk struct {
	ID       string
	Text     string
	Hash     string
	Metadata map[string]any
}
