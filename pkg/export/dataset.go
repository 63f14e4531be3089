package export

// Field is one labelled value in a document snapshot.
type Field struct {
	Label string
	Value string
}

// Section groups the fields of one workflow step under a heading.
type Section struct {
	Heading string
	Fields  []Field
}

// Document is a single-record snapshot rendered as labelled sections.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
}

// Dataset defines tabular export content for list exports.
type Dataset struct {
	Headers []string
	Rows    [][]string
}
