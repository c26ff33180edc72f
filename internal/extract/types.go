package extract

// Descriptor is one translatable message found in a source file.
type Descriptor struct {
	// ID is the logical key of the message. Dots separate tree segments.
	ID             string `json:"id,omitempty"`
	DefaultMessage string `json:"defaultMessage,omitempty"`
	Description    string `json:"description,omitempty"`

	// Source location, only filled when ExtractSourceLocation is set.
	File  string `json:"file,omitempty"`
	Start *int   `json:"start,omitempty"`
	End   *int   `json:"end,omitempty"`
	Line  *int   `json:"line,omitempty"`
	Col   *int   `json:"col,omitempty"`

	// Meta holds the key:value pairs of the file pragma, if any.
	Meta map[string]string `json:"meta,omitempty"`
}

// FileResult holds the parsing output for a single file.
type FileResult struct {
	// Path is the file path as handed to the parser.
	Path string
	// Messages are the descriptors in source order.
	Messages []Descriptor
	// Meta is the parsed pragma comment, nil when absent.
	Meta map[string]string
}

// SourceParser finds message call sites in one file.
type SourceParser interface {
	// ParseFile extracts descriptors from the content of path. Descriptors
	// carry Start/End offsets; the extractor decides whether to keep them.
	ParseFile(path string, src []byte) (*FileResult, error)
}

// Formatter shapes the merged messages before they are written.
type Formatter interface {
	// Format turns the id-keyed messages into the document to persist.
	Format(msgs map[string]Descriptor) (any, error)
	// Serialize renders the formatted document.
	Serialize(v any) ([]byte, error)
}

// Options control a batch extraction.
type Options struct {
	// IDInterpolationPattern generates ids for descriptors without one,
	// e.g. "[sha512:contenthash:base64:6]". Empty disables generation.
	IDInterpolationPattern string
	ExtractSourceLocation  bool
	RemoveDefaultMessage   bool
	PreserveWhitespace     bool
	// Flatten hoists plural/select arguments so every option is a full
	// sentence.
	Flatten bool
	// Throws turns per-file and missing-id warnings into errors.
	Throws bool

	AdditionalComponentNames []string
	AdditionalFunctionNames  []string
	// Pragma is the comment tag, without "@", whose key:value pairs become
	// message metadata.
	Pragma string

	// Format receives the merged messages. Required.
	Format Formatter

	// OnMessages is called once per file with its descriptors. Files are
	// processed concurrently, so the callback must be safe for that.
	OnMessages func(file string, msgs []Descriptor)
	// OnMeta is called for files carrying a pragma.
	OnMeta func(file string, meta map[string]string)
}
