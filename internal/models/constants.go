package models

const (
	MetaSource   = "source"
	MetaSegment  = "segment"
	MetaSequence = "sequence"
	MetaKind     = "kind"

	KindPDF   = "pdf"
	KindDOCX  = "docx"
	KindImage = "image_ocr"
	KindPPTX  = "pptx"
	KindXLSX  = "xlsx"
	KindText  = "text"

	ContextSeparator = "\n\n---\n\n"

	// NoContextAnswer is returned instead of calling the model when retrieval is empty.
	NoContextAnswer = "No relevant context was found in the indexed documents."
)

var (
	QueryPromptTemplate = `Answer the question based only on the following context:

{{.context}}

---

Answer the question based on the above context: {{.question}}
`
)
