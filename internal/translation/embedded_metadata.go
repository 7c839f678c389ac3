package translation

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"folio/internal/library"
)

// embeddedMetadataID is stable so extensions can cache the code.
const embeddedMetadataID = "951c027d-74ac-47d4-a107-9c3069ab7b48"

const embeddedMetadataCode = `// Embedded Metadata
// Reads Highwire Press citation_* and Dublin Core meta tags from the
// document head and maps them onto an item draft. Pages without a
// citation_title or DC.title tag are not handled.
`

// embeddedMetadata translates pages that carry citation meta tags.
type embeddedMetadata struct{}

func newEmbeddedMetadata() *embeddedMetadata {
	return &embeddedMetadata{}
}

func (e *embeddedMetadata) Ref() TranslatorRef {
	return TranslatorRef{
		ID:       embeddedMetadataID,
		Label:    "Embedded Metadata",
		Priority: 400,
	}
}

func (e *embeddedMetadata) Code() string {
	return embeddedMetadataCode
}

func (e *embeddedMetadata) Detect(uri string, doc *goquery.Document) bool {
	return metaContent(doc, "citation_title") != "" || metaContent(doc, "DC.title") != ""
}

func (e *embeddedMetadata) Translate(uri string, doc *goquery.Document) ([]*library.Draft, error) {
	title := metaContent(doc, "citation_title")
	if title == "" {
		title = metaContent(doc, "DC.title")
	}
	if title == "" {
		return nil, nil
	}

	draft := &library.Draft{
		Title:  title,
		URL:    uri,
		Fields: map[string]string{},
	}

	journal := metaContent(doc, "citation_journal_title")
	if journal != "" {
		draft.ItemType = "journalArticle"
		draft.Fields["publicationTitle"] = journal
	} else {
		draft.ItemType = "webpage"
	}

	if date := firstMeta(doc, "citation_publication_date", "citation_date", "DC.date"); date != "" {
		draft.Fields["date"] = date
	}
	if doi := metaContent(doc, "citation_doi"); doi != "" {
		draft.Fields["DOI"] = doi
	}
	if volume := metaContent(doc, "citation_volume"); volume != "" {
		draft.Fields["volume"] = volume
	}
	if issue := metaContent(doc, "citation_issue"); issue != "" {
		draft.Fields["issue"] = issue
	}
	if pages := pagesFromMeta(doc); pages != "" {
		draft.Fields["pages"] = pages
	}
	if issn := metaContent(doc, "citation_issn"); issn != "" {
		draft.Fields["ISSN"] = issn
	}
	if abstract := firstMeta(doc, "citation_abstract", "DC.description", "description"); abstract != "" {
		draft.Fields["abstractNote"] = abstract
	}
	if len(draft.Fields) == 0 {
		draft.Fields = nil
	}

	doc.Find(`meta[name="citation_author"], meta[name="DC.creator"]`).Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.AttrOr("content", ""))
		if name == "" {
			return
		}
		draft.Creators = append(draft.Creators, splitAuthor(name))
	})

	if pdfURL := metaContent(doc, "citation_pdf_url"); pdfURL != "" {
		draft.Attachments = append(draft.Attachments, library.AttachmentDraft{
			Title:    "Full Text PDF",
			URL:      pdfURL,
			MimeType: "application/pdf",
		})
	}

	return []*library.Draft{draft}, nil
}

func metaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(`meta[name="` + name + `"]`).First()
	return strings.TrimSpace(sel.AttrOr("content", ""))
}

func firstMeta(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		if v := metaContent(doc, name); v != "" {
			return v
		}
	}
	return ""
}

func pagesFromMeta(doc *goquery.Document) string {
	first := metaContent(doc, "citation_firstpage")
	last := metaContent(doc, "citation_lastpage")
	switch {
	case first != "" && last != "":
		return first + "-" + last
	case first != "":
		return first
	default:
		return ""
	}
}

// splitAuthor handles both "Last, First" and "First Last" forms.
func splitAuthor(name string) library.CreatorDraft {
	if idx := strings.Index(name, ","); idx >= 0 {
		return library.CreatorDraft{
			LastName:    strings.TrimSpace(name[:idx]),
			FirstName:   strings.TrimSpace(name[idx+1:]),
			CreatorType: "author",
		}
	}
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return library.CreatorDraft{LastName: name, CreatorType: "author"}
	}
	return library.CreatorDraft{
		FirstName:   strings.Join(parts[:len(parts)-1], " "),
		LastName:    parts[len(parts)-1],
		CreatorType: "author",
	}
}
