package importer

import (
	"context"
	"strings"

	"folio/internal/library"
	"folio/internal/services"
)

// BibTeXParser reads @type{key, field = {value}, ...} entries. Values
// may be brace-delimited, quoted, or bare; braces nest.
type BibTeXParser struct{}

func (p *BibTeXParser) ContentType() string {
	return "application/x-bibtex"
}

func (p *BibTeXParser) Parse(ctx context.Context, body []byte) ([]*library.Draft, error) {
	text := string(body)
	if !strings.Contains(text, "@") {
		return nil, services.Wrap(services.ErrValidation, "importer", "bibtex", "no entries in body", nil)
	}

	var drafts []*library.Draft
	pos := 0
	for {
		at := strings.IndexByte(text[pos:], '@')
		if at < 0 {
			break
		}
		pos += at + 1
		entry, next, err := parseBibEntry(text, pos)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "importer", "bibtex", "", err)
		}
		pos = next
		if entry == nil {
			continue
		}
		drafts = append(drafts, entry)
	}
	if len(drafts) == 0 {
		return nil, services.Wrap(services.ErrValidation, "importer", "bibtex", "no entries in body", nil)
	}
	return drafts, nil
}

// parseBibEntry parses one entry starting just after the '@'. Comment
// and preamble entries yield a nil draft.
func parseBibEntry(text string, pos int) (*library.Draft, int, error) {
	open := strings.IndexByte(text[pos:], '{')
	if open < 0 {
		return nil, len(text), errEntry("missing '{' after entry type")
	}
	entryType := strings.ToLower(strings.TrimSpace(text[pos : pos+open]))
	pos += open + 1

	if entryType == "comment" || entryType == "preamble" || entryType == "string" {
		next, err := skipBalanced(text, pos)
		return nil, next, err
	}

	comma := strings.IndexByte(text[pos:], ',')
	if comma < 0 {
		return nil, len(text), errEntry("missing citation key")
	}
	pos += comma + 1

	fields := map[string]string{}
	for {
		for pos < len(text) && isBibSpace(text[pos]) {
			pos++
		}
		if pos >= len(text) {
			return nil, pos, errEntry("unterminated entry")
		}
		if text[pos] == '}' {
			pos++
			break
		}
		if text[pos] == ',' {
			pos++
			continue
		}

		eq := strings.IndexByte(text[pos:], '=')
		if eq < 0 {
			return nil, len(text), errEntry("field without '='")
		}
		name := strings.ToLower(strings.TrimSpace(text[pos : pos+eq]))
		pos += eq + 1

		value, next, err := parseBibValue(text, pos)
		if err != nil {
			return nil, next, err
		}
		pos = next
		if name != "" && value != "" {
			fields[name] = value
		}
	}

	return draftFromBibFields(entryType, fields), pos, nil
}

func parseBibValue(text string, pos int) (string, int, error) {
	for pos < len(text) && isBibSpace(text[pos]) {
		pos++
	}
	if pos >= len(text) {
		return "", pos, errEntry("missing field value")
	}
	switch text[pos] {
	case '{':
		start := pos + 1
		end, err := skipBalanced(text, start)
		if err != nil {
			return "", end, err
		}
		return cleanBibValue(text[start : end-1]), end, nil
	case '"':
		end := strings.IndexByte(text[pos+1:], '"')
		if end < 0 {
			return "", len(text), errEntry("unterminated quoted value")
		}
		return cleanBibValue(text[pos+1 : pos+1+end]), pos + end + 2, nil
	default:
		end := pos
		for end < len(text) && text[end] != ',' && text[end] != '}' && text[end] != '\n' {
			end++
		}
		return cleanBibValue(text[pos:end]), end, nil
	}
}

// skipBalanced consumes a brace-balanced region starting just inside
// the opening brace and returns the index just past its close.
func skipBalanced(text string, pos int) (int, error) {
	depth := 1
	for pos < len(text) {
		switch text[pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return pos + 1, nil
			}
		}
		pos++
	}
	return pos, errEntry("unbalanced braces")
}

func draftFromBibFields(entryType string, fields map[string]string) *library.Draft {
	draft := &library.Draft{
		ItemType: bibItemType(entryType),
		Title:    fields["title"],
		URL:      fields["url"],
		Fields:   map[string]string{},
	}

	if v := fields["journal"]; v != "" {
		draft.Fields["publicationTitle"] = v
	} else if v := fields["booktitle"]; v != "" {
		draft.Fields["publicationTitle"] = v
	}
	if v := fields["year"]; v != "" {
		draft.Fields["date"] = v
	}
	if v := fields["doi"]; v != "" {
		draft.Fields["DOI"] = v
	}
	if v := fields["volume"]; v != "" {
		draft.Fields["volume"] = v
	}
	if v := fields["number"]; v != "" {
		draft.Fields["issue"] = v
	}
	if v := fields["pages"]; v != "" {
		draft.Fields["pages"] = strings.ReplaceAll(v, "--", "-")
	}
	if v := fields["publisher"]; v != "" {
		draft.Fields["publisher"] = v
	}
	if v := fields["abstract"]; v != "" {
		draft.Fields["abstractNote"] = v
	}
	if len(draft.Fields) == 0 {
		draft.Fields = nil
	}

	for _, name := range splitBibAuthors(fields["author"]) {
		draft.Creators = append(draft.Creators, bibCreator(name, "author"))
	}
	for _, name := range splitBibAuthors(fields["editor"]) {
		draft.Creators = append(draft.Creators, bibCreator(name, "editor"))
	}

	return draft
}

func bibItemType(entryType string) string {
	switch entryType {
	case "article":
		return "journalArticle"
	case "book":
		return "book"
	case "incollection", "inbook":
		return "bookSection"
	case "inproceedings", "conference":
		return "conferencePaper"
	case "phdthesis", "mastersthesis":
		return "thesis"
	case "techreport":
		return "report"
	case "unpublished":
		return "manuscript"
	default:
		return "document"
	}
}

// splitBibAuthors splits on the " and " separator, ignoring case.
func splitBibAuthors(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(value, " and ") {
		part = strings.TrimSpace(part)
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}

func bibCreator(name, creatorType string) library.CreatorDraft {
	if idx := strings.Index(name, ","); idx >= 0 {
		return library.CreatorDraft{
			LastName:    strings.TrimSpace(name[:idx]),
			FirstName:   strings.TrimSpace(name[idx+1:]),
			CreatorType: creatorType,
		}
	}
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return library.CreatorDraft{LastName: name, CreatorType: creatorType}
	}
	return library.CreatorDraft{
		FirstName:   strings.Join(parts[:len(parts)-1], " "),
		LastName:    parts[len(parts)-1],
		CreatorType: creatorType,
	}
}

// cleanBibValue strips protective braces and collapses whitespace.
func cleanBibValue(value string) string {
	value = strings.ReplaceAll(value, "{", "")
	value = strings.ReplaceAll(value, "}", "")
	return strings.Join(strings.Fields(value), " ")
}

func isBibSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func errEntry(msg string) error {
	return &entryError{msg: msg}
}

type entryError struct{ msg string }

func (e *entryError) Error() string { return "malformed entry: " + e.msg }
