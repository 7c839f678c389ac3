package importer

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"folio/internal/library"
	"folio/internal/services"
)

// CSLJSONParser reads Citation Style Language item arrays. A single
// bare object is accepted as a one-element import.
type CSLJSONParser struct{}

func (p *CSLJSONParser) ContentType() string {
	return "application/vnd.citationstyles.csl+json"
}

type cslItem struct {
	Type           string      `json:"type"`
	Title          string      `json:"title"`
	URL            string      `json:"URL"`
	DOI            string      `json:"DOI"`
	ISSN           string      `json:"ISSN"`
	ContainerTitle string      `json:"container-title"`
	Volume         json.Number `json:"volume"`
	Issue          json.Number `json:"issue"`
	Page           string      `json:"page"`
	Abstract       string      `json:"abstract"`
	Publisher      string      `json:"publisher"`
	Author         []cslName   `json:"author"`
	Editor         []cslName   `json:"editor"`
	Issued         cslDate     `json:"issued"`
}

type cslName struct {
	Family  string `json:"family"`
	Given   string `json:"given"`
	Literal string `json:"literal"`
}

type cslDate struct {
	DateParts [][]json.Number `json:"date-parts"`
	Raw       string          `json:"raw"`
}

func (p *CSLJSONParser) Parse(ctx context.Context, body []byte) ([]*library.Draft, error) {
	var items []cslItem
	if err := json.Unmarshal(body, &items); err != nil {
		var single cslItem
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, services.Wrap(services.ErrValidation, "importer", "csl json", "", err)
		}
		items = []cslItem{single}
	}

	drafts := make([]*library.Draft, 0, len(items))
	for _, item := range items {
		if item.Title == "" && item.Type == "" {
			continue
		}
		drafts = append(drafts, item.draft())
	}
	if len(drafts) == 0 {
		return nil, services.Wrap(services.ErrValidation, "importer", "csl json", "no items in body", nil)
	}
	return drafts, nil
}

func (item cslItem) draft() *library.Draft {
	draft := &library.Draft{
		ItemType: cslItemType(item.Type),
		Title:    item.Title,
		URL:      item.URL,
		Fields:   map[string]string{},
	}

	if item.ContainerTitle != "" {
		draft.Fields["publicationTitle"] = item.ContainerTitle
	}
	if date := item.Issued.format(); date != "" {
		draft.Fields["date"] = date
	}
	if item.DOI != "" {
		draft.Fields["DOI"] = item.DOI
	}
	if item.ISSN != "" {
		draft.Fields["ISSN"] = item.ISSN
	}
	if v := item.Volume.String(); v != "" && v != "0" {
		draft.Fields["volume"] = v
	}
	if v := item.Issue.String(); v != "" && v != "0" {
		draft.Fields["issue"] = v
	}
	if item.Page != "" {
		draft.Fields["pages"] = item.Page
	}
	if item.Publisher != "" {
		draft.Fields["publisher"] = item.Publisher
	}
	if item.Abstract != "" {
		draft.Fields["abstractNote"] = item.Abstract
	}
	if len(draft.Fields) == 0 {
		draft.Fields = nil
	}

	for _, name := range item.Author {
		draft.Creators = append(draft.Creators, name.creator("author"))
	}
	for _, name := range item.Editor {
		draft.Creators = append(draft.Creators, name.creator("editor"))
	}

	return draft
}

func (n cslName) creator(creatorType string) library.CreatorDraft {
	if n.Literal != "" {
		return library.CreatorDraft{Name: n.Literal, CreatorType: creatorType}
	}
	return library.CreatorDraft{
		FirstName:   n.Given,
		LastName:    n.Family,
		CreatorType: creatorType,
	}
}

// format renders date-parts as YYYY[-MM[-DD]], falling back to raw.
func (d cslDate) format() string {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return d.Raw
	}
	parts := make([]string, 0, 3)
	for i, n := range d.DateParts[0] {
		if i >= 3 {
			break
		}
		v, err := strconv.Atoi(n.String())
		if err != nil {
			return d.Raw
		}
		if i == 0 {
			parts = append(parts, strconv.Itoa(v))
		} else {
			parts = append(parts, padTwo(v))
		}
	}
	return strings.Join(parts, "-")
}

func padTwo(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}

func cslItemType(cslType string) string {
	switch cslType {
	case "article-journal", "article":
		return "journalArticle"
	case "article-magazine":
		return "magazineArticle"
	case "article-newspaper":
		return "newspaperArticle"
	case "book":
		return "book"
	case "chapter":
		return "bookSection"
	case "paper-conference":
		return "conferencePaper"
	case "thesis":
		return "thesis"
	case "report":
		return "report"
	case "webpage", "post-weblog":
		return "webpage"
	case "manuscript":
		return "manuscript"
	default:
		return "document"
	}
}
