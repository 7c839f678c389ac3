package library

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Draft is an unmaterialized item description supplied by the browser
// extension, a translator, or a bibliographic importer. Drafts have no
// identity until persisted.
type Draft struct {
	ItemType    string
	Title       string
	URL         string
	Creators    []CreatorDraft
	Attachments []AttachmentDraft
	Tags        []string
	Fields      map[string]string
}

// CreatorDraft names one contributor. Either FirstName/LastName or the
// single Name field is populated.
type CreatorDraft struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
	CreatorType string `json:"creatorType,omitempty"`
}

// Creator converts the draft creator to a store creator.
func (c CreatorDraft) Creator() Creator {
	creatorType := c.CreatorType
	if creatorType == "" {
		creatorType = "author"
	}
	if c.Name != "" && c.FirstName == "" && c.LastName == "" {
		return Creator{CreatorType: creatorType, LastName: c.Name}
	}
	return Creator{CreatorType: creatorType, FirstName: c.FirstName, LastName: c.LastName}
}

// AttachmentDraft describes an attachment to fetch and store.
type AttachmentDraft struct {
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// UnmarshalJSON decodes the extension's item payload: the known keys
// populate struct fields, and every other scalar key lands in Fields
// for vocabulary validation at materialization time.
func (d *Draft) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = Draft{}
	for key, value := range raw {
		switch key {
		case "itemType":
			if err := json.Unmarshal(value, &d.ItemType); err != nil {
				return fmt.Errorf("decode itemType: %w", err)
			}
		case "title":
			if err := json.Unmarshal(value, &d.Title); err != nil {
				return fmt.Errorf("decode title: %w", err)
			}
		case "url":
			if err := json.Unmarshal(value, &d.URL); err != nil {
				return fmt.Errorf("decode url: %w", err)
			}
		case "creators":
			if err := json.Unmarshal(value, &d.Creators); err != nil {
				return fmt.Errorf("decode creators: %w", err)
			}
		case "attachments":
			if err := json.Unmarshal(value, &d.Attachments); err != nil {
				return fmt.Errorf("decode attachments: %w", err)
			}
		case "tags":
			tags, err := decodeTags(value)
			if err != nil {
				return err
			}
			d.Tags = tags
		case "id", "key", "version", "notes", "seeAlso", "complete", "selectedItems":
			// Connector bookkeeping keys, not bibliographic fields.
		default:
			text, ok := scalarString(value)
			if !ok {
				return fmt.Errorf("field %q has a non-scalar value", key)
			}
			if text == "" {
				continue
			}
			if d.Fields == nil {
				d.Fields = make(map[string]string)
			}
			d.Fields[key] = text
		}
	}
	return nil
}

// decodeTags accepts both ["name"] and [{"tag":"name"}] forms.
func decodeTags(data json.RawMessage) ([]string, error) {
	var plain []string
	if err := json.Unmarshal(data, &plain); err == nil {
		return plain, nil
	}
	var tagged []struct {
		Tag string `json:"tag"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	tags := make([]string, 0, len(tagged))
	for _, t := range tagged {
		if t.Tag != "" {
			tags = append(tags, t.Tag)
		}
	}
	return tags, nil
}

func scalarString(data json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	var null any
	if err := json.Unmarshal(data, &null); err == nil && null == nil {
		return "", true
	}
	return "", false
}
