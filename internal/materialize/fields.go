package materialize

// itemTypes is the accepted item type vocabulary.
var itemTypes = map[string]bool{
	"artwork":             true,
	"attachment":          true,
	"audioRecording":      true,
	"blogPost":            true,
	"book":                true,
	"bookSection":         true,
	"computerProgram":     true,
	"conferencePaper":     true,
	"dictionaryEntry":     true,
	"document":            true,
	"email":               true,
	"encyclopediaArticle": true,
	"film":                true,
	"forumPost":           true,
	"interview":           true,
	"journalArticle":      true,
	"letter":              true,
	"magazineArticle":     true,
	"manuscript":          true,
	"map":                 true,
	"newspaperArticle":    true,
	"patent":              true,
	"podcast":             true,
	"preprint":            true,
	"presentation":        true,
	"radioBroadcast":      true,
	"report":              true,
	"thesis":              true,
	"tvBroadcast":         true,
	"videoRecording":      true,
	"webpage":             true,
}

// itemFields is the accepted extended field vocabulary, shared across
// item types.
var itemFields = map[string]bool{
	"DOI":                  true,
	"ISBN":                 true,
	"ISSN":                 true,
	"abstractNote":         true,
	"accessDate":           true,
	"archive":              true,
	"archiveLocation":      true,
	"blogTitle":            true,
	"bookTitle":            true,
	"callNumber":           true,
	"conferenceName":       true,
	"date":                 true,
	"edition":              true,
	"extra":                true,
	"forumTitle":           true,
	"genre":                true,
	"institution":          true,
	"issue":                true,
	"journalAbbreviation":  true,
	"language":             true,
	"libraryCatalog":       true,
	"medium":               true,
	"numPages":             true,
	"number":               true,
	"pages":                true,
	"place":                true,
	"proceedingsTitle":     true,
	"publicationTitle":     true,
	"publisher":            true,
	"repository":           true,
	"rights":               true,
	"section":              true,
	"series":               true,
	"seriesTitle":          true,
	"shortTitle":           true,
	"thesisType":           true,
	"university":           true,
	"volume":               true,
	"websiteTitle":         true,
	"websiteType":          true,
}
