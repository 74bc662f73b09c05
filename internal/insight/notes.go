package insight

import (
	"sort"
	"strings"
	"unicode"
)

// NoteDigest is the keyword extraction of a clinical note.
type NoteDigest struct {
	OriginalNotes string   `json:"original_notes"`
	Keywords      []string `json:"keywords"`
	MedicalTerms  []string `json:"medical_terms"`
}

var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "again": {}, "all": {}, "an": {}, "and": {},
	"any": {}, "are": {}, "as": {}, "at": {}, "be": {}, "been": {}, "before": {},
	"but": {}, "by": {}, "can": {}, "did": {}, "do": {}, "does": {}, "during": {},
	"for": {}, "from": {}, "had": {}, "has": {}, "have": {}, "he": {}, "her": {},
	"his": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {},
	"no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "she": {}, "since": {},
	"so": {}, "than": {}, "that": {}, "the": {}, "their": {}, "then": {},
	"there": {}, "they": {}, "this": {}, "to": {}, "under": {}, "was": {},
	"were": {}, "when": {}, "which": {}, "while": {}, "with": {}, "without": {},
	"patient": {},
}

// medicalLexicon maps surface forms to the canonical term reported.
var medicalLexicon = map[string]string{
	"fever":        "fever",
	"febrile":      "fever",
	"pyrexia":      "fever",
	"pain":         "pain",
	"infection":    "infection",
	"infected":     "infection",
	"sepsis":       "sepsis",
	"bleeding":     "bleeding",
	"hemorrhage":   "bleeding",
	"hypotension":  "hypotension",
	"hypertension": "hypertension",
	"tachycardia":  "tachycardia",
	"bradycardia":  "bradycardia",
	"hypoxia":      "hypoxia",
	"dyspnea":      "dyspnea",
	"nausea":       "nausea",
	"vomiting":     "vomiting",
	"edema":        "edema",
	"swelling":     "edema",
	"erythema":     "erythema",
	"redness":      "erythema",
	"discharge":    "wound discharge",
	"dehiscence":   "wound dehiscence",
	"thrombosis":   "thrombosis",
	"embolism":     "embolism",
	"pneumonia":    "pneumonia",
	"delirium":     "delirium",
	"ileus":        "ileus",
	"arrhythmia":   "arrhythmia",
}

// DigestNote extracts deduplicated keywords (stop words removed) and known
// medical terms from free text. Both lists are sorted.
func DigestNote(text string) NoteDigest {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	keywords := make(map[string]struct{})
	terms := make(map[string]struct{})
	for _, tok := range tokens {
		if len([]rune(tok)) < 2 {
			continue
		}
		if term, ok := medicalLexicon[tok]; ok {
			terms[term] = struct{}{}
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		keywords[tok] = struct{}{}
	}

	return NoteDigest{
		OriginalNotes: text,
		Keywords:      sortedKeys(keywords),
		MedicalTerms:  sortedKeys(terms),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
