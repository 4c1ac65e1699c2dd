package memory

import (
	"strings"
	"unicode"

	"github.com/easeaico/recall/internal/types"
)

// categoryKeywords is checked in order; the first category with a matching
// label word wins. Keywords of four letters or more match as word prefixes.
var categoryKeywords = []struct {
	category types.Category
	keywords []string
}{
	{types.CategoryHealth, []string{"allerg", "diet", "medic", "condition", "health", "fitness", "exercise", "sleep", "workout", "wellness"}},
	{types.CategoryRelationships, []string{"family", "spouse", "wife", "husband", "partner", "child", "children", "son", "daughter", "parent", "mother", "father", "sibling", "brother", "sister", "friend", "colleague", "pet", "dog", "cat", "relationship", "marital", "anniversar"}},
	{types.CategoryProfessional, []string{"occupation", "job", "profession", "employer", "company", "work", "career", "industry", "education", "degree", "school", "universit", "skill", "certific"}},
	{types.CategoryTechnology, []string{"device", "phone", "laptop", "computer", "app", "apps", "software", "platform", "tech", "technology", "programming", "browser", "privacy", "social media", "editor"}},
	{types.CategoryFinancial, []string{"budget", "financ", "invest", "saving", "spending", "income", "salary", "money", "bank"}},
	{types.CategoryTravel, []string{"travel", "destination", "trip", "language", "airline", "hotel", "vacation", "cultur"}},
	{types.CategoryPreferences, []string{"prefer", "like", "likes", "dislike", "favorite", "favourite", "hobb", "interest", "habit", "routine", "food", "music", "movie", "book", "shopping", "brand", "entertainment", "leisure"}},
}

// CategoryForLabel maps a free-form extractor label onto the fixed taxonomy.
// Labels that match nothing are personal attributes (name, age, location).
func CategoryForLabel(label string) types.Category {
	lower := strings.ToLower(label)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(lower, kw) {
					return entry.category
				}
				continue
			}
			for _, w := range words {
				if w == kw || (len(kw) >= 4 && strings.HasPrefix(w, kw)) {
					return entry.category
				}
			}
		}
	}
	return types.CategoryPersonal
}
