package classify

import "regexp"

const maxSkills = 30

// skillPatterns holds one pattern per recognised technology or spelling variant.
var skillPatterns = compileAll(
	`\bjava\b`,
	`\bjavascript\b|\bjs\b`,
	`\btypescript\b`,
	`\bpython\b`,
	`\bgolang\b`,
	`\brust\b`,
	`\bc\+\+`,
	`\bc#`,
	`\.net\b|\bdotnet\b`,
	`\bruby\b|\brails\b`,
	`\bphp\b`,
	`\bscala\b`,
	`\bkotlin\b`,
	`\bswift\b`,
	`\breact(?:\.?js)?\b`,
	`\bangular(?:js)?\b`,
	`\bvue(?:\.?js)?\b`,
	`\bnode(?:\.?js)?\b`,
	`\bspring\s*boot\b|\bspring\b`,
	`\bdjango\b|\bflask\b`,
	`\bsql\b|\bt-sql\b|\bpl/sql\b`,
	`\bpostgres(?:ql)?\b`,
	`\bmysql\b`,
	`\boracle\b`,
	`\bmongo(?:db)?\b`,
	`\bredis\b`,
	`\bkafka\b`,
	`\bspark\b|\bpyspark\b`,
	`\bhadoop\b`,
	`\bsnowflake\b`,
	`\bdatabricks\b`,
	`\baws\b|\bamazon\s+web\s+services\b`,
	`\bazure\b`,
	`\bgcp\b|\bgoogle\s+cloud\b`,
	`\bdocker\b`,
	`\bkubernetes\b|\bk8s\b`,
	`\bterraform\b`,
	`\bansible\b`,
	`\bjenkins\b`,
	`\bci/cd\b`,
	`\blinux\b`,
	`\bsalesforce\b`,
	`\bsap\b`,
	`\bservicenow\b`,
	`\btableau\b|\bpower\s*bi\b`,
	`\bselenium\b`,
	`\bmachine\s+learning\b|\bml\b`,
	`\bgraphql\b`,
	`\bmicroservices?\b`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// ExtractSkills returns the literal skill mentions found in title and description,
// deduplicated case-insensitively in order of pattern, capped at 30.
func ExtractSkills(title, description string) []string {
	text := sanitizeUTF8(title + "\n" + description)
	skills := []string{}
	for _, re := range skillPatterns {
		skills = mergeUniqueFold(skills, re.FindAllString(text, -1)...)
		if len(skills) >= maxSkills {
			return skills[:maxSkills]
		}
	}
	return skills
}
