package statistical

import (
	"regexp"
	"strings"
	"unicode"
)

// Tokenizer names accepted by BLEU.
const (
	Tokenize13a  = "13a"
	TokenizeNone = "none"
)

var (
	// ASCII punctuation and symbols: {-~ [-` space-& (-+ :-@ /
	reSymbols       = regexp.MustCompile("([\\x7b-\\x7e\\x5b-\\x60\\x20-\\x26\\x28-\\x2b\\x3a-\\x40/])")
	rePeriodAfter   = regexp.MustCompile(`([^0-9])([\.,])`)
	rePeriodBefore  = regexp.MustCompile(`([\.,])([^0-9])`)
	reDashAfterNum  = regexp.MustCompile(`([0-9])(-)`)
	reGenitiveInner = regexp.MustCompile(`'s `)
	reGenitiveEnd   = regexp.MustCompile(`'s$`)
	reTERPunct      = regexp.MustCompile(`[\.,\?:;!"\(\)]`)
)

var htmlEntities = strings.NewReplacer("&quot;", `"`, "&amp;", "&", "&lt;", "<", "&gt;", ">")

// tokenize13a is the mteval-v13a tokenizer used by sacreBLEU by default.
func tokenize13a(line string) []string {
	line = strings.ReplaceAll(line, "<skipped>", "")
	line = strings.ReplaceAll(line, "-\n", "")
	line = strings.ReplaceAll(line, "\n", " ")
	if strings.Contains(line, "&") {
		line = htmlEntities.Replace(line)
	}
	return strings.Fields(westernSplit(" " + line + " "))
}

func westernSplit(line string) string {
	line = reSymbols.ReplaceAllString(line, " ${1} ")
	line = rePeriodAfter.ReplaceAllString(line, "${1} ${2} ")
	line = rePeriodBefore.ReplaceAllString(line, " ${1} ${2}")
	line = reDashAfterNum.ReplaceAllString(line, "${1} ${2} ")
	return line
}

func tokenizeNone(line string) []string {
	return strings.Fields(line)
}

// terTokenize mirrors the tercom tokenizer: optional lowercasing,
// normalization and punctuation removal, then whitespace splitting.
func terTokenize(sent string, caseSensitive, normalized, noPunct bool) []string {
	if sent == "" {
		return nil
	}
	if !caseSensitive {
		sent = strings.ToLower(sent)
	}
	if normalized {
		sent = " " + sent + " "
		sent = strings.ReplaceAll(sent, "\n-", "")
		sent = strings.ReplaceAll(sent, "\n", " ")
		sent = htmlEntities.Replace(sent)
		sent = reSymbols.ReplaceAllString(sent, " ${1} ")
		sent = reGenitiveInner.ReplaceAllString(sent, " 's ")
		sent = reGenitiveEnd.ReplaceAllString(sent, " 's")
		sent = rePeriodAfter.ReplaceAllString(sent, "${1} ${2} ")
		sent = rePeriodBefore.ReplaceAllString(sent, " ${1} ${2}")
		sent = reDashAfterNum.ReplaceAllString(sent, "${1} ${2} ")
	}
	if noPunct {
		sent = reTERPunct.ReplaceAllString(sent, "")
	}
	return strings.Fields(sent)
}

// Treebank-style word tokenization, as used for METEOR.
var (
	reStartQuote     = regexp.MustCompile(`^"`)
	reOpenQuote      = regexp.MustCompile(`([ (\[{<])("|'{2})`)
	reFinalPeriod    = regexp.MustCompile(`([^.])(\.)([\]\)}>"']*)\s*$`)
	reColonComma     = regexp.MustCompile(`([:,])([^\d])`)
	reColonCommaEnd  = regexp.MustCompile(`([:,])$`)
	reEllipsis       = regexp.MustCompile(`\.\.\.`)
	reSymbolPunct    = regexp.MustCompile(`[;@#$%&?!]`)
	reSingleQuote    = regexp.MustCompile(`([^'])' `)
	reBrackets       = regexp.MustCompile(`[\]\[\(\)\{\}<>]`)
	reDoubleDash     = regexp.MustCompile(`--`)
	reEndQuote       = regexp.MustCompile(`"`)
	reEndDoubleQuote = regexp.MustCompile(`(\S)('')`)
	reClitics        = regexp.MustCompile(`([^' ])('[sS]|'[mM]|'[dD]|') `)
	reContractions   = regexp.MustCompile(`([^' ])('ll|'LL|'re|'RE|'ve|'VE|n't|N'T) `)
)

// WordTokenize splits text into sentences and each sentence into
// treebank-style word tokens: punctuation, brackets, quotes and clitics
// become separate tokens and a sentence-final period is split off.
func WordTokenize(text string) []string {
	var tokens []string
	for _, sent := range splitSentences(text) {
		tokens = append(tokens, treebankTokenize(sent)...)
	}
	return tokens
}

func treebankTokenize(s string) []string {
	s = reStartQuote.ReplaceAllString(s, "``")
	s = reOpenQuote.ReplaceAllString(s, "${1} `` ")

	s = reFinalPeriod.ReplaceAllString(s, "${1} ${2} ${3} ")
	s = reColonComma.ReplaceAllString(s, " ${1} ${2}")
	s = reColonCommaEnd.ReplaceAllString(s, " ${1} ")
	s = reEllipsis.ReplaceAllString(s, " ... ")
	s = reSymbolPunct.ReplaceAllString(s, " ${0} ")
	s = reSingleQuote.ReplaceAllString(s, "${1} ' ")

	s = reBrackets.ReplaceAllString(s, " ${0} ")
	s = reDoubleDash.ReplaceAllString(s, " -- ")

	s = " " + s + " "
	s = reEndQuote.ReplaceAllString(s, " '' ")
	s = reEndDoubleQuote.ReplaceAllString(s, "${1} ${2} ")
	s = reClitics.ReplaceAllString(s, "${1} ${2} ")
	s = reContractions.ReplaceAllString(s, "${1} ${2} ")
	return strings.Fields(s)
}

// splitSentences breaks text after ., ! or ? followed by whitespace and an
// upper-case letter or digit.
func splitSentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 || j >= len(runes) {
			continue
		}
		if unicode.IsUpper(runes[j]) || unicode.IsDigit(runes[j]) {
			out = append(out, string(runes[start:i+1]))
			start = j
			i = j - 1
		}
	}
	return append(out, string(runes[start:]))
}
