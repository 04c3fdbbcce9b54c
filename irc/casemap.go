package irc

import (
	"strings"

	"golang.org/x/text/secure/precis"
)

// Casemapping names advertised through CASEMAPPING.
const (
	CasemapASCII         = "ascii"
	CasemapRFC1459       = "rfc1459"
	CasemapStrictRFC1459 = "strict-rfc1459"
	CasemapRFC8265       = "rfc8265"
)

// foldASCII lowers A-Z only.
func foldASCII(s string) string {
	return foldTable(s, 'Z')
}

// foldRFC1459 lowers A-Z and []\~ to {}|^.
func foldRFC1459(s string) string {
	return foldTable(s, '^')
}

// foldStrictRFC1459 lowers A-Z and []\ to {}|.
func foldStrictRFC1459(s string) string {
	return foldTable(s, ']')
}

// foldTable lowers every byte in the range 'A'..upper by 32, which is how the
// three classic casemappings differ: ascii stops at 'Z', strict-rfc1459 at
// ']' and rfc1459 at '^'.
func foldTable(s string, upper byte) string {
	i := 0
	for ; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= upper {
			break
		}
	}
	if i == len(s) {
		return s
	}

	b := []byte(s)
	for ; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= upper {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// foldRFC8265 applies the PRECIS UsernameCaseMapped profile until it
// stabilizes, falling back to ascii folding for names it rejects.
func foldRFC8265(s string) string {
	folded := s
	for i := 0; i < 4; i++ {
		next, err := precis.UsernameCaseMapped.CompareKey(folded)
		if err != nil {
			return foldASCII(s)
		}
		if next == folded {
			return folded
		}
		folded = next
	}
	return foldASCII(s)
}

// casefolder picks the folding function for a casemapping name. Unknown
// names get rfc1459, which is what servers assume when nothing is said.
func casefolder(casemapping string) func(string) string {
	switch strings.ToLower(casemapping) {
	case CasemapASCII:
		return foldASCII
	case CasemapStrictRFC1459:
		return foldStrictRFC1459
	case CasemapRFC8265:
		return foldRFC8265
	default:
		return foldRFC1459
	}
}
