/*
Package fingerprint reduces generated markup to a content-independent
structural skeleton and a short stable hash of that skeleton.

The skeleton keeps element names and nesting only. Attributes, text,
comments and script/style bodies are dropped, so two artifacts that differ
only in copy or class names share a hash.
*/
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// hashLength is the number of hex characters kept from the SHA-256 digest.
	hashLength = 16

	emptySkeleton = "#empty"
	textSkeleton  = "#text"
)

// voidElements never take children, so they do not open a nesting level.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// rawTextElements have bodies that are not markup.
var rawTextElements = map[string]bool{
	"script": true, "style": true,
}

// Fingerprint is the structural identity of one artifact.
type Fingerprint struct {
	Skeleton string `json:"skeleton"`
	Hash     string `json:"hash"`
}

// Compute fingerprints an artifact. It never fails.
func Compute(artifact string) Fingerprint {
	skeleton := Skeleton(artifact)
	return Fingerprint{Skeleton: skeleton, Hash: Hash(skeleton)}
}

// Hash returns the short digest of a skeleton.
func Hash(skeleton string) string {
	sum := sha256.Sum256([]byte(skeleton))
	return hex.EncodeToString(sum[:])[:hashLength]
}

// Skeleton extracts the indented element outline of an artifact.
func Skeleton(artifact string) string {
	var lines []string
	depth := 0
	hasText := false

	s := artifact
	for i := 0; i < len(s); {
		if s[i] != '<' {
			if !isSpace(s[i]) {
				hasText = true
			}
			i++
			continue
		}

		rest := s[i:]
		switch {
		case strings.HasPrefix(rest, "<!--"):
			end := strings.Index(rest, "-->")
			if end < 0 {
				i = len(s)
			} else {
				i += end + 3
			}
			continue
		case strings.HasPrefix(rest, "<!") || strings.HasPrefix(rest, "<?"):
			i += skipTag(rest)
			continue
		case strings.HasPrefix(rest, "</"):
			depth--
			if depth < 0 {
				depth = 0
			}
			i += skipTag(rest)
			continue
		case strings.HasPrefix(rest, "<>"):
			lines = append(lines, indent(depth)+"fragment")
			depth++
			i += 2
			continue
		}

		name := readName(rest[1:])
		if name == "" || !endsName(rest[1+len(name):]) || (i > 0 && isIdentChar(s[i-1])) {
			// A bare '<' in text such as "a < b", or code such as
			// useState<string>() and i<n.
			hasText = true
			i++
			continue
		}

		n := skipTag(rest)
		selfClosing := n >= 2 && rest[n-2] == '/' && rest[n-1] == '>'
		lines = append(lines, indent(depth)+name)
		i += n

		if rawTextElements[name] {
			end := indexFold(s[i:], "</"+name)
			if end < 0 {
				i = len(s)
			} else {
				i += end + skipTag(s[i+end:])
			}
			continue
		}

		if !selfClosing && !voidElements[name] {
			depth++
		}
	}

	if len(lines) == 0 {
		if hasText {
			return textSkeleton
		}
		return emptySkeleton
	}
	return strings.Join(lines, "\n")
}

// readName returns the lower-cased element name at the start of s.
func readName(s string) string {
	end := 0
	for end < len(s) && isNameChar(s[end], end == 0) {
		end++
	}
	return strings.ToLower(s[:end])
}

// skipTag returns the length of the tag starting at s[0] == '<', honoring
// quoted attribute values and JSX expression braces.
func skipTag(s string) int {
	var quote byte
	braces := 0
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '{':
			braces++
		case c == '}':
			if braces > 0 {
				braces--
			}
		case c == '>' && braces == 0:
			return i + 1
		}
	}
	return len(s)
}

// indexFold is a case-insensitive strings.Index for an ASCII needle.
func indexFold(s, needle string) int {
	for i := 0; i+len(needle) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func isNameChar(c byte, first bool) bool {
	if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
		return true
	}
	if first {
		return false
	}
	return c >= '0' && c <= '9' || c == '-' || c == '_' || c == '.' || c == ':'
}

// endsName reports whether a tag name can stop where s begins.
func endsName(s string) bool {
	return s == "" || isSpace(s[0]) || s[0] == '>' || s[0] == '/'
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '$' || c == ')' || c == ']'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
