package convert

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrUnmappable is returned when a key has no place on the 2-set layout.
var ErrUnmappable = errors.New("key has no 2-set mapping")

const syllableBase = 0xAC00

// Key to compatibility jamo on the 2-set (Dubeolsik) layout. Uppercase keys
// only appear where shift produces a different jamo.
var keymap = map[rune]rune{
	'r': 'ㄱ', 'R': 'ㄲ', 's': 'ㄴ', 'e': 'ㄷ', 'E': 'ㄸ', 'f': 'ㄹ', 'a': 'ㅁ',
	'q': 'ㅂ', 'Q': 'ㅃ', 't': 'ㅅ', 'T': 'ㅆ', 'd': 'ㅇ', 'w': 'ㅈ', 'W': 'ㅉ',
	'c': 'ㅊ', 'z': 'ㅋ', 'x': 'ㅌ', 'v': 'ㅍ', 'g': 'ㅎ',
	'k': 'ㅏ', 'o': 'ㅐ', 'O': 'ㅒ', 'i': 'ㅑ', 'j': 'ㅓ', 'p': 'ㅔ', 'P': 'ㅖ',
	'u': 'ㅕ', 'h': 'ㅗ', 'y': 'ㅛ', 'n': 'ㅜ', 'b': 'ㅠ', 'm': 'ㅡ', 'l': 'ㅣ',
}

var initials = indexOf([]rune("ㄱㄲㄴㄷㄸㄹㅁㅂㅃㅅㅆㅇㅈㅉㅊㅋㅌㅍㅎ"))

var medials = indexOf([]rune("ㅏㅐㅑㅒㅓㅔㅕㅖㅗㅘㅙㅚㅛㅜㅝㅞㅟㅠㅡㅢㅣ"))

// Index 0 is the empty final.
var finals = indexOf([]rune("\x00ㄱㄲㄳㄴㄵㄶㄷㄹㄺㄻㄼㄽㄾㄿㅀㅁㅂㅄㅅㅆㅇㅈㅊㅋㅌㅍㅎ"))

var compoundVowels = map[[2]rune]rune{
	{'ㅗ', 'ㅏ'}: 'ㅘ', {'ㅗ', 'ㅐ'}: 'ㅙ', {'ㅗ', 'ㅣ'}: 'ㅚ',
	{'ㅜ', 'ㅓ'}: 'ㅝ', {'ㅜ', 'ㅔ'}: 'ㅞ', {'ㅜ', 'ㅣ'}: 'ㅟ',
	{'ㅡ', 'ㅣ'}: 'ㅢ',
}

var compoundFinals = map[[2]rune]rune{
	{'ㄱ', 'ㅅ'}: 'ㄳ', {'ㄴ', 'ㅈ'}: 'ㄵ', {'ㄴ', 'ㅎ'}: 'ㄶ',
	{'ㄹ', 'ㄱ'}: 'ㄺ', {'ㄹ', 'ㅁ'}: 'ㄻ', {'ㄹ', 'ㅂ'}: 'ㄼ', {'ㄹ', 'ㅅ'}: 'ㄽ',
	{'ㄹ', 'ㅌ'}: 'ㄾ', {'ㄹ', 'ㅍ'}: 'ㄿ', {'ㄹ', 'ㅎ'}: 'ㅀ',
	{'ㅂ', 'ㅅ'}: 'ㅄ',
}

func indexOf(rs []rune) map[rune]int {
	m := make(map[rune]int, len(rs))
	for i, r := range rs {
		m[r] = i
	}
	return m
}

func isVowel(j rune) bool {
	_, ok := medials[j]
	return ok
}

func jamoFor(key rune) (rune, bool) {
	if j, ok := keymap[key]; ok {
		return j, true
	}
	// Shift without a distinct jamo types the unshifted one.
	if unicode.IsUpper(key) {
		j, ok := keymap[unicode.ToLower(key)]
		return j, ok
	}
	return 0, false
}

// syllable is the composition state of the block being typed.
type syllable struct {
	cho  rune
	jung rune
	// jong holds up to two final consonants, kept apart so the second one
	// can move to the next block.
	jong []rune
}

func (s *syllable) empty() bool {
	return s.cho == 0 && s.jung == 0
}

func (s *syllable) final() rune {
	switch len(s.jong) {
	case 0:
		return 0
	case 1:
		return s.jong[0]
	default:
		return compoundFinals[[2]rune{s.jong[0], s.jong[1]}]
	}
}

func (s *syllable) flush(out []rune) []rune {
	switch {
	case s.cho != 0 && s.jung != 0:
		code := syllableBase + (initials[s.cho]*len(medials)+medials[s.jung])*len(finals) + finals[s.final()]
		out = append(out, rune(code))
	case s.cho != 0:
		out = append(out, s.cho)
	case s.jung != 0:
		out = append(out, s.jung)
	}
	*s = syllable{}
	return out
}

func (s *syllable) consonant(j rune, out []rune) []rune {
	switch {
	case s.cho != 0 && s.jung != 0 && len(s.jong) == 0:
		if _, ok := finals[j]; ok {
			s.jong = []rune{j}
			return out
		}
	case len(s.jong) == 1:
		if _, ok := compoundFinals[[2]rune{s.jong[0], j}]; ok {
			s.jong = append(s.jong, j)
			return out
		}
	}
	out = s.flush(out)
	s.cho = j
	return out
}

func (s *syllable) vowel(j rune, out []rune) []rune {
	if len(s.jong) > 0 {
		// The last final starts the next block.
		moved := s.jong[len(s.jong)-1]
		s.jong = s.jong[:len(s.jong)-1]
		out = s.flush(out)
		s.cho = moved
		s.jung = j
		return out
	}
	if s.jung != 0 {
		if c, ok := compoundVowels[[2]rune{s.jung, j}]; ok {
			s.jung = c
			return out
		}
		out = s.flush(out)
		s.jung = j
		return out
	}
	s.jung = j
	return out
}

// EnglishToHangul types word on a 2-set keyboard and returns the composed
// Hangul. It fails if any key has no mapping.
func EnglishToHangul(word string) (string, error) {
	out := make([]rune, 0, len(word))
	var s syllable
	for _, key := range word {
		j, ok := jamoFor(key)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnmappable, key)
		}
		if isVowel(j) {
			out = s.vowel(j, out)
		} else {
			out = s.consonant(j, out)
		}
	}
	if !s.empty() {
		out = s.flush(out)
	}
	return string(out), nil
}
