package control

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

var ErrUnsupportedKey = errors.New("unsupported key")

// Android meta state masks.
const (
	MetaShiftOn int32 = 0xc1
	MetaAltOn   int32 = 0x32
	MetaCtrlOn  int32 = 0x7000
	MetaMetaOn  int32 = 0x70000
)

// KeyCode pairs the Android keycode with the Linux evdev code of a key.
type KeyCode struct {
	Name    string
	Android int32
	Linux   uint16
}

var keyTable = map[string]KeyCode{}

func init() {
	add := func(name string, android int32, linux uint16) {
		keyTable[name] = KeyCode{Name: name, Android: android, Linux: linux}
	}

	// letters: android 29..54, linux follows the qwerty rows
	linuxLetters := map[rune]uint16{
		'Q': 16, 'W': 17, 'E': 18, 'R': 19, 'T': 20, 'Y': 21, 'U': 22, 'I': 23, 'O': 24, 'P': 25,
		'A': 30, 'S': 31, 'D': 32, 'F': 33, 'G': 34, 'H': 35, 'J': 36, 'K': 37, 'L': 38,
		'Z': 44, 'X': 45, 'C': 46, 'V': 47, 'B': 48, 'N': 49, 'M': 50,
	}
	for c := 'A'; c <= 'Z'; c++ {
		add("KEY_"+string(c), 29+int32(c-'A'), linuxLetters[c])
	}

	add("KEY_0", 7, 11)
	for d := int32(1); d <= 9; d++ {
		add(fmt.Sprintf("KEY_%d", d), 7+d, uint16(1+d))
	}

	for f := int32(1); f <= 12; f++ {
		linux := uint16(58 + f)
		if f > 10 {
			linux = uint16(76 + f)
		}
		add(fmt.Sprintf("KEY_F%d", f), 130+f, linux)
	}

	add("KEY_SPACE", 62, 57)
	add("KEY_ENTER", 66, 28)
	add("KEY_TAB", 61, 15)
	add("KEY_ESCAPE", 111, 1)
	add("KEY_BACKSPACE", 67, 14)
	add("KEY_DELETE", 112, 111)
	add("KEY_INSERT", 124, 110)
	add("KEY_HOME", 122, 102)
	add("KEY_END", 123, 107)
	add("KEY_PAGE_UP", 92, 104)
	add("KEY_PAGE_DOWN", 93, 109)
	add("KEY_UP", 19, 103)
	add("KEY_DOWN", 20, 108)
	add("KEY_LEFT", 21, 105)
	add("KEY_RIGHT", 22, 106)
	add("KEY_CAPS_LOCK", 115, 58)

	add("KEY_GRAVE", 68, 41)
	add("KEY_MINUS", 69, 12)
	add("KEY_EQUALS", 70, 13)
	add("KEY_LEFT_BRACKET", 71, 26)
	add("KEY_RIGHT_BRACKET", 72, 27)
	add("KEY_BACKSLASH", 73, 43)
	add("KEY_SEMICOLON", 74, 39)
	add("KEY_APOSTROPHE", 75, 40)
	add("KEY_COMMA", 55, 51)
	add("KEY_PERIOD", 56, 52)
	add("KEY_SLASH", 76, 53)

	add("KEY_SHIFT_LEFT", 59, 42)
	add("KEY_SHIFT_RIGHT", 60, 54)
	add("KEY_CTRL_LEFT", 113, 29)
	add("KEY_CTRL_RIGHT", 114, 97)
	add("KEY_ALT_LEFT", 57, 56)
	add("KEY_ALT_RIGHT", 58, 100)
	add("KEY_META_LEFT", 117, 125)
	add("KEY_META_RIGHT", 118, 126)

	// device buttons
	add("KEY_ANDROID_HOME", 3, 172)
	add("KEY_BACK", 4, 158)
	add("KEY_MENU", 82, 139)
	add("KEY_APP_SWITCH", 187, 580)
	add("KEY_POWER", 26, 116)
	add("KEY_VOLUME_UP", 24, 115)
	add("KEY_VOLUME_DOWN", 25, 114)
}

var keyAliases = map[string]string{
	"CTRL":  "KEY_CTRL_LEFT",
	"ALT":   "KEY_ALT_LEFT",
	"SHIFT": "KEY_SHIFT_LEFT",
	"WIN":   "KEY_META_LEFT",
	"META":  "KEY_META_LEFT",
}

var charKeys = map[rune]string{
	' ': "KEY_SPACE", '\n': "KEY_ENTER", '\t': "KEY_TAB",
	'`': "KEY_GRAVE", '~': "KEY_GRAVE",
	'-': "KEY_MINUS", '_': "KEY_MINUS",
	'=': "KEY_EQUALS", '+': "KEY_EQUALS",
	'[': "KEY_LEFT_BRACKET", '{': "KEY_LEFT_BRACKET",
	']': "KEY_RIGHT_BRACKET", '}': "KEY_RIGHT_BRACKET",
	'\\': "KEY_BACKSLASH", '|': "KEY_BACKSLASH",
	';': "KEY_SEMICOLON", ':': "KEY_SEMICOLON",
	'\'': "KEY_APOSTROPHE", '"': "KEY_APOSTROPHE",
	',': "KEY_COMMA", '<': "KEY_COMMA",
	'.': "KEY_PERIOD", '>': "KEY_PERIOD",
	'/': "KEY_SLASH", '?': "KEY_SLASH",
	')': "KEY_0", '!': "KEY_1", '@': "KEY_2", '#': "KEY_3", '$': "KEY_4",
	'%': "KEY_5", '^': "KEY_6", '&': "KEY_7", '*': "KEY_8", '(': "KEY_9",
}

const shiftedSymbols = "~!@#$%^&*()_+{}|:\"<>?"

// LookupKey resolves a key name. Accepted forms are table names such as
// KEY_ENTER, the same names without the KEY_ prefix, the modifier aliases
// CTRL, ALT, SHIFT, WIN and META, and single printable characters.
func LookupKey(name string) (KeyCode, error) {
	if name == "" {
		return KeyCode{}, fmt.Errorf("%w: empty name", ErrUnsupportedKey)
	}

	runes := []rune(name)
	if len(runes) == 1 {
		c := runes[0]
		switch {
		case c >= 'a' && c <= 'z':
			return keyTable["KEY_"+string(unicode.ToUpper(c))], nil
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return keyTable["KEY_"+string(c)], nil
		}
		if k, ok := charKeys[c]; ok {
			return keyTable[k], nil
		}
		return KeyCode{}, fmt.Errorf("%w: %q", ErrUnsupportedKey, name)
	}

	upper := strings.ToUpper(name)
	if alias, ok := keyAliases[upper]; ok {
		upper = alias
	}
	if k, ok := keyTable[upper]; ok {
		return k, nil
	}
	if k, ok := keyTable["KEY_"+upper]; ok {
		return k, nil
	}
	return KeyCode{}, fmt.Errorf("%w: %q", ErrUnsupportedKey, name)
}

// RequiresShift reports whether typing c needs the shift modifier.
func RequiresShift(c rune) bool {
	return unicode.IsUpper(c) || strings.ContainsRune(shiftedSymbols, c)
}

// KeyNames lists every table name, sorted.
func KeyNames() []string {
	names := make([]string, 0, len(keyTable))
	for name := range keyTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
