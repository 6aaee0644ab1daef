package protocol

import "strings"

// Form is a decoded "k=v&k=v" body. Values are trimmed and lower-cased; keys
// are kept as sent. No percent-decoding is done.
type Form map[string]string

// DecodeForm tokenises on '&' then on the first '='. A token without '=' is a
// key with an empty value. Empty keys are skipped and a repeated key keeps
// its last value.
func DecodeForm(body string) Form {
	f := Form{}
	for body != "" {
		var tok string
		tok, body, _ = strings.Cut(body, "&")
		k, v, _ := strings.Cut(tok, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		f[k] = strings.ToLower(strings.TrimSpace(v))
	}
	return f
}

// Get returns the value of key and whether it was present.
func (f Form) Get(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

// Text returns a non-empty value. An empty value counts as absent.
func (f Form) Text(key string) (string, bool) {
	v, ok := f[key]
	return v, ok && v != ""
}

// Checked implements checkbox semantics: present with any value is true,
// absent is false.
func (f Form) Checked(key string) bool {
	_, ok := f[key]
	return ok
}
